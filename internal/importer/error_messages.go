package importer

// error_messages.go maps technical errors to messages shown to the person
// running an import, each with a support code.
//
// # Error Codes Reference
//
// Database (DB001-DB099)
//
//	DB001 - Duplicate key: a product with this name already exists
//	DB002 - Unique constraint: a value that must be unique already exists
//	DB004 - Connection refused: the catalog database is unreachable
//	DB005 - Connection reset: the database connection dropped
//	DB006 - Timeout: the operation took too long
//	DB007 - Deadlock: conflicting writes, retry
//
// Validation (VAL001-VAL099)
//
//	VAL006 - Invalid enum: a value outside the allowed list (bowl type)
//
// File (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE003 - Encoding error
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Invalid xlsx workbook
//	FILE007 - Unsupported file type
//
// Upload (UPL001-UPL099)
//
//	UPL002 - Too many uploads in progress
//	UPL003 - Preview batch not found or expired
//	UPL004 - Request cancelled
//	UPL005 - Request deadline exceeded
//
// Import (IMP001-IMP099)
//
//	IMP001 - No valid rows: nothing would be sent to the catalog
//	IMP002 - Submission already in progress for this batch
//
// Rate limiting
//
//	RATE001 - Too many requests
//
// ERR000 is the fallback; the underlying error is in the server log.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is an error as presented to the user.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Import
	{"no valid rows", UserMessage{
		Message: "The file has no valid rows to import",
		Action:  "Fix the rows flagged in the preview and upload the file again",
		Code:    "IMP001",
	}},
	{"already in progress", UserMessage{
		Message: "This import is already being submitted",
		Action:  "Wait for the current submission to finish",
		Code:    "IMP002",
	}},

	// Database
	{"duplicate key", UserMessage{
		Message: "A product with this name already exists",
		Action:  "Rename or remove the duplicate rows and try again",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{"violates unique", UserMessage{
		Message: "A duplicate value was found",
		Action:  "Review your data for duplicate product names",
		Code:    "DB002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the product catalog",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Catalog connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"deadlock", UserMessage{
		Message: "The catalog was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},

	// Validation
	{"invalid enum", UserMessage{
		Message: "Value is not in the allowed list",
		Action:  "Use one of gm250, gm350, gm500 or custom for the bowl type",
		Code:    "VAL006",
	}},

	// File
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}},
	{"encoding error", UserMessage{
		Message: "File contains characters that could not be read",
		Action:  "Save the file as UTF-8 CSV",
		Code:    "FILE003",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or XLSX file to upload",
		Code:    "FILE004",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Start from the template and add at least one product row",
		Code:    "FILE005",
	}},
	{"invalid xlsx", UserMessage{
		Message: "The spreadsheet could not be opened",
		Action:  "Save the workbook as .xlsx or export it as CSV",
		Code:    "FILE006",
	}},
	{"unsupported file type", UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a .csv or .xlsx file",
		Code:    "FILE007",
	}},

	// Upload
	{"too many uploads", UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{"upload not found", UserMessage{
		Message: "Import preview not found",
		Action:  "The preview may have expired. Please upload the file again",
		Code:    "UPL003",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the user message of the first pattern contained in err,
// or the ERR000 fallback. A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a specific pattern.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
