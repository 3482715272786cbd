package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"no valid rows", ErrNoValidRows, "IMP001"},
		{"wrapped no valid rows", fmt.Errorf("submit batch: %w", ErrNoValidRows), "IMP001"},
		{"submission in progress", ErrSubmissionInProgress, "IMP002"},
		{"batch not found", fmt.Errorf("%w: abc", ErrBatchNotFound), "UPL003"},
		{"too many uploads", ErrTooManyUploads, "UPL002"},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "products_name_key"`), "DB001"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB004"},
		{"cancelled", context.Canceled, "UPL004"},
		{"deadline", context.DeadlineExceeded, "UPL005"},
		{"empty file", catalog.ErrEmptyFile, "FILE005"},
		{"unsupported type", fmt.Errorf("%w: .pdf", ErrUnsupportedFileType), "FILE007"},
		{"bad workbook", errors.New("invalid xlsx: zip: not a valid zip file"), "FILE006"},
		{"bad enum", &catalog.InvalidBowlTypeError{Value: "huge"}, "VAL006"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("DUPLICATE KEY"), "DB001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	want := "System is busy processing other imports (Code: UPL002). Please wait a moment and try again"
	if got := FormatUserError(ErrTooManyUploads); got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true, want false")
	}
	if !IsUserFacing(ErrNoValidRows) {
		t.Error("IsUserFacing(ErrNoValidRows) = false, want true")
	}
	if IsUserFacing(errors.New("kaboom")) {
		t.Error("IsUserFacing(unknown) = true, want false")
	}
}

func TestUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should be nil")
	}

	tech := fmt.Errorf("bulk create: %w", ErrSubmissionInProgress)
	ue := NewUserError(tech)
	if ue.Error() != "This import is already being submitted" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, ErrSubmissionInProgress) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.User.Code != "IMP002" {
		t.Errorf("Code = %q, want IMP002", ue.User.Code)
	}
}
