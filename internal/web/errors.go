package web

// Error responses: the technical error is logged with the request id, and the
// client gets the mapped user message as JSON, or as an alert fragment for
// HTMX requests.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/bowlhouse/internal/catalog"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/JonMunkholm/bowlhouse/internal/logging"
)

var errNoFile = errors.New("no file provided")

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with the status
// derived from it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := importer.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := ErrorAlert(msg).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Warn("render error alert", "error", err)
		}
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an importer or request error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrSubmissionInProgress):
		return http.StatusConflict
	case errors.Is(err, importer.ErrNoValidRows):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, importer.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errNoFile), errors.Is(err, catalog.ErrEmptyFile):
		return http.StatusBadRequest
	}

	switch importer.MapError(err).Code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE003", "FILE004", "FILE005", "FILE006":
		return http.StatusBadRequest
	case "UPL005", "DB006":
		return http.StatusGatewayTimeout
	case "DB004", "DB005":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
