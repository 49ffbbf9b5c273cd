package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error flows through respondError: the technical error is
// logged with the request ID for correlation, mapped via core.MapError to a
// coded user-facing message, and written as JSON. The HTTP status is derived
// from the error type so handlers rarely pick one by hand.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rowlift/rowlift/internal/core"
)

// ErrorResponse is the JSON structure for API error responses. Code is
// machine-readable; Message and Action are for display.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	var notFound *core.SessionNotFoundError
	var unknown *core.UnknownDatasetError
	var phase *core.PhaseError
	var rowLimit *core.RowLimitError
	var request *core.RequestError

	switch {
	case errors.As(err, &request):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &unknown):
		return http.StatusNotFound
	case errors.As(err, &phase):
		return http.StatusConflict
	case errors.As(err, &rowLimit),
		errors.Is(err, core.ErrUnreadableFile),
		errors.Is(err, core.ErrEmptySheet),
		errors.Is(err, core.ErrFileTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoValidRows):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON. Encoding errors are logged since headers are
// already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
