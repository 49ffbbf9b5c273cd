package core

// errors.go defines the pipeline's error taxonomy and the mapping from
// technical errors to coded user-facing messages.
//
// Every error surfaced past the core package boundary is expected to land in
// front of a user who can act on it: pick a smaller file, fix a cell, retry.
// Codes let support staff find the failing path without reading logs.
//
//	FILE001 - unreadable file      FILE002 - empty sheet
//	FILE003 - too many rows        FILE004 - file too large
//	SES001  - session not found    SES002  - wrong session phase
//	SES003  - unknown dataset      UPL001  - no valid rows
//	UPL002  - too many uploads     UPL004  - request cancelled
//	GEN001  - unexpected error     GEN002  - malformed request

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for file-level failures. Each short-circuits before any
// row is validated and resets the file selection.
var (
	ErrUnreadableFile = errors.New("could not read file")
	ErrEmptySheet     = errors.New("sheet contains no data rows")
	ErrFileTooLarge   = errors.New("file too large")
	ErrNoValidRows    = errors.New("no valid rows to upload")
)

// RowLimitError reports a sheet exceeding the dataset's row cap. The file is
// rejected before validation begins.
type RowLimitError struct {
	Count int
	Max   int
}

func (e *RowLimitError) Error() string {
	return fmt.Sprintf("file has %d rows, maximum allowed is %d", e.Count, e.Max)
}

// SessionNotFoundError reports an unknown or expired session ID.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// PhaseError reports an operation attempted in the wrong session phase,
// e.g. starting an upload before validation finished.
type PhaseError struct {
	Op    string
	Phase SessionPhase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s in phase %q", e.Op, e.Phase)
}

// UnknownDatasetError reports a dataset key with no registered definition.
type UnknownDatasetError struct {
	Key string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset: %s", e.Key)
}

// RequestError reports malformed client input: an unknown field, a row number
// outside the sheet, a missing parameter. The message is safe to show as-is.
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string {
	return e.Msg
}

// BadRequest builds a RequestError from a format string.
func BadRequest(format string, args ...any) error {
	return &RequestError{Msg: fmt.Sprintf(format, args...)}
}

// UserMessage is a user-friendly rendering of an error with a support code
// and a suggested next step.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError converts a technical error into a coded user message. Unrecognized
// errors get a generic message; the technical detail stays in server logs.
func MapError(err error) UserMessage {
	var rowLimit *RowLimitError
	var notFound *SessionNotFoundError
	var phase *PhaseError
	var unknown *UnknownDatasetError
	var request *RequestError

	switch {
	case errors.As(err, &request):
		return UserMessage{
			Code:    "GEN002",
			Message: err.Error(),
			Action:  "Correct the request and retry",
		}
	case errors.As(err, &rowLimit):
		return UserMessage{
			Code:    "FILE003",
			Message: err.Error(),
			Action:  "Split the file into smaller uploads",
		}
	case errors.Is(err, ErrUnreadableFile):
		return UserMessage{
			Code:    "FILE001",
			Message: "Could not read the file",
			Action:  "Make sure the file is a valid .xlsx workbook and try again",
		}
	case errors.Is(err, ErrEmptySheet):
		return UserMessage{
			Code:    "FILE002",
			Message: "The sheet contains no data rows",
			Action:  "Add at least one row below the header and re-upload",
		}
	case errors.Is(err, ErrFileTooLarge):
		return UserMessage{
			Code:    "FILE004",
			Message: "The file exceeds the size limit",
			Action:  "Upload a smaller file",
		}
	case errors.As(err, &notFound):
		return UserMessage{
			Code:    "SES001",
			Message: "Upload session not found",
			Action:  "The session may have expired; start a new upload",
		}
	case errors.As(err, &phase):
		return UserMessage{
			Code:    "SES002",
			Message: err.Error(),
			Action:  "Finish the current step before retrying",
		}
	case errors.As(err, &unknown):
		return UserMessage{
			Code:    "SES003",
			Message: err.Error(),
			Action:  "Check the dataset key against /api/datasets",
		}
	case errors.Is(err, ErrNoValidRows):
		return UserMessage{
			Code:    "UPL001",
			Message: "There are no valid rows to upload",
			Action:  "Fix the reported errors first",
		}
	case errors.Is(err, ErrTooManyUploads):
		return UserMessage{
			Code:    "UPL002",
			Message: "Too many uploads in progress",
			Action:  "Wait a moment and try again",
		}
	case err != nil && strings.Contains(err.Error(), "context canceled"):
		return UserMessage{
			Code:    "UPL004",
			Message: "The request was cancelled",
			Action:  "Please try again",
		}
	default:
		return UserMessage{
			Code:    "GEN001",
			Message: "Something went wrong",
			Action:  "Please try again; quote this code if the problem persists",
		}
	}
}
