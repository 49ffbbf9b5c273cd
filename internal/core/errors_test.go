package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"bad request", BadRequest("unknown field %q", "color"), "GEN002"},
		{"row limit", &RowLimitError{Count: 80, Max: 60}, "FILE003"},
		{"unreadable", ErrUnreadableFile, "FILE001"},
		{"wrapped unreadable", fmt.Errorf("open sheet: %w", ErrUnreadableFile), "FILE001"},
		{"empty sheet", ErrEmptySheet, "FILE002"},
		{"too large", ErrFileTooLarge, "FILE004"},
		{"session not found", &SessionNotFoundError{ID: "abc"}, "SES001"},
		{"wrong phase", &PhaseError{Op: "upload", Phase: PhaseComplete}, "SES002"},
		{"unknown dataset", &UnknownDatasetError{Key: "nope"}, "SES003"},
		{"no valid rows", ErrNoValidRows, "UPL001"},
		{"too many uploads", ErrTooManyUploads, "UPL002"},
		{"cancelled", context.Canceled, "UPL004"},
		{"unexpected", errors.New("disk on fire"), "GEN001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			if msg.Code != tt.code {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, msg.Code, tt.code)
			}
			if msg.Message == "" {
				t.Error("message must not be empty")
			}
		})
	}
}

func TestMapError_HidesInternalDetail(t *testing.T) {
	msg := MapError(errors.New("pq: connection refused on 10.0.0.5"))
	if msg.Code != "GEN001" {
		t.Fatalf("code = %q", msg.Code)
	}
	if msg.Message != "Something went wrong" {
		t.Errorf("internal detail leaked: %q", msg.Message)
	}
}

func TestErrorStrings(t *testing.T) {
	if got := (&RowLimitError{Count: 61, Max: 60}).Error(); got != "file has 61 rows, maximum allowed is 60" {
		t.Errorf("RowLimitError = %q", got)
	}
	if got := (&PhaseError{Op: "cancel", Phase: PhaseValidated}).Error(); got != `cannot cancel in phase "validated"` {
		t.Errorf("PhaseError = %q", got)
	}
}
