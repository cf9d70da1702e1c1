package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/decisio/internal/backend"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty upload",
			err:         &LoadError{Err: ErrEmptySource},
			wantCode:    "FILE005",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "invalid workbook",
			err:         &LoadError{Err: fmt.Errorf("%w: zip: not a valid zip file", ErrInvalidWorkbook)},
			wantCode:    "FILE002",
			wantMessage: "The file is not a readable .xlsx workbook",
		},
		{
			name:        "other load failure",
			err:         &LoadError{Err: errors.New("read upload: unexpected EOF")},
			wantCode:    "FILE003",
			wantMessage: "The upload could not be read",
		},
		{
			name:        "strict sheet miss",
			err:         &LoadError{Sheet: "Q3", Err: ErrSheetNotFound},
			wantCode:    "SHEET001",
			wantMessage: "The requested sheet is not in the workbook",
		},
		{
			name:        "sheet without columns",
			err:         &LoadError{Sheet: "Empty", Err: ErrNoColumns},
			wantCode:    "SHEET002",
			wantMessage: "The sheet has no header row",
		},
		{
			name:        "row limit out of range",
			err:         &InvalidLimitError{Limit: 5, Min: 10, Max: 2000},
			wantCode:    "ROW001",
			wantMessage: "The number of rows to send is out of range",
		},
		{
			name:        "backend unreachable",
			err:         &backend.TransportError{Op: "analyze", Err: errors.New("dial tcp 127.0.0.1:5002: connect: connection refused")},
			wantCode:    "NET001",
			wantMessage: "The analysis backend could not be reached",
		},
		{
			name:        "backend timeout",
			err:         &backend.TransportError{Op: "analyze", Err: context.DeadlineExceeded},
			wantCode:    "NET002",
			wantMessage: "The analysis backend did not answer in time",
		},
		{
			name:        "backend status",
			err:         fmt.Errorf("run: %w", &backend.ProtocolError{Op: "analyze", StatusCode: 500, Body: "boom"}),
			wantCode:    "API001",
			wantMessage: "The backend returned an error status",
		},
		{
			name:        "backend bad json",
			err:         &backend.ProtocolError{Op: "health", StatusCode: 200, Err: errors.New("invalid character '<'")},
			wantCode:    "API002",
			wantMessage: "The backend answered with invalid JSON",
		},
		{
			name:        "analysis busy",
			err:         ErrAnalysisBusy,
			wantCode:    "BUSY001",
			wantMessage: "Another analysis is still running",
		},
		{
			name:        "file too large pattern",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "The upload exceeds the size limit",
		},
		{
			name:        "no file pattern",
			err:         errors.New("no file provided"),
			wantCode:    "FILE004",
			wantMessage: "No file was selected",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("dial tcp: CONNECTION REFUSED"),
			wantCode:    "NET001",
			wantMessage: "The analysis backend could not be reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrAnalysisBusy)

	expected := "Another analysis is still running (Code: BUSY001). Wait for it to finish and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "typed error is user facing",
			err:  &InvalidLimitError{Limit: 1, Min: 10, Max: 20},
			want: true,
		},
		{
			name: "pattern error is user facing",
			err:  errors.New("rate limit"),
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := &LoadError{Err: ErrEmptySource}
		userErr := NewUserError(techErr)

		if userErr.Error() != "The uploaded file is empty" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, ErrEmptySource) {
			t.Error("Unwrap() should return original error")
		}
	})
}
