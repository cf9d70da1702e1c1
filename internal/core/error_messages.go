// Package core provides the business logic behind the Decisio console.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When operators hit an error they can quote the code, and support can match it
// against the raw detail that is always shown next to the message.
//
// Typed errors are matched first (errors.As / errors.Is), then the error text is
// matched against known patterns, then ERR000 is used.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The upload exceeds the size limit
//	          Action: Trim the workbook or raise UPLOAD_MAX_FILE_SIZE
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Invalid workbook: The file is not a readable .xlsx workbook
//	          Action: Save the file as .xlsx and upload it again
//	          Typed: ErrInvalidWorkbook
//
//	FILE003 - Unreadable upload: The upload could not be read
//	          Action: Upload the file again
//	          Typed: any other *LoadError
//
//	FILE004 - No file: No file was selected
//	          Action: Choose an .xlsx file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Upload a workbook that contains data
//	          Typed: ErrEmptySource
//
// # Sheet Errors (SHEET001-SHEET099)
//
//	SHEET001 - Sheet not found: The requested sheet is not in the workbook
//	           Action: Check the sheet name or leave it blank for the first sheet
//	           Typed: ErrSheetNotFound
//
//	SHEET002 - No columns: The sheet has no header row
//	           Action: Put column names in the first row of the sheet
//	           Typed: ErrNoColumns
//
// # Request Errors (ROW001-ROW099)
//
//	ROW001 - Invalid row limit: The number of rows to send is out of range
//	         Action: Pick a row count inside the allowed range
//	         Typed: *InvalidLimitError
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Backend unreachable: The analysis backend could not be reached
//	         Action: Check BACKEND_BASE_URL and that the backend is running
//	         Typed: *backend.TransportError
//
//	NET002 - Backend timeout: The analysis backend did not answer in time
//	         Action: Send fewer rows or try again later
//	         Typed: *backend.TransportError with Timeout()
//
// # Backend API Errors (API001-API099)
//
//	API001 - Backend error: The backend returned an error status
//	         Action: Check the raw detail and the backend logs
//	         Typed: *backend.ProtocolError without a decode error
//
//	API002 - Bad backend response: The backend answered with invalid JSON
//	         Action: Check that the base URL points at the analysis backend
//	         Typed: *backend.ProtocolError with a decode error
//
// # Busy and Rate Limiting
//
//	BUSY001 - Analysis in progress: Another analysis is still running
//	          Action: Wait for it to finish and try again
//	          Typed: ErrAnalysisBusy
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # For Support Staff
//
// When an operator reports an error code:
//  1. Look up the code in this reference
//  2. Read the raw detail shown under the message
//  3. If ERR000, check application logs for the original technical error
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/decisio/internal/backend"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "The upload exceeds the size limit",
		Action:  "Trim the workbook or raise UPLOAD_MAX_FILE_SIZE",
		Code:    "FILE001",
	}
	msgInvalidWorkbook = UserMessage{
		Message: "The file is not a readable .xlsx workbook",
		Action:  "Save the file as .xlsx and upload it again",
		Code:    "FILE002",
	}
	msgUnreadableUpload = UserMessage{
		Message: "The upload could not be read",
		Action:  "Upload the file again",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Choose an .xlsx file to upload",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a workbook that contains data",
		Code:    "FILE005",
	}
	msgSheetNotFound = UserMessage{
		Message: "The requested sheet is not in the workbook",
		Action:  "Check the sheet name or leave it blank for the first sheet",
		Code:    "SHEET001",
	}
	msgNoColumns = UserMessage{
		Message: "The sheet has no header row",
		Action:  "Put column names in the first row of the sheet",
		Code:    "SHEET002",
	}
	msgInvalidLimit = UserMessage{
		Message: "The number of rows to send is out of range",
		Action:  "Pick a row count inside the allowed range",
		Code:    "ROW001",
	}
	msgUnreachable = UserMessage{
		Message: "The analysis backend could not be reached",
		Action:  "Check BACKEND_BASE_URL and that the backend is running",
		Code:    "NET001",
	}
	msgTimeout = UserMessage{
		Message: "The analysis backend did not answer in time",
		Action:  "Send fewer rows or try again later",
		Code:    "NET002",
	}
	msgBackendStatus = UserMessage{
		Message: "The backend returned an error status",
		Action:  "Check the raw detail and the backend logs",
		Code:    "API001",
	}
	msgBackendDecode = UserMessage{
		Message: "The backend answered with invalid JSON",
		Action:  "Check that the base URL points at the analysis backend",
		Code:    "API002",
	}
	msgBusy = UserMessage{
		Message: "Another analysis is still running",
		Action:  "Wait for it to finish and try again",
		Code:    "BUSY001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps error text (case-insensitive) to user messages for errors
// that reach MapError untyped, e.g. from net/http or the multipart reader.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "empty file", msg: msgEmptyFile},
	{pattern: "connection refused", msg: msgUnreachable},
	{pattern: "no such host", msg: msgUnreachable},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := svc.Analyze(ctx, in)
//	msg := MapError(err)
//	// msg.Code == "NET001" when the backend is down
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	switch {
	case errors.Is(err, ErrEmptySource):
		return msgEmptyFile, true
	case errors.Is(err, ErrInvalidWorkbook):
		return msgInvalidWorkbook, true
	case errors.Is(err, ErrSheetNotFound):
		return msgSheetNotFound, true
	case errors.Is(err, ErrNoColumns):
		return msgNoColumns, true
	case errors.Is(err, ErrAnalysisBusy):
		return msgBusy, true
	}

	var limitErr *InvalidLimitError
	if errors.As(err, &limitErr) {
		return msgInvalidLimit, true
	}

	var transportErr *backend.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return msgTimeout, true
		}
		return msgUnreachable, true
	}

	var protocolErr *backend.ProtocolError
	if errors.As(err, &protocolErr) {
		if protocolErr.Err != nil {
			return msgBackendDecode, true
		}
		return msgBackendStatus, true
	}

	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return msgUnreadableUpload, true
	}

	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
