package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode) or renders the dashboard
//     with errorView(title, err)
//  3. Error is mapped via core.MapError to get a user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message and the raw error detail are rendered for the client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/decisio/internal/backend"
	"github.com/JonMunkholm/decisio/internal/core"
	"github.com/JonMunkholm/decisio/internal/logging"
	"github.com/JonMunkholm/decisio/internal/web/templates"
)

// errNoFile is reported when a form arrives without the file field.
var errNoFile = errors.New("no file provided")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
// Detail carries the raw error text.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor picks the HTTP status for an action error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var limitErr *core.InvalidLimitError
	var loadErr *core.LoadError
	var transportErr *backend.TransportError
	var protocolErr *backend.ProtocolError

	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, http.ErrNotMultipart), errors.As(err, &limitErr):
		return http.StatusBadRequest
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrAnalysisBusy):
		return http.StatusServiceUnavailable
	case errors.As(err, &transportErr):
		if transportErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &protocolErr):
		return http.StatusBadGateway
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case strings.Contains(err.Error(), "request body too large"):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// logError logs the technical error with request context.
func logError(r *http.Request, err error, statusCode int, code string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
	)
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate
// response based on the request type (JSON or HTML).
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	logError(r, err, statusCode, userMsg.Code)

	if wantsJSON(r) {
		writeJSON(w, r, statusCode, ErrorResponse{
			Error:     userMsg.Message,
			Message:   userMsg.Message,
			Action:    userMsg.Action,
			Code:      userMsg.Code,
			Detail:    err.Error(),
			RequestID: requestID(r),
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	page := templates.Page("Decisio", templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code))
	if renderErr := page.Render(r.Context(), w); renderErr != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", renderErr)
	}
}

// errorView maps err for the dashboard and logs it.
func errorView(r *http.Request, title string, err error) *templates.ErrorView {
	msg := core.MapError(err)
	logError(r, err, statusFor(err), msg.Code)
	return &templates.ErrorView{
		Title:   title,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  err.Error(),
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}

	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// requestID returns chi's request id for correlation in responses.
func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
