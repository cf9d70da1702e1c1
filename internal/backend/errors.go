package backend

import (
	"errors"
	"fmt"
)

// TransportError means the request never produced an HTTP response:
// connection refused, DNS failure, TLS failure or timeout.
type TransportError struct {
	Op  string // "health" or "analyze"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend %s: transport error calling %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *TransportError) Timeout() bool {
	var te interface{ Timeout() bool }
	if errors.As(e.Err, &te) {
		return te.Timeout()
	}
	return false
}

// ProtocolError means the backend answered but the answer was unusable:
// a non-2xx status or a body that is not the expected JSON.
type ProtocolError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string // bounded excerpt of the response body
	Err        error  // decode error, nil for status failures
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: undecodable response from %s (status %d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("backend %s: %s returned status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend %s: %s returned status %d", e.Op, e.URL, e.StatusCode)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
