package client

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned once the session cannot be recovered:
// the refresh exchange failed or the replayed call was rejected again.
// The credential store is cleared before this error surfaces, so the
// caller must log in again.
var ErrSessionExpired = errors.New("session expired: re-authentication required")

// Error kinds classify remote failures for callers that branch on the
// class of failure rather than the message.
const (
	KindAuthenticationExpired = "authentication_expired"
	KindAuthorizationDenied   = "authorization_denied"
	KindValidationError       = "validation_error"
	KindConflictError         = "conflict_error"
	KindTransportError        = "transport_error"
)

// APIError is a classified failure from the remote authority or from a
// local precondition check.
type APIError struct {
	Kind       string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is(err, ErrSessionExpired) match expired sessions.
func (e *APIError) Unwrap() error {
	if e.Kind == KindAuthenticationExpired {
		return ErrSessionExpired
	}
	return nil
}

func validationError(format string, args ...interface{}) *APIError {
	return &APIError{Kind: KindValidationError, Message: fmt.Sprintf(format, args...)}
}

// classify maps a remote error response to an APIError. The machine
// code takes precedence; the HTTP status is the fallback.
func classify(statusCode int, code, message string) *APIError {
	kind := KindTransportError
	switch code {
	case "validation_error":
		kind = KindValidationError
	case "authorization_denied":
		kind = KindAuthorizationDenied
	case "conflict":
		kind = KindConflictError
	case "authentication_required":
		kind = KindAuthenticationExpired
	case "":
		switch statusCode {
		case 400:
			kind = KindValidationError
		case 401:
			kind = KindAuthenticationExpired
		case 403:
			kind = KindAuthorizationDenied
		case 409:
			kind = KindConflictError
		}
	}
	return &APIError{Kind: kind, StatusCode: statusCode, Code: code, Message: message}
}
