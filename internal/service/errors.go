package service

import "errors"

// Sentinel errors the handlers translate into HTTP status codes.
// Services wrap them with context via fmt.Errorf("%w: ...").
var (
	// ErrValidation marks malformed input (missing title, non-positive
	// quantity, empty rejection reason, disallowed file type).
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks a caller whose role does not permit the
	// attempted operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrConflict marks a transition attempted on a request that is no
	// longer in the required state (already decided, not editable).
	ErrConflict = errors.New("conflicting state")

	// ErrNotFound marks a missing record, including records hidden from
	// the caller by visibility scoping.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks failed credential checks (bad password,
	// unknown or expired refresh token).
	ErrUnauthorized = errors.New("authentication failed")
)
