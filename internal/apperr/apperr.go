// Package apperr defines the sentinel errors shared across the service
// layer. Handlers translate them to HTTP status codes; everything below the
// HTTP layer wraps them with fmt.Errorf("...: %w", ...) context.
package apperr

import "errors"

var (
	// ErrInvalidRequest rejects a request that can never succeed as given
	// (e.g. starting a session that already carries a stop time).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict rejects a request that clashes with current state
	// (duplicate running session, stopping an already-stopped session).
	// No state is changed when a conflict is returned.
	ErrConflict = errors.New("conflict")

	// ErrStorage reports a required database write that failed. Callers
	// must not assume partial success.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound reports an unknown user or session.
	ErrNotFound = errors.New("not found")
)
