package backend

import (
	"errors"
	"fmt"
)

// Backend-specific errors
var (
	// ErrMalformedResponse is returned when a 2xx remote response lacks the
	// fields a successful creation must carry (notably the item URL).
	ErrMalformedResponse = errors.New("malformed remote response")

	// ErrUnknownBackend is returned when no backend is registered under the
	// requested name.
	ErrUnknownBackend = errors.New("unknown backend")
)

// RemoteError preserves a remote rejection so the caller can mirror the
// remote status code and diagnostic body verbatim.
type RemoteError struct {
	StatusCode int
	Body       []byte
}

// Error returns the error message
func (e *RemoteError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("remote rejected request (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote rejected request (status %d)", e.StatusCode)
}
