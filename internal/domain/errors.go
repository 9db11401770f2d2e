package domain

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with fmt.Errorf
// and "%w" to add context, and match them with errors.Is.
var (
	// ErrValidation reports missing or malformed request input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound reports a handle that does not resolve upstream, or an
	// account that is not in the directory.
	ErrNotFound = errors.New("not found")

	// ErrUpstream reports any other upstream failure: rate limiting,
	// transport errors, unexpected status codes, malformed payloads.
	ErrUpstream = errors.New("upstream error")

	// ErrStorage reports that the key/value store could not be used.
	ErrStorage = errors.New("storage unavailable")

	// ErrDuplicate reports an account add whose username already exists
	// (case-insensitively).
	ErrDuplicate = errors.New("already exists")
)
