package domain

import "errors"

// Error taxonomy. Auth and codec failures are fatal to a streaming
// session; everything else is scoped to the request or turn it occurred in.
var (
	// ErrNotFound means a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means a credential is missing or could not be exchanged.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput means a request failed validation before any mutation.
	ErrInvalidInput = errors.New("invalid input")
)
