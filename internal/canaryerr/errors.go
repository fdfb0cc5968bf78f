// Package canaryerr defines the error kinds shared across the relay.
// Handlers match against these sentinels with errors.Is to pick status
// codes and wire events.
package canaryerr

import "errors"

var (
	// ErrAuth indicates a bad or expired credential.
	ErrAuth = errors.New("invalid or expired credential")
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation (duplicate username).
	ErrConflict = errors.New("already exists")
	// ErrNotFound indicates an unknown username or identity.
	ErrNotFound = errors.New("not found")
	// ErrPersistence indicates a storage layer failure.
	ErrPersistence = errors.New("storage failure")
	// ErrAuthorization indicates the acting identity does not match the target.
	ErrAuthorization = errors.New("not authorized")
)
