package sentinel

import "errors"

// Sentinel dependency errors. Stores return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	// ErrNotUpdated is returned by replace-by-id when zero documents matched.
	// It does not distinguish a missing document from an unmodified one.
	ErrNotUpdated  = errors.New("not updated")
	ErrUnavailable = errors.New("unavailable")
)
