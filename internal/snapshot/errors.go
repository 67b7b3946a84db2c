package snapshot

import "errors"

// Sentinel errors for snapshot persistence.
// These can be checked with errors.Is().
var (
	// ErrNotFound indicates no snapshot exists for the requested id.
	ErrNotFound = errors.New("snapshot: device not found")
)
