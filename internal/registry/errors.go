package registry

import "errors"

// Sentinel errors for registry operations.
// These can be checked with errors.Is().
var (
	// ErrDeviceNotFound indicates no device with the requested id is
	// registered.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrSourceExists indicates a source with the same name is
	// already registered.
	ErrSourceExists = errors.New("registry: source already registered")

	// ErrNoSource indicates no source is available to carry an
	// outbound call.
	ErrNoSource = errors.New("registry: no source available")
)
