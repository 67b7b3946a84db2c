package tuya

import "errors"

// Sentinel errors for Tuya cloud operations.
// These can be checked with errors.Is().
var (
	// ErrAuthFailed indicates token acquisition or refresh was
	// rejected by the cloud.
	ErrAuthFailed = errors.New("tuya: authentication failed")

	// ErrRequestFailed indicates the cloud returned success=false
	// for a business request.
	ErrRequestFailed = errors.New("tuya: request failed")

	// ErrDeviceNotFound indicates the cloud has no device with the
	// requested id.
	ErrDeviceNotFound = errors.New("tuya: device not found")

	// ErrBadEnvelope indicates a push payload that does not decode
	// into a known envelope shape.
	ErrBadEnvelope = errors.New("tuya: malformed push envelope")
)
