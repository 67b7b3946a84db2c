package mqtt

import "errors"

// Sentinel errors for push-channel operations. Wrapped errors carry
// broker detail; match with errors.Is.
var (
	// ErrNotConnected is returned for operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish does not complete.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription is not granted.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe does not complete.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic, including an
	// unconfigured push topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
