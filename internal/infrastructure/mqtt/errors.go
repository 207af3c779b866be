package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Callers can test for these with errors.Is after unwrapping.
var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed indicates a publish operation failed.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscribe operation failed.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrPublishTimeout indicates a publish did not complete in time.
	ErrPublishTimeout = errors.New("mqtt: publish timeout")
)
