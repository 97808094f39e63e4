package lwm2m

import "errors"

// Domain errors for the LwM2M bridge package.
var (
	// ErrNotConnected is returned when a request cannot be handed to the
	// broker because the MQTT client is disconnected.
	ErrNotConnected = errors.New("lwm2m bridge: mqtt not connected")

	// ErrInvalidMessage is returned when an inbound payload cannot be decoded.
	ErrInvalidMessage = errors.New("lwm2m bridge: invalid message")

	// ErrInvalidTopic is returned when an inbound topic does not carry the
	// expected identifier.
	ErrInvalidTopic = errors.New("lwm2m bridge: invalid topic")

	// ErrInvalidValue is returned when a resource value does not match its
	// declared type.
	ErrInvalidValue = errors.New("lwm2m bridge: invalid resource value")

	// ErrRequestFailed wraps the error a device or the server stack reported
	// for a request.
	ErrRequestFailed = errors.New("lwm2m bridge: request failed")

	// ErrStopped is returned for requests issued after Stop.
	ErrStopped = errors.New("lwm2m bridge: stopped")
)
