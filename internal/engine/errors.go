package engine

import "errors"

// Domain errors for the engine package.
var (
	// ErrUnauthorized is returned when credential validation rejects a device.
	ErrUnauthorized = errors.New("engine: unauthorized")

	// ErrSessionNotFound is returned when an event names an unknown registration.
	ErrSessionNotFound = errors.New("engine: session not found")

	// ErrSessionNotActive is returned when an event reaches a session that is
	// still registering or already closing.
	ErrSessionNotActive = errors.New("engine: session not active")

	// ErrProfileUnavailable is returned when a session's profile cannot be loaded.
	ErrProfileUnavailable = errors.New("engine: profile unavailable")

	// errReadNotSent stands in for the outcome of a read that never left.
	errReadNotSent = errors.New("engine: read not sent")
)
