package session

import "errors"

// Domain errors for the session package.
var (
	// ErrSessionNotFound is returned when a registration id has no session.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrInvalidTransition is returned for a phase change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("session: invalid phase transition")

	// ErrUnknownPhase is returned when decoding a phase name that does not exist.
	ErrUnknownPhase = errors.New("session: unknown phase")
)
