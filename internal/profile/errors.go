package profile

import "errors"

// Domain errors for the profile package.
var (
	// ErrProfileNotFound is returned when no profile exists for an id.
	ErrProfileNotFound = errors.New("profile: not found")

	// ErrInvalidProfile is returned when a definition fails validation.
	ErrInvalidProfile = errors.New("profile: invalid")

	// ErrInvalidID is returned when a profile id is not a UUID.
	ErrInvalidID = errors.New("profile: invalid id")
)
