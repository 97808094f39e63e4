package backend

import "errors"

// Domain errors for the backend package.
var (
	// ErrNotConnected is returned when the uplink broker is unreachable.
	ErrNotConnected = errors.New("backend: not connected")

	// ErrPublishFailed wraps a failed uplink publish.
	ErrPublishFailed = errors.New("backend: publish failed")

	// ErrCredentialNotFound is returned when no credential exists for an endpoint.
	ErrCredentialNotFound = errors.New("backend: credential not found")

	// ErrInvalidCredential is returned when a credential fails validation.
	ErrInvalidCredential = errors.New("backend: invalid credential")
)
