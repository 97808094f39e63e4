package lwm2m

import "errors"

// Domain errors for the lwm2m package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, lwm2m.ErrInstanceNotFound) {
//	    // observation outran discovery
//	}
var (
	// ErrMalformedPath is returned when a path string is not /object[/instance[/resource]].
	ErrMalformedPath = errors.New("lwm2m: malformed path")

	// ErrNotResourcePath is returned when an operation needs a concrete resource path.
	ErrNotResourcePath = errors.New("lwm2m: not a resource path")

	// ErrObjectNotFound is returned when the model has no entry for the object id.
	ErrObjectNotFound = errors.New("lwm2m: object not found")

	// ErrInstanceNotFound is returned when the object has no entry for the instance id.
	ErrInstanceNotFound = errors.New("lwm2m: instance not found")
)
