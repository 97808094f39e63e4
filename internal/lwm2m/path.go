package lwm2m

import (
	"fmt"
	"strconv"
	"strings"
)

// Unset marks a path segment that was absent from the path string.
const Unset = -1

// maxSegments is object/instance/resource. Resource-instance addressing is not used.
const maxSegments = 3

// PathKey addresses a node in the object → instance → resource tree.
//
// A key with InstanceID == Unset references a whole object and is only used
// during discovery. A key with ResourceID == Unset and InstanceID >= 0 is an
// instance (the unit of bulk reads). A key with ResourceID >= 0 is a concrete
// resource and is the only kind that carries a value.
type PathKey struct {
	ObjectID   int
	InstanceID int
	ResourceID int
}

// NewPath builds a PathKey from up to three ids; missing ids are Unset.
func NewPath(ids ...int) PathKey {
	p := PathKey{ObjectID: Unset, InstanceID: Unset, ResourceID: Unset}
	if len(ids) > 0 {
		p.ObjectID = ids[0]
	}
	if len(ids) > 1 {
		p.InstanceID = ids[1]
	}
	if len(ids) > 2 {
		p.ResourceID = ids[2]
	}
	return p
}

// ParsePath parses "/3", "/3/0" or "/3/0/1". The leading slash is optional.
//
// Returns ErrMalformedPath for empty strings, non-numeric or negative
// segments, and paths deeper than object/instance/resource.
func ParsePath(s string) (PathKey, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return PathKey{}, fmt.Errorf("%w: %q", ErrMalformedPath, s)
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) > maxSegments {
		return PathKey{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedPath, s, len(parts))
	}

	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil || id < 0 {
			return PathKey{}, fmt.Errorf("%w: %q", ErrMalformedPath, s)
		}
		ids = append(ids, id)
	}

	return NewPath(ids...), nil
}

// MustParsePath is ParsePath for literals known to be valid. It panics otherwise.
func MustParsePath(s string) PathKey {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsObject reports whether the key references a whole object.
func (p PathKey) IsObject() bool {
	return p.ObjectID >= 0 && p.InstanceID == Unset
}

// IsInstance reports whether the key references an object instance.
func (p PathKey) IsInstance() bool {
	return p.ObjectID >= 0 && p.InstanceID >= 0 && p.ResourceID == Unset
}

// IsResource reports whether the key references a concrete resource.
func (p PathKey) IsResource() bool {
	return p.ObjectID >= 0 && p.InstanceID >= 0 && p.ResourceID >= 0
}

// Instance returns the enclosing instance path.
func (p PathKey) Instance() PathKey {
	return PathKey{ObjectID: p.ObjectID, InstanceID: p.InstanceID, ResourceID: Unset}
}

// Contains reports whether other lies at or below p in the tree.
func (p PathKey) Contains(other PathKey) bool {
	if p.ObjectID != other.ObjectID {
		return false
	}
	if p.InstanceID == Unset {
		return true
	}
	if p.InstanceID != other.InstanceID {
		return false
	}
	return p.ResourceID == Unset || p.ResourceID == other.ResourceID
}

// String renders the canonical slash form, e.g. "/3/0/1".
func (p PathKey) String() string {
	var b strings.Builder
	for _, id := range []int{p.ObjectID, p.InstanceID, p.ResourceID} {
		if id == Unset {
			break
		}
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(id))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
