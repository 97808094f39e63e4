package profile

import "sort"

// Set is an unordered collection of canonical path strings.
type Set map[string]struct{}

// NewSet builds a set from the given paths.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set is empty.
func (s Set) Has(path string) bool {
	_, ok := s[path]
	return ok
}

// Add inserts path.
func (s Set) Add(path string) {
	s[path] = struct{}{}
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same members.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Union returns the members of s or other.
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Minus returns the members of s that are not in other.
func (s Set) Minus(other Set) Set {
	out := make(Set)
	for p := range s {
		if !other.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Delta is the result of Diff.
type Delta struct {
	Added   Set
	Removed Set
}

// Diff computes the membership change from old to next.
//
// It returns nil when both sets hold the same members, so callers can skip
// all downstream work with a single nil check.
func Diff(old, next Set) *Delta {
	if old.Equal(next) {
		return nil
	}
	return &Delta{
		Added:   next.Minus(old),
		Removed: old.Minus(next),
	}
}

// AddedPaths returns d.Added, tolerating a nil delta.
func (d *Delta) AddedPaths() Set {
	if d == nil {
		return Set{}
	}
	return d.Added
}

// RemovedPaths returns d.Removed, tolerating a nil delta.
func (d *Delta) RemovedPaths() Set {
	if d == nil {
		return Set{}
	}
	return d.Removed
}

// Intersect returns the members present in both a and b.
func Intersect(a, b Set) Set {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(Set)
	for p := range a {
		if b.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}
