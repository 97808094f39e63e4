package profile

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
)

// Definition is the typed reporting configuration for one device class as it
// arrives from configuration files, the database, the admin API or the
// backend's configuration topic.
type Definition struct {
	Name       string            `yaml:"name" json:"name" cbor:"name"`
	Attributes []string          `yaml:"attributes" json:"attributes" cbor:"attributes"`
	Telemetry  []string          `yaml:"telemetry" json:"telemetry" cbor:"telemetry"`
	Observe    []string          `yaml:"observe" json:"observe" cbor:"observe"`
	KeyNames   map[string]string `yaml:"key_names" json:"keyNames" cbor:"key_names"`
}

// Snapshot is one compiled, immutable version of a profile.
// All paths are canonical ("/3/0/1").
type Snapshot struct {
	Name       string
	Attributes Set
	Telemetry  Set
	Observe    Set
	KeyNames   map[string]string
}

// Empty returns a snapshot with no paths.
func Empty() *Snapshot {
	return &Snapshot{
		Attributes: Set{},
		Telemetry:  Set{},
		Observe:    Set{},
		KeyNames:   map[string]string{},
	}
}

// Compile canonicalises a definition.
//
// Malformed paths are skipped one by one and returned as errors wrapping
// lwm2m.ErrMalformedPath; the remaining entries still form a usable snapshot.
func Compile(def Definition) (*Snapshot, []error) {
	var errs []error
	snap := &Snapshot{
		Name:       strings.TrimSpace(def.Name),
		Attributes: compileSet("attributes", def.Attributes, &errs),
		Telemetry:  compileSet("telemetry", def.Telemetry, &errs),
		Observe:    compileSet("observe", def.Observe, &errs),
		KeyNames:   make(map[string]string, len(def.KeyNames)),
	}

	for raw, name := range def.KeyNames {
		p, err := lwm2m.ParsePath(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("key_names: %w", err))
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			snap.KeyNames[p.String()] = name
		}
	}

	return snap, errs
}

func compileSet(field string, paths []string, errs *[]error) Set {
	out := make(Set, len(paths))
	for _, raw := range paths {
		p, err := lwm2m.ParsePath(raw)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		out.Add(p.String())
	}
	return out
}

// Definition converts the snapshot back into its wire form with sorted lists.
func (s *Snapshot) Definition() Definition {
	names := make(map[string]string, len(s.KeyNames))
	for k, v := range s.KeyNames {
		names[k] = v
	}
	return Definition{
		Name:       s.Name,
		Attributes: s.Attributes.Sorted(),
		Telemetry:  s.Telemetry.Sorted(),
		Observe:    s.Observe.Sorted(),
		KeyNames:   names,
	}
}

// Reported is the union of attribute and telemetry paths.
func (s *Snapshot) Reported() Set {
	return s.Attributes.Union(s.Telemetry)
}

// DesiredObservations returns the concrete resource paths that should be
// observed: members of Observe that are also an attribute or telemetry.
func (s *Snapshot) DesiredObservations() Set {
	out := make(Set)
	for p := range Intersect(s.Observe, s.Reported()) {
		if key, err := lwm2m.ParsePath(p); err == nil && key.IsResource() {
			out.Add(p)
		}
	}
	return out
}

// KeyName returns the display name configured for path.
func (s *Snapshot) KeyName(path string) (string, bool) {
	name, ok := s.KeyNames[path]
	return name, ok && name != ""
}

// Equal reports whether two snapshots configure the same reporting.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if !s.Attributes.Equal(other.Attributes) ||
		!s.Telemetry.Equal(other.Telemetry) ||
		!s.Observe.Equal(other.Observe) ||
		len(s.KeyNames) != len(other.KeyNames) {
		return false
	}
	for k, v := range s.KeyNames {
		if other.KeyNames[k] != v {
			return false
		}
	}
	return true
}
