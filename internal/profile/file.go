package profile

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileEntry is one profile in a profiles YAML file.
type FileEntry struct {
	ID         string `yaml:"id"`
	Definition `yaml:",inline"`
}

// File is the on-disk layout of a profiles YAML file:
//
//	profiles:
//	  - id: "7c9e6679-7425-40de-944b-e07fc1f90ae7"
//	    name: "water-meter"
//	    attributes: ["/3/0/0", "/3/0/1"]
//	    telemetry: ["/3/0/9"]
//	    observe: ["/3/0/9"]
//	    key_names:
//	      /3/0/0: manufacturer
//	      /3/0/1: modelNumber
//	      /3/0/9: batteryLevel
type File struct {
	Profiles []FileEntry `yaml:"profiles"`
}

// LoadFile reads profile definitions from a YAML file.
//
// Returns:
//   - map[uuid.UUID]Definition: definitions keyed by profile id
//   - error: if the file cannot be read, parsed, or an id is invalid or duplicated
func LoadFile(path string) (map[uuid.UUID]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses the YAML produced by a profiles file.
func ParseFile(data []byte) (map[uuid.UUID]Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}

	out := make(map[uuid.UUID]Definition, len(f.Profiles))
	for i, entry := range f.Profiles {
		id, err := uuid.Parse(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: profiles[%d].id %q", ErrInvalidID, i, entry.ID)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("%w: profiles[%d] duplicates id %s", ErrInvalidProfile, i, id)
		}
		out[id] = entry.Definition
	}
	return out, nil
}
