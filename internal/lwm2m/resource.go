package lwm2m

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ResourceType is the declared data type of a resource.
type ResourceType string

// Resource data types.
const (
	TypeString   ResourceType = "string"
	TypeInteger  ResourceType = "integer"
	TypeUnsigned ResourceType = "unsigned"
	TypeFloat    ResourceType = "float"
	TypeBoolean  ResourceType = "boolean"
	TypeOpaque   ResourceType = "opaque"
	TypeTime     ResourceType = "time"
	TypeObjLink  ResourceType = "objlnk"
)

// ObjectLink is the value of an objlnk resource.
type ObjectLink struct {
	ObjectID   int
	InstanceID int
}

// String renders the link as "object:instance".
func (l ObjectLink) String() string {
	return fmt.Sprintf("%d:%d", l.ObjectID, l.InstanceID)
}

// Resource is one resource value. Single resources use Value; multi-instance
// resources set Multiple and keep their entries in Values keyed by index.
type Resource struct {
	ID       int
	Type     ResourceType
	Multiple bool
	Value    any
	Values   map[int]any
}

// NewSingle builds a single-value resource.
func NewSingle(id int, typ ResourceType, value any) Resource {
	return Resource{ID: id, Type: typ, Value: value}
}

// NewMultiple builds a multi-instance resource. The map is copied.
func NewMultiple(id int, typ ResourceType, values map[int]any) Resource {
	cp := make(map[int]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Resource{ID: id, Type: typ, Multiple: true, Values: cp}
}

// HasValue reports whether the resource carries anything to render.
func (r Resource) HasValue() bool {
	if r.Multiple {
		return len(r.Values) > 0
	}
	return r.Value != nil
}

// Render returns the string exposed to the backend.
//
// Opaque values render as lowercase hex, multi-instance resources as
// "{0=10, 1=20}" ordered by index, everything else in its natural form.
// Rendering is pure: the same stored resource always renders the same way.
func (r Resource) Render() string {
	if r.Multiple {
		keys := make([]int, 0, len(r.Values))
		for k := range r.Values {
			keys = append(keys, k)
		}
		sort.Ints(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, strconv.Itoa(k)+"="+renderScalar(r.Type, r.Values[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return renderScalar(r.Type, r.Value)
}

func renderScalar(typ ResourceType, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return hex.EncodeToString(val)
	case string:
		if typ == TypeOpaque {
			return hex.EncodeToString([]byte(val))
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case ObjectLink:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
