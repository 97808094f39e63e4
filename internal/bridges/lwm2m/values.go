package lwm2m

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	model "github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m"
)

// Resource converts the wire value into a typed resource.
//
// CBOR integers arrive as uint64 or int64 and floats as float32 or float64;
// each is normalised to the Go type the declared resource type renders
// from. Times may be a CBOR time tag or Unix seconds; object links may be
// "object:instance" strings.
func (v ResourceValue) Resource() (model.Resource, error) {
	typ := model.ResourceType(v.Type)
	if v.Values != nil {
		values := make(map[int]any, len(v.Values))
		for idx, raw := range v.Values {
			val, err := normalise(typ, raw)
			if err != nil {
				return model.Resource{}, fmt.Errorf("resource %d[%d]: %w", v.ID, idx, err)
			}
			values[idx] = val
		}
		return model.NewMultiple(v.ID, typ, values), nil
	}

	if v.Value == nil {
		return model.NewSingle(v.ID, typ, nil), nil
	}
	val, err := normalise(typ, v.Value)
	if err != nil {
		return model.Resource{}, fmt.Errorf("resource %d: %w", v.ID, err)
	}
	return model.NewSingle(v.ID, typ, val), nil
}

// resources converts a batch, stopping at the first bad value.
func resources(values []ResourceValue) ([]model.Resource, error) {
	out := make([]model.Resource, 0, len(values))
	for _, rv := range values {
		r, err := rv.Resource()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func normalise(typ model.ResourceType, raw any) (any, error) {
	switch typ {
	case model.TypeString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case model.TypeInteger:
		if n, ok := asInt64(raw); ok {
			return n, nil
		}
	case model.TypeUnsigned:
		switch n := raw.(type) {
		case uint64:
			return n, nil
		case int64:
			if n >= 0 {
				return uint64(n), nil
			}
		}
	case model.TypeFloat:
		switch f := raw.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		default:
			if n, ok := asInt64(raw); ok {
				return float64(n), nil
			}
		}
	case model.TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case model.TypeOpaque:
		switch b := raw.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	case model.TypeTime:
		switch t := raw.(type) {
		case time.Time:
			return t.UTC(), nil
		case float64:
			sec, frac := math.Modf(t)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
		default:
			if n, ok := asInt64(raw); ok {
				return time.Unix(n, 0).UTC(), nil
			}
		}
	case model.TypeObjLink:
		if s, ok := raw.(string); ok {
			if link, ok := parseObjectLink(s); ok {
				return link, nil
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidValue, typ)
	}
	return nil, fmt.Errorf("%w: %T for %s", ErrInvalidValue, raw, typ)
}

func asInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case int:
		return int64(n), true
	}
	return 0, false
}

func parseObjectLink(s string) (model.ObjectLink, bool) {
	obj, inst, ok := strings.Cut(s, ":")
	if !ok {
		return model.ObjectLink{}, false
	}
	o, err := strconv.Atoi(obj)
	if err != nil {
		return model.ObjectLink{}, false
	}
	i, err := strconv.Atoi(inst)
	if err != nil {
		return model.ObjectLink{}, false
	}
	return model.ObjectLink{ObjectID: o, InstanceID: i}, true
}
