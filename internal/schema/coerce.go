package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/bibform/internal/ir"
)

// NeedsCoercion reports whether s or any nested schema sets force.
func NeedsCoercion(s *ir.Schema) bool {
	if s == nil {
		return false
	}
	if s.Force {
		return true
	}
	for _, sub := range s.Properties {
		if NeedsCoercion(sub) {
			return true
		}
	}
	return NeedsCoercion(s.Items)
}

// Coerce applies every force declaration in s to v and returns the
// converted value. v itself is not modified.
func Coerce(s *ir.Schema, v ir.IRValue) (ir.IRValue, error) {
	return coerceAt(s, v, "")
}

func coerceAt(s *ir.Schema, v ir.IRValue, path string) (ir.IRValue, error) {
	if s == nil || v == nil {
		return v, nil
	}
	if s.Force {
		converted, err := convert(s.Type, v)
		if err != nil {
			return nil, &ValidationError{Code: ErrCoercion, Path: path, Message: err.Error()}
		}
		v = converted
	}

	switch val := v.(type) {
	case ir.IRObject:
		if len(s.Properties) == 0 {
			return val, nil
		}
		out := make(ir.IRObject, len(val))
		for _, k := range val.SortedKeys() {
			c, err := coerceAt(s.Properties[k], val[k], join(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case ir.IRArray:
		if s.Items == nil {
			return val, nil
		}
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			c, err := coerceAt(s.Items, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}

func convert(typ string, v ir.IRValue) (ir.IRValue, error) {
	switch typ {
	case "", TypeAny:
		return v, nil
	case TypeString:
		switch val := v.(type) {
		case ir.IRString:
			return val, nil
		case ir.IRInt, ir.IRBool:
			s, _ := ir.AsString(val)
			return ir.IRString(s), nil
		}
	case TypeInteger:
		switch val := v.(type) {
		case ir.IRInt:
			return val, nil
		case ir.IRString:
			n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to integer", string(val))
			}
			return ir.IRInt(n), nil
		case ir.IRBool:
			if val {
				return ir.IRInt(1), nil
			}
			return ir.IRInt(0), nil
		}
	case TypeBoolean:
		switch val := v.(type) {
		case ir.IRBool:
			return val, nil
		case ir.IRString:
			b, err := strconv.ParseBool(strings.TrimSpace(string(val)))
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to boolean", string(val))
			}
			return ir.IRBool(b), nil
		case ir.IRInt:
			return ir.IRBool(val != 0), nil
		}
	case TypeList:
		return ir.AsList(v), nil
	case TypeObject:
		if obj, ok := v.(ir.IRObject); ok {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %s to %s", KindOf(v), typ)
}
