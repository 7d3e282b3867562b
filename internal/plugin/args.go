package plugin

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

func argObject(args ir.IRValue) ir.IRObject {
	obj, _ := args.(ir.IRObject)
	return obj
}

func argString(args ir.IRValue, key string) (string, bool) {
	v, ok := argObject(args)[key]
	if !ok {
		return "", false
	}
	s, ok := v.(ir.IRString)
	return string(s), ok
}

// stringOrKey accepts either a bare string or an object carrying the string
// under key.
func stringOrKey(args ir.IRValue, key string) (string, bool) {
	if s, ok := args.(ir.IRString); ok {
		return string(s), true
	}
	return argString(args, key)
}

func argBool(args ir.IRValue, key string) (bool, bool) {
	v, ok := argObject(args)[key]
	if !ok {
		return false, false
	}
	b, ok := v.(ir.IRBool)
	return bool(b), ok
}

// stringList accepts a bare string, a list of strings, or an object holding
// either under key.
func stringList(args ir.IRValue, key string) ([]string, error) {
	switch v := args.(type) {
	case nil:
		return nil, nil
	case ir.IRString:
		return []string{string(v)}, nil
	case ir.IRArray:
		out := make([]string, 0, len(v))
		for i, elem := range v {
			s, ok := elem.(ir.IRString)
			if !ok {
				return nil, errors.Newf("element %d is not a string", i)
			}
			out = append(out, string(s))
		}
		return out, nil
	case ir.IRObject:
		inner, ok := v[key]
		if !ok {
			return nil, nil
		}
		if _, nested := inner.(ir.IRObject); nested {
			return nil, errors.Newf("%q must be a string or a list of strings", key)
		}
		return stringList(inner, key)
	default:
		return nil, errors.Newf("expected a string or a list of strings, got %T", args)
	}
}

// requireString is stringOrKey that fails when the string is missing.
func requireString(args ir.IRValue, key string) (string, error) {
	s, ok := stringOrKey(args, key)
	if !ok || s == "" {
		return "", errors.Newf("argument %q is required", key)
	}
	return s, nil
}
