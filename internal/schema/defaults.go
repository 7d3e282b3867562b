package schema

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
)

// Producers looks up named default producers. *plugin.Catalog implements it.
type Producers interface {
	Default(name string) (plugin.DefaultProducer, bool)
}

// Default computes the default value declared by s. Object schemas without
// a default of their own are built from their properties' defaults. The
// second result is false when the schema declares no default anywhere.
func Default(s *ir.Schema, producers Producers, env plugin.ProducerEnv) (ir.IRValue, bool, error) {
	if s == nil {
		return nil, false, nil
	}

	var value ir.IRValue
	switch {
	case s.Default != nil:
		value = ir.Clone(s.Default)
	case s.DefaultFunc != "":
		produce, ok := lookupProducer(producers, s.DefaultFunc)
		if !ok {
			return nil, false, &ValidationError{Code: ErrUnknownProducer, Message: "unknown default producer " + s.DefaultFunc}
		}
		v, err := produce(env)
		if err != nil {
			return nil, false, errors.Wrapf(err, "default producer %s", s.DefaultFunc)
		}
		value = v
	case s.Type == TypeObject && len(s.Properties) > 0:
		value = ir.IRObject{}
	default:
		return nil, false, nil
	}

	filled, err := ApplyDefaults(s, value, producers, env)
	if err != nil {
		return nil, false, err
	}
	if obj, ok := filled.(ir.IRObject); ok && len(obj) == 0 && !s.HasDefault() {
		return nil, false, nil
	}
	return filled, true, nil
}

// ApplyDefaults fills absent object keys from property defaults, recursing
// into present object values and list items. Values already present always
// win over defaults. A nil value is replaced by the schema default.
func ApplyDefaults(s *ir.Schema, v ir.IRValue, producers Producers, env plugin.ProducerEnv) (ir.IRValue, error) {
	if s == nil {
		return v, nil
	}
	if v == nil {
		d, _, err := Default(s, producers, env)
		return d, err
	}

	switch val := v.(type) {
	case ir.IRObject:
		if len(s.Properties) == 0 {
			return val, nil
		}
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = elem
		}
		for _, key := range sortedProperties(s) {
			sub := s.Properties[key]
			filled, err := ApplyDefaults(sub, out[key], producers, env)
			if err != nil {
				return nil, errors.Wrapf(err, "default for %s", key)
			}
			if filled != nil {
				out[key] = filled
			}
		}
		return out, nil
	case ir.IRArray:
		if s.Items == nil {
			return val, nil
		}
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			filled, err := ApplyDefaults(s.Items, elem, producers, env)
			if err != nil {
				return nil, err
			}
			out[i] = filled
		}
		return out, nil
	default:
		return v, nil
	}
}

func lookupProducer(producers Producers, name string) (plugin.DefaultProducer, bool) {
	if producers == nil {
		return nil, false
	}
	return producers.Default(name)
}

func sortedProperties(s *ir.Schema) []string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
