package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/bibform/internal/ir"
)

// toIR converts a concrete CUE value into an IRValue.
// Floats are forbidden: numbers must be integers.
func toIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, fmt.Errorf("float values are forbidden, use an integer")
	default:
		return nil, fmt.Errorf("unsupported value kind: %v", v.Kind())
	}
}

// stringsOf reads a string or a list of strings.
func stringsOf(v cue.Value) ([]string, error) {
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, fmt.Errorf("expected a string or a list of strings")
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// lookup returns the value at a single label, and whether it exists.
func lookup(v cue.Value, label string) (cue.Value, bool) {
	child := v.LookupPath(cue.MakePath(cue.Str(label)))
	return child, child.Exists()
}

func lineOf(v cue.Value) int {
	if pos := v.Pos(); pos.IsValid() {
		return pos.Line()
	}
	return 0
}
