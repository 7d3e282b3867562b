package plugin

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// subfieldOf returns the value of a subfield code on a data field element.
// Control field elements are scalars and are returned whole.
func subfieldOf(elem ir.IRValue, code string) (ir.IRValue, bool) {
	obj, ok := elem.(ir.IRObject)
	if !ok {
		return elem, elem != nil
	}
	v, ok := obj[code]
	return v, ok
}

// ValueFunc is the identity creator. It backs the synthesized json rule.
func ValueFunc(ir.IRValue) (ir.CreatorFunc, error) {
	return func(elem ir.IRValue) (ir.IRValue, error) {
		return ir.Clone(elem), nil
	}, nil
}

// SubfieldFunc extracts one subfield, all of its repetitions unless first is
// set:
//
//	function: "subfield", args: {code: "a", first: true}
func SubfieldFunc(args ir.IRValue) (ir.CreatorFunc, error) {
	code, err := requireString(args, "code")
	if err != nil {
		return nil, errors.Wrap(err, "subfield")
	}
	first, _ := argBool(args, "first")
	return func(elem ir.IRValue) (ir.IRValue, error) {
		v, ok := subfieldOf(elem, code)
		if !ok {
			return ir.IRNull{}, nil
		}
		if arr, isArr := v.(ir.IRArray); isArr && first {
			if len(arr) == 0 {
				return ir.IRNull{}, nil
			}
			return arr[0], nil
		}
		return ir.Clone(v), nil
	}, nil
}

// SubfieldsFunc maps output keys to subfield codes:
//
//	function: "subfields", args: {personal_name: "a", affiliation: "u"}
func SubfieldsFunc(args ir.IRValue) (ir.CreatorFunc, error) {
	mapping, err := SubfieldMapping(args)
	if err != nil {
		return nil, err
	}
	return func(elem ir.IRValue) (ir.IRValue, error) {
		out := make(ir.IRObject, len(mapping))
		for _, m := range mapping {
			if v, ok := subfieldOf(elem, m.Code); ok {
				out[m.Path] = ir.Clone(v)
			}
		}
		if len(out) == 0 {
			return ir.IRNull{}, nil
		}
		return out, nil
	}, nil
}

// SubfieldMapping reads the key to code pairs of a subfields function in
// canonical key order. Path holds the output key.
func SubfieldMapping(args ir.IRValue) ([]ir.SubfieldMap, error) {
	obj, ok := args.(ir.IRObject)
	if !ok || len(obj) == 0 {
		return nil, errors.New("subfields: args must map output keys to subfield codes")
	}
	out := make([]ir.SubfieldMap, 0, len(obj))
	for _, key := range obj.SortedKeys() {
		code, ok := obj[key].(ir.IRString)
		if !ok || code == "" {
			return nil, errors.Newf("subfields: code for %q must be a non-empty string", key)
		}
		out = append(out, ir.SubfieldMap{Code: string(code), Path: key})
	}
	return out, nil
}

// IntegerFunc parses a control field, or one subfield when code is given,
// as a base 10 integer:
//
//	function: "integer", args: {code: "c"}
func IntegerFunc(args ir.IRValue) (ir.CreatorFunc, error) {
	code, hasCode := stringOrKey(args, "code")
	return func(elem ir.IRValue) (ir.IRValue, error) {
		v := elem
		if hasCode {
			var ok bool
			if v, ok = subfieldOf(elem, code); !ok {
				return ir.IRNull{}, nil
			}
		}
		s, ok := ir.AsString(v)
		if !ok {
			return nil, errors.Newf("integer: cannot read %T as text", v)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, errors.Newf("integer: %q is not an integer", s)
		}
		return ir.IRInt(n), nil
	}, nil
}

// JoinFunc concatenates the listed subfields, repetitions included, in the
// listed order:
//
//	function: "join", args: {codes: ["a", "b"], sep: " "}
func JoinFunc(args ir.IRValue) (ir.CreatorFunc, error) {
	codes, err := stringList(args, "codes")
	if err != nil {
		return nil, errors.Wrap(err, "join")
	}
	if len(codes) == 0 {
		return nil, errors.New("join: codes are required")
	}
	sep := " "
	if s, ok := argString(args, "sep"); ok {
		sep = s
	}
	return func(elem ir.IRValue) (ir.IRValue, error) {
		var parts []string
		for _, code := range codes {
			v, ok := subfieldOf(elem, code)
			if !ok {
				continue
			}
			for _, item := range ir.AsList(v) {
				if s, ok := ir.AsString(item); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) == 0 {
			return ir.IRNull{}, nil
		}
		return ir.IRString(strings.Join(parts, sep)), nil
	}, nil
}

// ConstFunc ignores its input and yields the configured value.
func ConstFunc(args ir.IRValue) (ir.CreatorFunc, error) {
	if args == nil {
		return nil, errors.New("const: a value is required")
	}
	return func(ir.IRValue) (ir.IRValue, error) {
		return ir.Clone(args), nil
	}, nil
}

func fieldArg(name string, args ir.IRValue) (string, error) {
	path, err := requireString(args, "field")
	if err != nil {
		return "", errors.Wrap(err, name)
	}
	return path, nil
}

// CountVirtual counts the items of a record value; absent counts as zero:
//
//	derived: [{function: "count", args: {field: "authors"}}]
func CountVirtual(args ir.IRValue) (ir.VirtualFunc, error) {
	path, err := fieldArg("count", args)
	if err != nil {
		return nil, err
	}
	return func(rec ir.RecordView) (ir.IRValue, error) {
		v, ok := rec.Get(path)
		if !ok {
			return ir.IRInt(0), nil
		}
		return ir.IRInt(len(ir.AsList(v))), nil
	}, nil
}

// CopyVirtual copies a record value.
func CopyVirtual(args ir.IRValue) (ir.VirtualFunc, error) {
	path, err := fieldArg("copy", args)
	if err != nil {
		return nil, err
	}
	return func(rec ir.RecordView) (ir.IRValue, error) {
		v, ok := rec.Get(path)
		if !ok {
			return ir.IRNull{}, nil
		}
		return ir.Clone(v), nil
	}, nil
}

// FirstVirtual yields the first item of a record list value, or the value
// itself when it is not a list.
func FirstVirtual(args ir.IRValue) (ir.VirtualFunc, error) {
	path, err := fieldArg("first", args)
	if err != nil {
		return nil, err
	}
	return func(rec ir.RecordView) (ir.IRValue, error) {
		v, ok := rec.Get(path)
		if !ok {
			return ir.IRNull{}, nil
		}
		list := ir.AsList(v)
		if len(list) == 0 {
			return ir.IRNull{}, nil
		}
		return ir.Clone(list[0]), nil
	}, nil
}

// ConstVirtual yields the configured value.
func ConstVirtual(args ir.IRValue) (ir.VirtualFunc, error) {
	if args == nil {
		return nil, errors.New("const: a value is required")
	}
	return func(ir.RecordView) (ir.IRValue, error) {
		return ir.Clone(args), nil
	}, nil
}
