package plugin

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// CopyTo mirrors the final field value into a companion field:
//
//	copy_to: {field: "first_author"}
type CopyTo struct{}

func (CopyTo) Evaluate(out Target, field string, _ Action, args ir.IRValue) error {
	target, err := requireString(args, "field")
	if err != nil {
		return errors.Wrap(err, "copy_to")
	}
	if target == field {
		return errors.Newf("copy_to: field %q cannot copy onto itself", field)
	}
	v, ok := out.Get(field)
	if !ok {
		return nil
	}
	return out.Put(target, ir.Clone(v), field)
}

// Dedupe drops repeated list items, keeping the first occurrence.
//
//	dedupe: {}
type Dedupe struct{}

func (Dedupe) Evaluate(out Target, field string, _ Action, _ ir.IRValue) error {
	v, ok := out.Get(field)
	if !ok {
		return nil
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(arr))
	deduped := make(ir.IRArray, 0, len(arr))
	for _, item := range arr {
		key, err := ir.MarshalIRValue(item)
		if err != nil {
			return errors.Wrap(err, "dedupe")
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		deduped = append(deduped, item)
	}
	if len(deduped) == len(arr) {
		return nil
	}
	return out.Put(field, deduped, field)
}
