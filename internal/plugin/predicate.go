package plugin

import (
	"github.com/roach88/bibform/internal/ir"
)

// matchValue applies the shared predicate arguments to a looked-up value:
//
//	exists: bool   (default true) presence test
//	equals: value  any element equal to value
//	in:     [...]  any element equal to one of the listed values
//
// List values match when any of their elements match.
func matchValue(v ir.IRValue, found bool, args ir.IRValue) bool {
	wantExists := true
	if b, ok := argBool(args, "exists"); ok {
		wantExists = b
	}
	if !wantExists {
		return !found
	}
	if !found {
		return false
	}

	obj := argObject(args)
	if want, ok := obj["equals"]; ok && !anyEqual(v, ir.IRArray{want}) {
		return false
	}
	if set, ok := obj["in"].(ir.IRArray); ok && !anyEqual(v, set) {
		return false
	}
	return true
}

func anyEqual(v ir.IRValue, candidates ir.IRArray) bool {
	values := ir.IRArray{v}
	if arr, ok := v.(ir.IRArray); ok {
		values = arr
	}
	for _, got := range values {
		for _, want := range candidates {
			if ir.Equal(got, want) {
				return true
			}
		}
	}
	return false
}
