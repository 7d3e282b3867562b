package plugin

import (
	"github.com/roach88/bibform/internal/ir"
)

// OnlyIfMasterValue filters raw matched elements, optionally by one of their
// subfields:
//
//	only_if_master_value: {subfield: "2", equals: "DOI"}
type OnlyIfMasterValue struct{}

func (OnlyIfMasterValue) OnTransformed() bool { return false }

func (OnlyIfMasterValue) Evaluate(value ir.IRValue, _ *Catalog, args ir.IRValue) (bool, error) {
	v, found := value, value != nil
	if code, ok := argString(args, "subfield"); ok {
		obj, isObj := value.(ir.IRObject)
		v, found = nil, false
		if isObj {
			v, found = obj[code]
		}
	}
	return matchValue(v, found, args), nil
}

// OnlyIfValue filters on the transformed value, optionally at a path inside
// it:
//
//	only_if_value: {path: "personal_name", exists: true}
type OnlyIfValue struct{}

func (OnlyIfValue) OnTransformed() bool { return true }

func (OnlyIfValue) Evaluate(value ir.IRValue, _ *Catalog, args ir.IRValue) (bool, error) {
	path, _ := argString(args, "path")
	v, found := ir.Lookup(value, path)
	return matchValue(v, found, args), nil
}
