package plugin

import (
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/bibform/internal/ir"
)

// Description attaches a human readable description to a field or model.
type Description struct{}

func (Description) CreateElement(args ir.IRValue) (ir.IRValue, error) {
	s, ok := args.(ir.IRString)
	if !ok {
		return nil, errors.Newf("description must be a string, got %T", args)
	}
	return s, nil
}

func (Description) Evaluate(Target, string, ir.IRValue) error { return nil }

// ModelDescription is the model flavour of Description. A model without a
// description of its own inherits its base's.
type ModelDescription struct{ Description }

func (ModelDescription) InheritModel(current, base ir.IRValue) ir.IRValue {
	if current != nil {
		return current
	}
	return base
}

func (ModelDescription) Evaluate(Target, ir.IRValue) error { return nil }

// Normalize rewrites every string inside the field value to a Unicode
// normalization form:
//
//	normalize: "NFC"
type Normalize struct{}

var normForms = map[string]norm.Form{
	"NFC":  norm.NFC,
	"NFD":  norm.NFD,
	"NFKC": norm.NFKC,
	"NFKD": norm.NFKD,
}

func (Normalize) CreateElement(args ir.IRValue) (ir.IRValue, error) {
	s, ok := args.(ir.IRString)
	if !ok {
		return nil, errors.Newf("normalize must be one of NFC, NFD, NFKC, NFKD")
	}
	form := strings.ToUpper(string(s))
	if _, ok := normForms[form]; !ok {
		return nil, errors.Newf("normalize: unknown form %q", s)
	}
	return ir.IRString(form), nil
}

func (Normalize) Evaluate(out Target, field string, value ir.IRValue) error {
	form, ok := normForms[string(asIRString(value))]
	if !ok {
		return errors.Newf("normalize: unknown form %v", value)
	}
	v, found := out.Get(field)
	if !found {
		return nil
	}
	normalized := normalizeValue(v, form)
	if ir.Equal(v, normalized) {
		return nil
	}
	return out.Put(field, normalized, field)
}

func asIRString(v ir.IRValue) ir.IRString {
	s, _ := v.(ir.IRString)
	return s
}

func normalizeValue(v ir.IRValue, form norm.Form) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRString(form.String(string(val)))
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem, form)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = normalizeValue(elem, form)
		}
		return out
	default:
		return v
	}
}

// Capabilities grafts registered capability objects onto records built
// against the model:
//
//	capabilities: ["citable"]
type Capabilities struct {
	catalog *Catalog
}

// NewCapabilities returns the capabilities extension bound to catalog.
func NewCapabilities(catalog *Catalog) *Capabilities {
	return &Capabilities{catalog: catalog}
}

func (c *Capabilities) CreateElement(args ir.IRValue) (ir.IRValue, error) {
	names, err := stringList(args, "names")
	if err != nil {
		return nil, errors.Wrap(err, "capabilities")
	}
	out := make(ir.IRArray, 0, len(names))
	for _, name := range names {
		if !c.catalog.Has(KindCapability, name) {
			return nil, errors.Newf("capabilities: unknown capability %q", name)
		}
		out = append(out, ir.IRString(name))
	}
	return out, nil
}

// InheritModel lists the base capabilities first, then the model's own, each
// name once.
func (c *Capabilities) InheritModel(current, base ir.IRValue) ir.IRValue {
	seen := make(map[string]bool)
	var out ir.IRArray
	candidates := append(append(ir.IRArray{}, ir.AsList(base)...), ir.AsList(current)...)
	for _, v := range candidates {
		name, ok := v.(ir.IRString)
		if !ok || seen[string(name)] {
			continue
		}
		seen[string(name)] = true
		out = append(out, name)
	}
	if out == nil {
		return nil
	}
	return out
}

func (c *Capabilities) Evaluate(out Target, value ir.IRValue) error {
	for _, v := range ir.AsList(value) {
		name, _ := v.(ir.IRString)
		factory, ok := c.catalog.Capability(string(name))
		if !ok {
			return errors.Newf("capabilities: unknown capability %q", name)
		}
		capability, err := factory(out)
		if err != nil {
			return errors.Wrapf(err, "capabilities: build %q", name)
		}
		out.AddCapability(string(name), capability)
	}
	return nil
}
