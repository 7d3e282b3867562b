package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/bibform/internal/ir"
)

func parseModels(source string, v cue.Value) ([]ir.ModelSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, &ModelParserError{Code: ErrModelShape, Source: source,
			Message: "models must be a struct", Pos: v.Pos()}
	}
	var models []ir.ModelSpec
	for iter.Next() {
		m, err := parseModel(source, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}

// parseModel reads one model. Its fields are either a struct mapping exposed
// names to json_ids or a list of json_ids exposed under their own name; any
// key other than fields and bases is a model extension.
func parseModel(source, name string, v cue.Value) (ir.ModelSpec, error) {
	m := ir.ModelSpec{Name: name, Source: source, Line: lineOf(v)}
	shapeErr := func(at cue.Value, format string, args ...any) error {
		return &ModelParserError{Code: ErrModelShape, Model: name, Source: source,
			Message: fmt.Sprintf(format, args...), Pos: at.Pos()}
	}

	iter, err := v.Fields()
	if err != nil {
		return m, shapeErr(v, "model definition must be a struct")
	}
	for iter.Next() {
		key, val := iter.Label(), iter.Value()
		switch key {
		case "fields":
			refs, err := parseFieldRefs(val)
			if err != nil {
				return m, shapeErr(val, "fields: %v", err)
			}
			m.Fields = refs
		case "bases":
			bases, err := stringsOf(val)
			if err != nil {
				return m, shapeErr(val, "bases: %v", err)
			}
			m.Bases = bases
		default:
			ext, err := toIR(val)
			if err != nil {
				return m, shapeErr(val, "%s: %v", key, err)
			}
			m.Extensions = append(m.Extensions, ir.Extension{Name: key, Value: ext})
		}
	}
	return m, nil
}

func parseFieldRefs(v cue.Value) ([]ir.FieldRef, error) {
	if v.Kind() == cue.ListKind {
		ids, err := stringsOf(v)
		if err != nil {
			return nil, err
		}
		refs := make([]ir.FieldRef, 0, len(ids))
		for _, id := range ids {
			refs = append(refs, ir.FieldRef{Name: id, JSONID: id})
		}
		return refs, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("expected a struct of exposed_name: json_id or a list of json_ids")
	}
	var refs []ir.FieldRef
	for iter.Next() {
		id, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s: json_id must be a string", iter.Label())
		}
		refs = append(refs, ir.FieldRef{Name: iter.Label(), JSONID: id})
	}
	return refs, nil
}
