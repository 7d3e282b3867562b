package model

import (
	"slices"

	"github.com/roach88/bibform/internal/ir"
)

// Resolved is a flattened model: ordered exposed names mapped to json_ids,
// the transitive bases and the combined extension values. A Resolved value
// is shared through the resolver memo and must not be modified.
type Resolved struct {
	Names      []string
	Fields     []ir.FieldRef
	Bases      []string
	Extensions []ir.Extension

	byName map[string]int
}

func newResolved(names []string) *Resolved {
	return &Resolved{Names: slices.Clone(names), byName: make(map[string]int)}
}

// set maps an exposed name to a json_id, keeping the name's first position.
func (r *Resolved) set(name, jsonID string) {
	if i, ok := r.byName[name]; ok {
		r.Fields[i].JSONID = jsonID
		return
	}
	r.byName[name] = len(r.Fields)
	r.Fields = append(r.Fields, ir.FieldRef{Name: name, JSONID: jsonID})
}

// rename drops every exposed name currently pointing at jsonID, then maps
// name to it.
func (r *Resolved) rename(name, jsonID string) {
	kept := r.Fields[:0:0]
	for _, f := range r.Fields {
		if f.JSONID == jsonID && f.Name != name {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) != len(r.Fields) {
		r.Fields = kept
		r.reindex()
	}
	r.set(name, jsonID)
}

// overlay applies other's entries on top of r.
func (r *Resolved) overlay(other *Resolved) {
	for _, f := range other.Fields {
		r.set(f.Name, f.JSONID)
	}
}

func (r *Resolved) reindex() {
	r.byName = make(map[string]int, len(r.Fields))
	for i, f := range r.Fields {
		r.byName[f.Name] = i
	}
}

// JSONID returns the json_id behind an exposed name.
func (r *Resolved) JSONID(name string) (string, bool) {
	i, ok := r.byName[name]
	if !ok {
		return "", false
	}
	return r.Fields[i].JSONID, true
}

// ExposedNames returns the exposed names mapped to a json_id.
func (r *Resolved) ExposedNames(jsonID string) []string {
	var out []string
	for _, f := range r.Fields {
		if f.JSONID == jsonID {
			out = append(out, f.Name)
		}
	}
	return out
}

// Has reports whether the model exposes name.
func (r *Resolved) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Extension returns a combined extension value.
func (r *Resolved) Extension(name string) (ir.IRValue, bool) {
	for _, ext := range r.Extensions {
		if ext.Name == name {
			return ext.Value, true
		}
	}
	return nil, false
}

// IsDefault reports whether the resolution is the plain default field set.
func (r *Resolved) IsDefault() bool {
	return len(r.Names) == 1 && r.Names[0] == ir.DefaultModel
}
