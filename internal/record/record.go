// Package record holds the output object of a translation: the data keyed
// by exposed field name, a parallel provenance entry per field, and the list
// of continuable errors.
//
// Every data key has a provenance entry. Set and Update validate through
// the bound environment and restore data, provenance and errors exactly
// when anything fails.
package record

import (
	"fmt"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/schema"
)

// Continuable error codes (E400-E499).
const (
	ErrUnknownField = "E401" // model names a json_id with no definition
	ErrFunction     = "E402" // transformation function failed or panicked
	ErrCoercion     = "E403" // forced type coercion failed
	ErrAfterHook    = "E404" // after decorator or extension failed
	ErrDecorator    = "E405" // before or on decorator failed
)

// FieldError is a continuable per-field error.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	JSONID  string `json:"json_id,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("[%s] field %q: %s", e.Code, e.Field, e.Message)
}

// Origin describes where a record came from.
type Origin struct {
	MasterFormat string   `json:"master_format"`
	Models       []string `json:"models,omitempty"`
	Fingerprint  string   `json:"fingerprint,omitempty"`
}

// Env connects a record to the registry snapshot it was translated with.
type Env interface {
	// Prepare validates value for the exposed name and returns the value to
	// store with its provenance.
	Prepare(name string, value ir.IRValue) (ir.IRValue, *Provenance, error)

	// After runs the after decorators and extensions of name.
	After(rec *Record, name string, action plugin.Action) error

	// Stamp returns fresh provenance of the given type for name.
	Stamp(name, typ string) *Provenance

	// Recalculate re-runs the calculated rules of every field.
	Recalculate(rec *Record) error
}

// Output is what the reader writes into. *Record is the implementation;
// callers may wrap it to add behaviour.
type Output interface {
	plugin.Target

	Data() ir.IRObject
	Has(name string) bool
	Value(name string) (ir.IRValue, bool)
	Meta(name string) (*Provenance, bool)
	Errors() []FieldError
	Capability(name string) (any, bool)

	Store(name string, value ir.IRValue, prov *Provenance)
	Remove(name string)
	AddError(e FieldError)
	Bind(env Env, origin Origin)
	Record() *Record
}

// Record is the default Output.
type Record struct {
	data         ir.IRObject
	meta         map[string]*Provenance
	errs         []FieldError
	capabilities map[string]any
	env          Env
	origin       Origin
}

var _ Output = (*Record)(nil)

// New returns an empty record.
func New() *Record {
	return &Record{
		data:         ir.IRObject{},
		meta:         make(map[string]*Provenance),
		capabilities: make(map[string]any),
	}
}

// NewOutput is the default output factory.
func NewOutput() Output { return New() }

// Record returns the record itself.
func (r *Record) Record() *Record { return r }

// Bind attaches the environment used by Set, Update and Recalculate.
func (r *Record) Bind(env Env, origin Origin) {
	r.env = env
	r.origin = origin
}

// Origin returns where the record came from.
func (r *Record) Origin() Origin { return r.origin }

// Data returns a deep copy of the data.
func (r *Record) Data() ir.IRObject {
	return ir.Clone(r.data).(ir.IRObject)
}

// Names returns the exposed names that hold a value, sorted.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.data))
	for k := range r.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name holds a value.
func (r *Record) Has(name string) bool {
	_, ok := r.data[name]
	return ok
}

// Value returns the value stored under an exposed name.
func (r *Record) Value(name string) (ir.IRValue, bool) {
	v, ok := r.data[name]
	return v, ok
}

// Get follows a dot path through the data, e.g.
// "main_entry_personal_name.personal_name".
func (r *Record) Get(path string) (ir.IRValue, bool) {
	if path == "" {
		return nil, false
	}
	return ir.Lookup(r.data, path)
}

// Meta returns the provenance of a field.
func (r *Record) Meta(name string) (*Provenance, bool) {
	p, ok := r.meta[name]
	return p, ok
}

// Errors returns the continuable errors in the order they occurred.
func (r *Record) Errors() []FieldError {
	return slices.Clone(r.errs)
}

// AddError appends a continuable error.
func (r *Record) AddError(e FieldError) {
	r.errs = append(r.errs, e)
}

// Store writes a value with its provenance.
func (r *Record) Store(name string, value ir.IRValue, prov *Provenance) {
	if prov == nil {
		prov = &Provenance{Type: TypeSet}
	}
	r.data[name] = value
	r.meta[name] = prov
}

// Remove deletes a field and its provenance.
func (r *Record) Remove(name string) {
	delete(r.data, name)
	delete(r.meta, name)
}

// Put implements plugin.Target. Writing an equal value is a no-op. A field
// writing itself keeps its provenance; any other origin is recorded as an
// after write.
func (r *Record) Put(name string, value ir.IRValue, origin string) error {
	if name == "" {
		return errors.New("record: empty field name")
	}
	if cur, ok := r.data[name]; ok && ir.Equal(cur, value) {
		return nil
	}
	if _, ok := r.meta[name]; ok && origin == name {
		r.data[name] = value
		return nil
	}

	var prov *Provenance
	if r.env != nil {
		prov = r.env.Stamp(name, TypeAfter)
	} else {
		prov = &Provenance{Type: TypeAfter}
	}
	prov.Type = TypeAfter
	if origin != name {
		prov.Origin = origin
	}
	r.Store(name, value, prov)
	return nil
}

// AddCapability implements plugin.Target.
func (r *Record) AddCapability(name string, capability any) {
	r.capabilities[name] = capability
}

// Capability returns a grafted capability object, e.g. *plugin.Citable.
func (r *Record) Capability(name string) (any, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

// Capabilities returns the grafted capability names, sorted.
func (r *Record) Capabilities() []string {
	names := make([]string, 0, len(r.capabilities))
	for k := range r.capabilities {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Set validates and stores one field, then re-runs its after hooks. On any
// failure the record is restored exactly and a *schema.ValidationError is
// returned.
func (r *Record) Set(name string, value ir.IRValue) error {
	return r.Update(map[string]ir.IRValue{name: value})
}

// Update sets several fields, in sorted name order, as one unit: either all
// of them are applied or none is.
func (r *Record) Update(values map[string]ir.IRValue) error {
	snap := r.snapshot()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.set(name, values[name]); err != nil {
			r.restore(snap)
			return err
		}
	}
	return nil
}

func (r *Record) set(name string, value ir.IRValue) error {
	if r.env == nil {
		r.Store(name, ir.Clone(value), &Provenance{Type: TypeSet})
		return nil
	}
	stored, prov, err := r.env.Prepare(name, ir.Clone(value))
	if err != nil {
		if ve, ok := schema.AsValidationError(err); ok {
			if ve.Field == "" {
				ve.Field = name
			}
			return ve
		}
		return &schema.ValidationError{Code: schema.ErrTypeMismatch, Field: name, Message: err.Error()}
	}
	r.Store(name, stored, prov)
	if err := r.env.After(r, name, plugin.ActionSet); err != nil {
		return &schema.ValidationError{Code: ErrAfterHook, Field: name, Message: err.Error()}
	}
	return nil
}

// Recalculate re-runs calculated rules. On failure the record is restored.
func (r *Record) Recalculate() error {
	if r.env == nil {
		return errors.New("record: not bound to a registry")
	}
	snap := r.snapshot()
	if err := r.env.Recalculate(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	data         ir.IRObject
	meta         map[string]*Provenance
	errs         []FieldError
	capabilities map[string]any
}

func (r *Record) snapshot() snapshot {
	meta := make(map[string]*Provenance, len(r.meta))
	for k, p := range r.meta {
		meta[k] = p.Clone()
	}
	caps := make(map[string]any, len(r.capabilities))
	for k, c := range r.capabilities {
		caps[k] = c
	}
	return snapshot{
		data:         ir.Clone(r.data).(ir.IRObject),
		meta:         meta,
		errs:         slices.Clone(r.errs),
		capabilities: caps,
	}
}

func (r *Record) restore(s snapshot) {
	r.data, r.meta, r.errs, r.capabilities = s.data, s.meta, s.errs, s.capabilities
}
