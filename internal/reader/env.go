package reader

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/model"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/registry"
	"github.com/roach88/bibform/internal/schema"
)

// env is what a translated record stays bound to: the snapshot and models
// it was read with, plus the provenance clock. It implements record.Env.
type env struct {
	snap     *registry.Snapshot
	resolved *model.Resolved
	master   string
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

var _ record.Env = (*env)(nil)

// lookupRef maps an exposed name, alias or json_id onto the model entry
// that exposes it.
func (e *env) lookupRef(name string) (ir.FieldRef, bool) {
	if id, ok := e.resolved.JSONID(name); ok {
		return ir.FieldRef{Name: name, JSONID: id}, true
	}
	id, ok := e.snap.Table.ResolveAlias(name)
	if !ok {
		return ir.FieldRef{}, false
	}
	names := e.resolved.ExposedNames(id)
	if len(names) == 0 {
		return ir.FieldRef{}, false
	}
	return ir.FieldRef{Name: names[0], JSONID: id}, true
}

func (e *env) producerEnv() plugin.ProducerEnv {
	return plugin.ProducerEnv{Now: e.clock.Now(), NewID: e.ids.NewID}
}

func (e *env) provenance(jsonID string, def *ir.FieldDefinition, typ string) *record.Provenance {
	prov := &record.Provenance{
		JSONID:    jsonID,
		Timestamp: e.clock.Now().Format(time.RFC3339),
		Seq:       e.clock.Next(),
		Type:      typ,
	}
	if def != nil {
		if def.PID != nil {
			pid := *def.PID
			prov.PID = &pid
		}
		prov.Hidden = def.Hidden
		if len(def.Extensions) > 0 {
			prov.Ext = make(ir.IRObject, len(def.Extensions))
			for _, ext := range def.Extensions {
				prov.Ext[ext.Name] = ir.Clone(ext.Value)
			}
		}
	}
	return prov
}

// Stamp implements record.Env.
func (e *env) Stamp(name, typ string) *record.Provenance {
	ref, ok := e.lookupRef(name)
	if !ok {
		return e.provenance(name, nil, typ)
	}
	def, _ := e.snap.Table.Field(ref.JSONID)
	return e.provenance(ref.JSONID, def, typ)
}

// Prepare implements record.Env: the value is coerced, completed with
// defaults and validated against the field schema.
func (e *env) Prepare(name string, value ir.IRValue) (ir.IRValue, *record.Provenance, error) {
	jsonID, ok := e.resolved.JSONID(name)
	if !ok {
		return nil, nil, &schema.ValidationError{Code: record.ErrUnknownField, Field: name, Message: "not a field of the record's models"}
	}
	def, ok := e.snap.Table.Field(jsonID)
	if !ok {
		return nil, nil, &schema.ValidationError{Code: record.ErrUnknownField, Field: name, Message: fmt.Sprintf("no definition for json_id %q", jsonID)}
	}

	v := ir.StripNulls(value)
	if v == nil {
		return nil, nil, &schema.ValidationError{Code: schema.ErrTypeMismatch, Field: name, Message: "value is empty"}
	}
	if s := def.Schema; s != nil {
		var err error
		if schema.NeedsCoercion(s) {
			if v, err = schema.Coerce(s, v); err != nil {
				return nil, nil, err
			}
		}
		if v, err = schema.ApplyDefaults(s, v, e.snap.Catalog, e.producerEnv()); err != nil {
			return nil, nil, err
		}
		if err := schema.Validate(s, v); err != nil {
			return nil, nil, err
		}
	}

	prov := e.provenance(jsonID, def, record.TypeSet)
	prov.After = declaredAfter(def, e.master)
	return v, prov, nil
}

// declaredAfter collects the after decorators of every rule of def that can
// apply to a record of the master format.
func declaredAfter(def *ir.FieldDefinition, master string) []ir.DecoratorCall {
	var calls []ir.DecoratorCall
	rules := append(append([]ir.Rule(nil), def.CreatorRules(master)...), def.Virtual...)
	for i := range rules {
		calls = appendCalls(calls, rules[i].Decorators.After)
	}
	return calls
}

// After implements record.Env.
func (e *env) After(rec *record.Record, name string, action plugin.Action) error {
	errs := e.runAfter(rec, name, action)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// runAfter runs the after decorators recorded in the provenance of name,
// then the extensions of its field definition, in registration order.
func (e *env) runAfter(out record.Output, name string, action plugin.Action) []error {
	prov, ok := out.Meta(name)
	if !ok || prov == nil {
		return nil
	}

	var errs []error
	for _, call := range prov.After {
		dec, ok := e.snap.Catalog.After(call.Name)
		if !ok {
			errs = append(errs, errors.Newf("unknown after decorator %q", call.Name))
			continue
		}
		if err := guardErr(func() error { return dec.Evaluate(out, name, action, call.Args) }); err != nil {
			errs = append(errs, errors.Wrapf(err, "after %s", call.Name))
		}
	}

	def, ok := e.snap.Table.Field(prov.JSONID)
	if !ok {
		return errs
	}
	for _, extVal := range def.Extensions {
		ext, ok := e.snap.Catalog.FieldExtension(extVal.Name)
		if !ok {
			continue
		}
		if err := guardErr(func() error { return ext.Evaluate(out, name, extVal.Value) }); err != nil {
			errs = append(errs, errors.Wrapf(err, "extension %s", extVal.Name))
		}
	}
	return errs
}

// Recalculate implements record.Env: the calculated rules of every field of
// the model run again over the current data.
func (e *env) Recalculate(rec *record.Record) error {
	for _, ref := range e.resolved.Fields {
		def, ok := e.snap.Table.Field(ref.JSONID)
		if !ok {
			continue
		}
		c := newContribution(def)
		for i := range def.Virtual {
			rule := &def.Virtual[i]
			if rule.Type != ir.RuleCalculated {
				continue
			}
			v, err := guard(func() (ir.IRValue, error) { return rule.Virtual(rec) })
			if err != nil {
				return errors.Wrapf(err, "recalculating %s", ref.Name)
			}
			if v = ir.StripNulls(v); v != nil {
				c.replace(v, rule)
			}
		}
		if !c.has {
			continue
		}
		prov := e.provenance(ref.JSONID, def, string(ir.RuleCalculated))
		prov.Function, prov.After = c.functions, c.after
		rec.Store(ref.Name, c.value, prov)
		if errs := e.runAfter(rec, ref.Name, plugin.ActionSet); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

// guard runs fn and turns a panic into an error.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
		}
	}()
	return fn()
}

func guardErr(fn func() error) error {
	_, err := guard(func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func appendCalls(dst []ir.DecoratorCall, calls []ir.DecoratorCall) []ir.DecoratorCall {
	for _, call := range calls {
		dup := false
		for _, have := range dst {
			if have.Name == call.Name && ir.Equal(have.Args, call.Args) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, call)
		}
	}
	return dst
}
