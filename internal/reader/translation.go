package reader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/schema"
)

type fieldState uint8

const (
	statePending fieldState = iota
	stateActive
	stateDone
)

type visitKey struct {
	jsonID string
	name   string
}

// translation is the state of one Translate call.
type translation struct {
	*env
	out      record.Output
	prepared *ir.Intermediate

	// assigned lists, per json_id and creator rule index, the intermediate
	// keys the index routed to that rule, in record order.
	assigned map[string]map[int][]string
	state    map[visitKey]fieldState
}

func newTranslation(e *env, out record.Output, prepared *ir.Intermediate) *translation {
	t := &translation{
		env:      e,
		out:      out,
		prepared: prepared,
		assigned: make(map[string]map[int][]string),
		state:    make(map[visitKey]fieldState),
	}
	idx := e.snap.Index(prepared.MasterFormat)
	for _, key := range prepared.Keys() {
		for _, m := range idx.Query(key) {
			byRule, ok := t.assigned[m.JSONID]
			if !ok {
				byRule = make(map[int][]string)
				t.assigned[m.JSONID] = byRule
			}
			byRule[m.RuleIndex] = append(byRule[m.RuleIndex], key)
		}
	}
	return t
}

// targets returns the model entries to translate.
func (t *translation) targets(only []string) []ir.FieldRef {
	if len(only) == 0 {
		return t.resolved.Fields
	}
	var refs []ir.FieldRef
	for _, name := range only {
		ref, ok := t.lookupRef(name)
		if !ok {
			t.fail(ir.FieldRef{Name: name}, record.ErrUnknownField, "not a field of the record's models")
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (t *translation) fail(ref ir.FieldRef, code, msg string) {
	t.out.AddError(record.FieldError{Code: code, Field: ref.Name, JSONID: ref.JSONID, Message: msg})
	t.logger.Debug("field error",
		zap.String("code", code),
		zap.String("field", ref.Name),
		zap.String("json_id", ref.JSONID),
		zap.String("message", msg),
	)
}

// require processes a field on demand and reports whether it has a value.
// It backs BeforeContext.Require and the record view of virtual rules.
func (t *translation) require(name string) bool {
	ref, ok := t.lookupRef(name)
	if !ok {
		return t.out.Has(name)
	}
	return t.process(ref)
}

// view is the record in progress as seen by rules: reading a field that
// has not been processed yet processes it first.
type view struct{ t *translation }

func (v view) Get(path string) (ir.IRValue, bool) {
	head, _, _ := strings.Cut(path, ".")
	v.t.require(head)
	return v.t.out.Get(path)
}

// process takes one field from pending to done and reports whether it
// ended up with a value. A field already started is not processed again.
func (t *translation) process(ref ir.FieldRef) bool {
	key := visitKey{jsonID: ref.JSONID, name: ref.Name}
	if t.state[key] != statePending {
		return t.out.Has(ref.Name)
	}
	t.state[key] = stateActive
	defer func() { t.state[key] = stateDone }()

	def, ok := t.snap.Table.Field(ref.JSONID)
	if !ok {
		t.fail(ref, record.ErrUnknownField, fmt.Sprintf("no definition for json_id %q", ref.JSONID))
		return false
	}

	c := newContribution(def)
	t.applyCreators(ref, def, c)
	t.applyVirtual(ref, def, c)
	t.applyDefaults(ref, def, c)
	t.applyCoercion(ref, def, c)
	if !c.has {
		return false
	}

	prov := t.provenance(ref.JSONID, def, c.typ)
	prov.Function, prov.After = c.functions, c.after
	t.out.Store(ref.Name, c.value, prov)

	for _, err := range t.runAfter(t.out, ref.Name, plugin.ActionTranslate) {
		t.fail(ref, record.ErrAfterHook, err.Error())
	}
	return true
}

func (t *translation) applyCreators(ref ir.FieldRef, def *ir.FieldDefinition, c *contribution) {
	rules := def.CreatorRules(t.prepared.MasterFormat)
	for i := range rules {
		rule := &rules[i]
		keys := t.assigned[def.JSONID][i]
		if len(keys) == 0 || !t.allowed(ref, rule) {
			continue
		}
		contributed := false
		for _, key := range keys {
			for _, elem := range t.prepared.Get(key) {
				if !t.gate(ref, rule, elem, false) {
					continue
				}
				v, err := guard(func() (ir.IRValue, error) { return rule.Creator(elem) })
				if err != nil {
					t.fail(ref, record.ErrFunction, fmt.Sprintf("%s on %s: %v", rule.Function, key, err))
					continue
				}
				v = ir.StripNulls(v)
				if v == nil || !t.gate(ref, rule, v, true) {
					continue
				}
				c.extend(v)
				contributed = true
			}
		}
		if contributed {
			c.credit(rule)
		}
	}
}

func (t *translation) applyVirtual(ref ir.FieldRef, def *ir.FieldDefinition, c *contribution) {
	for i := range def.Virtual {
		rule := &def.Virtual[i]
		if !t.allowed(ref, rule) {
			continue
		}
		v, err := guard(func() (ir.IRValue, error) { return rule.Virtual(view{t}) })
		if err != nil {
			t.fail(ref, record.ErrFunction, fmt.Sprintf("%s: %v", rule.Function, err))
			continue
		}
		v = ir.StripNulls(v)
		if v == nil || !t.gate(ref, rule, v, true) {
			continue
		}
		c.replace(v, rule)
	}
}

// allowed evaluates the before decorators of a rule, stopping at the first
// that says no.
func (t *translation) allowed(ref ir.FieldRef, rule *ir.Rule) bool {
	if len(rule.Decorators.Before) == 0 {
		return true
	}
	ctx := &plugin.BeforeContext{
		JSONID:       ref.JSONID,
		FieldName:    ref.Name,
		MasterFormat: t.prepared.MasterFormat,
		Rule:         rule,
		Prepared:     t.prepared,
		Record:       t.out,
		Require:      t.require,
	}
	for _, call := range rule.Decorators.Before {
		dec, ok := t.snap.Catalog.Before(call.Name)
		if !ok {
			t.fail(ref, record.ErrDecorator, fmt.Sprintf("unknown before decorator %q", call.Name))
			return false
		}
		pass, err := guard(func() (bool, error) { return dec.Evaluate(ctx, call.Args) })
		if err != nil {
			t.fail(ref, record.ErrDecorator, fmt.Sprintf("before %s: %v", call.Name, err))
			return false
		}
		if !pass {
			return false
		}
	}
	return true
}

// gate evaluates the on decorators that look at raw elements (transformed
// false) or at transformed values (transformed true).
func (t *translation) gate(ref ir.FieldRef, rule *ir.Rule, value ir.IRValue, transformed bool) bool {
	for _, call := range rule.Decorators.On {
		dec, ok := t.snap.Catalog.On(call.Name)
		if !ok {
			t.fail(ref, record.ErrDecorator, fmt.Sprintf("unknown on decorator %q", call.Name))
			return false
		}
		if dec.OnTransformed() != transformed {
			continue
		}
		pass, err := guard(func() (bool, error) { return dec.Evaluate(value, t.snap.Catalog, call.Args) })
		if err != nil {
			t.fail(ref, record.ErrDecorator, fmt.Sprintf("on %s: %v", call.Name, err))
			return false
		}
		if !pass {
			return false
		}
	}
	return true
}

func (t *translation) applyDefaults(ref ir.FieldRef, def *ir.FieldDefinition, c *contribution) {
	s := def.Schema
	if s == nil {
		return
	}
	if c.has {
		v, err := schema.ApplyDefaults(s, c.value, t.snap.Catalog, t.producerEnv())
		if err != nil {
			t.fail(ref, record.ErrFunction, "defaults: "+err.Error())
			return
		}
		c.value = v
		return
	}
	v, ok, err := schema.Default(s, t.snap.Catalog, t.producerEnv())
	if err != nil {
		t.fail(ref, record.ErrFunction, "defaults: "+err.Error())
		return
	}
	if ok {
		c.setDefault(v)
	}
}

func (t *translation) applyCoercion(ref ir.FieldRef, def *ir.FieldDefinition, c *contribution) {
	if !c.has || !schema.NeedsCoercion(def.Schema) {
		return
	}
	v, err := schema.Coerce(def.Schema, c.value)
	if err == nil {
		c.value = v
		return
	}
	msg := err.Error()
	if ve, ok := schema.AsValidationError(err); ok {
		msg = ve.Message
		if ve.Path != "" {
			msg = ve.Path + ": " + msg
		}
	}
	t.fail(ref, record.ErrCoercion, msg)
	c.clear()
	t.applyDefaults(ref, def, c)
}

// evaluateModelExtensions runs once every field is done.
func (t *translation) evaluateModelExtensions() {
	for _, ext := range t.resolved.Extensions {
		plug, ok := t.snap.Catalog.ModelExtension(ext.Name)
		if !ok {
			continue
		}
		if err := guardErr(func() error { return plug.Evaluate(t.out, ext.Value) }); err != nil {
			t.fail(ir.FieldRef{Name: ext.Name}, record.ErrAfterHook, "model extension: "+err.Error())
		}
	}
}
