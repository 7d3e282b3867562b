package ruletable

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/schema"
)

// legacyKey is the before decorator whose entries feed the legacy table.
const legacyKey = "legacy"

type builder struct {
	catalog *plugin.Catalog
	fields  map[string]*ir.FieldDefinition
	order   []string
	legacy  map[string][]plugin.LegacyEntry // per json_id
}

type deferredSpec struct {
	source string
	spec   *ir.FieldSpec
}

// Build compiles parsed sources into a rule table. Sources are processed in
// the given order. Errors are *compiler.FieldParserError values.
func Build(sources []*ir.SourceSpec, catalog *plugin.Catalog) (*Table, error) {
	if catalog == nil {
		return nil, errors.New("ruletable: nil catalog")
	}
	b := &builder{
		catalog: catalog,
		fields:  make(map[string]*ir.FieldDefinition),
		legacy:  make(map[string][]plugin.LegacyEntry),
	}

	var deferred []deferredSpec
	for _, src := range sources {
		for i := range src.Fields {
			spec := &src.Fields[i]
			if (spec.Extend || spec.Override) && b.fields[spec.Name] == nil {
				deferred = append(deferred, deferredSpec{source: src.Name, spec: spec})
				continue
			}
			if err := b.add(src.Name, spec); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range deferred {
		if b.fields[d.spec.Name] == nil {
			return nil, &compiler.FieldParserError{
				Code:    compiler.ErrUndefinedBaseField,
				Field:   d.spec.Name,
				Source:  d.source,
				Line:    d.spec.Line,
				Message: fmt.Sprintf("%s targets a field that is never defined", mergeMode(d.spec)),
			}
		}
		if err := b.add(d.source, d.spec); err != nil {
			return nil, err
		}
	}

	return b.finish()
}

func mergeMode(spec *ir.FieldSpec) string {
	if spec.Override {
		return "override"
	}
	return "extend"
}

func (b *builder) add(source string, spec *ir.FieldSpec) error {
	def, legacy, err := b.compileField(source, spec)
	if err != nil {
		return err
	}

	existing := b.fields[spec.Name]
	switch {
	case existing == nil:
		b.fields[spec.Name] = def
		b.order = append(b.order, spec.Name)
		b.legacy[spec.Name] = legacy
	case spec.Override:
		def.Sources = append(slices.Clone(existing.Sources), source)
		b.fields[spec.Name] = def
		b.legacy[spec.Name] = legacy
	case spec.Extend:
		extendField(existing, def)
		existing.Sources = append(existing.Sources, source)
		b.legacy[spec.Name] = append(b.legacy[spec.Name], legacy...)
	default:
		return &compiler.FieldParserError{
			Code:    compiler.ErrDuplicateField,
			Field:   spec.Name,
			Source:  source,
			Line:    spec.Line,
			Message: fmt.Sprintf("already defined in %s; use extend or override", existing.Sources[0]),
		}
	}
	return nil
}

// extendField merges an extend definition into the existing one.
func extendField(dst, src *ir.FieldDefinition) {
	for _, format := range sortedKeys(src.Rules) {
		dst.Rules[format] = append(dst.Rules[format], src.Rules[format]...)
	}
	dst.Virtual = append(dst.Virtual, src.Virtual...)
	dst.Producers = append(dst.Producers, src.Producers...)
	for _, alias := range src.Aliases {
		if !slices.Contains(dst.Aliases, alias) {
			dst.Aliases = append(dst.Aliases, alias)
		}
	}
	dst.Hidden = dst.Hidden || src.Hidden
	if src.PID != nil {
		dst.PID = src.PID
	}
	if src.Schema != nil {
		dst.Schema = src.Schema
	}
	for _, ext := range src.Extensions {
		idx := slices.IndexFunc(dst.Extensions, func(e ir.Extension) bool { return e.Name == ext.Name })
		if idx >= 0 {
			dst.Extensions[idx] = ext
		} else {
			dst.Extensions = append(dst.Extensions, ext)
		}
	}
}

func (b *builder) compileField(source string, spec *ir.FieldSpec) (*ir.FieldDefinition, []plugin.LegacyEntry, error) {
	def := &ir.FieldDefinition{
		JSONID:    spec.Name,
		Aliases:   slices.Clone(spec.Aliases),
		PID:       spec.PID,
		Override:  spec.Override,
		Extend:    spec.Extend,
		Hidden:    spec.Hidden,
		Rules:     make(map[string][]ir.Rule),
		Schema:    spec.Schema,
		Producers: slices.Clone(spec.Producers),
		Sources:   []string{source},
	}
	fail := func(code string, line int, format string, args ...any) error {
		return &compiler.FieldParserError{
			Code:    code,
			Field:   spec.Name,
			Source:  source,
			Line:    line,
			Message: fmt.Sprintf(format, args...),
		}
	}

	var legacy []plugin.LegacyEntry
	for _, rs := range spec.Rules {
		rule, entries, err := b.compileRule(source, rs)
		if err != nil {
			var fpe *compiler.FieldParserError
			if errors.As(err, &fpe) {
				fpe.Field, fpe.Source, fpe.Line = spec.Name, source, rs.Line
				return nil, nil, fpe
			}
			return nil, nil, fail(compiler.ErrFieldShape, rs.Line, "%v", err)
		}
		if rule.Type.IsVirtual() {
			def.Virtual = append(def.Virtual, rule)
		} else {
			def.Rules[rule.SourceFormat] = append(def.Rules[rule.SourceFormat], rule)
		}
		legacy = append(legacy, entries...)
	}

	for _, ext := range spec.Extensions {
		fe, ok := b.catalog.FieldExtension(ext.Name)
		if !ok {
			return nil, nil, fail(compiler.ErrUnknownPlugin, spec.Line, "unknown field attribute or extension %q", ext.Name)
		}
		value, err := fe.CreateElement(ext.Value)
		if err != nil {
			return nil, nil, fail(compiler.ErrFieldShape, spec.Line, "extension %s: %v", ext.Name, err)
		}
		def.Extensions = append(def.Extensions, ir.Extension{Name: ext.Name, Value: value})
	}

	if err := b.checkSchema(spec.Schema, "schema"); err != nil {
		var fpe *compiler.FieldParserError
		if errors.As(err, &fpe) {
			fpe.Field, fpe.Source, fpe.Line = spec.Name, source, spec.Line
			return nil, nil, fpe
		}
		return nil, nil, fail(compiler.ErrFieldShape, spec.Line, "%v", err)
	}
	return def, legacy, nil
}

func (b *builder) compileRule(source string, rs ir.RuleSpec) (ir.Rule, []plugin.LegacyEntry, error) {
	rule := ir.Rule{
		Type:         rs.Type,
		SourceFormat: rs.Format,
		SourceTags:   slices.Clone(rs.Tags),
		Function:     describe(rs.Function, rs.Args),
		Decorators:   rs.Decorators,
		Source:       source,
	}
	unknown := func(kind, name string) error {
		return &compiler.FieldParserError{Code: compiler.ErrUnknownPlugin, Message: fmt.Sprintf("unknown %s %q", kind, name)}
	}

	for _, tag := range rs.Tags {
		if IsLiteralTag(tag) {
			continue
		}
		if _, err := CompileTag(tag); err != nil {
			return rule, nil, errors.Wrapf(err, "tag pattern %q", tag)
		}
	}

	if rs.Type.IsVirtual() {
		factory, ok := b.catalog.Virtual(rs.Function)
		if !ok {
			return rule, nil, unknown("virtual function", rs.Function)
		}
		fn, err := factory(rs.Args)
		if err != nil {
			return rule, nil, errors.Wrapf(err, "function %s", rs.Function)
		}
		rule.Virtual = fn
	} else {
		factory, ok := b.catalog.Creator(rs.Function)
		if !ok {
			return rule, nil, unknown("creator function", rs.Function)
		}
		fn, err := factory(rs.Args)
		if err != nil {
			return rule, nil, errors.Wrapf(err, "function %s", rs.Function)
		}
		rule.Creator = fn
	}

	var legacy []plugin.LegacyEntry
	for _, call := range rs.Decorators.Before {
		if !b.catalog.Has(plugin.KindBefore, call.Name) {
			return rule, nil, unknown("before decorator", call.Name)
		}
		if call.Name == legacyKey {
			entries, err := plugin.ParseLegacyEntries(call.Args)
			if err != nil {
				return rule, nil, err
			}
			legacy = append(legacy, entries...)
		}
	}
	for _, call := range rs.Decorators.On {
		if !b.catalog.Has(plugin.KindOn, call.Name) {
			return rule, nil, unknown("on decorator", call.Name)
		}
	}
	for _, call := range rs.Decorators.After {
		if !b.catalog.Has(plugin.KindAfter, call.Name) {
			return rule, nil, unknown("after decorator", call.Name)
		}
	}

	if rs.Type == ir.RuleCreator {
		legacy = append(legacy, subfieldLegacy(rs)...)
	}
	return rule, legacy, nil
}

// subfieldLegacy derives flat legacy names from subfield extraction rules:
// tag 100__ with {personal_name: "a"} yields 100__a -> personal_name.
func subfieldLegacy(rs ir.RuleSpec) []plugin.LegacyEntry {
	var pairs []ir.SubfieldMap
	switch rs.Function {
	case "subfields":
		mapping, err := plugin.SubfieldMapping(rs.Args)
		if err != nil {
			return nil
		}
		pairs = mapping
	case "subfield":
		code, ok := rs.Args.(ir.IRString)
		if !ok {
			obj, isObj := rs.Args.(ir.IRObject)
			if !isObj {
				return nil
			}
			code, ok = obj["code"].(ir.IRString)
			if !ok {
				return nil
			}
		}
		pairs = []ir.SubfieldMap{{Code: string(code)}}
	default:
		return nil
	}

	var out []plugin.LegacyEntry
	for _, tag := range rs.Tags {
		if !IsLiteralTag(tag) {
			continue
		}
		for _, p := range pairs {
			out = append(out, plugin.LegacyEntry{Tag: tag + p.Code, Path: p.Path})
		}
	}
	return out
}

func (b *builder) checkSchema(s *ir.Schema, at string) error {
	if s == nil {
		return nil
	}
	if s.DefaultFunc != "" && !b.catalog.Has(plugin.KindDefault, s.DefaultFunc) {
		return &compiler.FieldParserError{Code: compiler.ErrUnknownPlugin,
			Message: fmt.Sprintf("%s: unknown default producer %q", at, s.DefaultFunc)}
	}
	if s.Constraint != "" {
		if err := schema.CheckConstraintSyntax(s.Constraint); err != nil {
			return errors.Wrap(err, at)
		}
	}
	if s.Default != nil {
		if err := schema.Validate(&ir.Schema{Type: s.Type}, s.Default); err != nil {
			return errors.Wrapf(err, "%s: default", at)
		}
	}
	for _, name := range sortedKeys(s.Properties) {
		if err := b.checkSchema(s.Properties[name], at+".properties."+name); err != nil {
			return err
		}
	}
	return b.checkSchema(s.Items, at+".items")
}

// describe renders a function call for provenance, e.g.
// subfields({"affiliation":"u","personal_name":"a"}).
func describe(name string, args ir.IRValue) string {
	if args == nil {
		return name + "()"
	}
	data, err := ir.MarshalIRValue(args)
	if err != nil {
		return name + "(?)"
	}
	return name + "(" + string(data) + ")"
}

func (b *builder) finish() (*Table, error) {
	t := &Table{
		fields:  b.fields,
		order:   b.order,
		aliases: make(map[string]string),
		legacy:  make(map[string][]string),
	}

	formats := make(map[string]bool)
	for _, id := range b.order {
		def := b.fields[id]
		synthesizeJSONRule(def)
		for format := range def.Rules {
			formats[format] = true
		}

		for _, alias := range def.Aliases {
			if other, taken := t.aliases[alias]; taken && other != id {
				return nil, &compiler.FieldParserError{Code: compiler.ErrDuplicateField, Field: id, Source: def.Sources[0],
					Message: fmt.Sprintf("alias %q already belongs to field %q", alias, other)}
			}
			if _, isField := b.fields[alias]; isField && alias != id {
				return nil, &compiler.FieldParserError{Code: compiler.ErrDuplicateField, Field: id, Source: def.Sources[0],
					Message: fmt.Sprintf("alias %q is already a field name", alias)}
			}
			t.aliases[alias] = id
		}

		for _, entry := range b.legacy[id] {
			path := id
			if entry.Path != "" {
				path = id + "." + entry.Path
			}
			if !slices.Contains(t.legacy[entry.Tag], path) {
				t.legacy[entry.Tag] = append(t.legacy[entry.Tag], path)
			}
		}
	}
	t.formats = sortedKeys(formats)

	summary, err := summarize(t)
	if err != nil {
		return nil, err
	}
	fp, err := ir.TableFingerprint(summary)
	if err != nil {
		return nil, errors.Wrap(err, "ruletable: fingerprint")
	}
	t.summary, t.fingerprint = summary, fp
	return t, nil
}

// synthesizeJSONRule adds the identity json rule so any dump can be read
// back as json input.
func synthesizeJSONRule(def *ir.FieldDefinition) {
	if len(def.Rules[ir.FormatJSON]) > 0 {
		return
	}
	fn, _ := plugin.ValueFunc(nil)
	def.Rules[ir.FormatJSON] = []ir.Rule{{
		Type:         ir.RuleCreator,
		SourceFormat: ir.FormatJSON,
		SourceTags:   append([]string{def.JSONID}, def.Aliases...),
		Function:     "value()",
		Creator:      fn,
	}}
}

func summarize(t *Table) (ir.IRObject, error) {
	fields := make(ir.IRArray, 0, len(t.order))
	for _, id := range t.order {
		data, err := json.Marshal(t.fields[id])
		if err != nil {
			return nil, errors.Wrapf(err, "ruletable: summarizing %s", id)
		}
		v, err := ir.UnmarshalIRValue(data)
		if err != nil {
			return nil, errors.Wrapf(err, "ruletable: summarizing %s", id)
		}
		fields = append(fields, ir.StripNulls(v))
	}
	return ir.IRObject{
		"ir_version": ir.IRString(ir.IRVersion),
		"fields":     fields,
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
