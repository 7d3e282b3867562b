// Package model resolves named models into flat exposed-name to json_id
// maps, following inheritance and combining model extensions through their
// InheritModel hooks.
package model

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/ruletable"
)

// Resolver resolves models against one rule table. It is immutable apart
// from its memo and safe for concurrent use; a reparse builds a new one.
type Resolver struct {
	table   *ruletable.Table
	catalog *plugin.Catalog
	logger  *zap.Logger
	models  map[string]*ir.ModelDefinition
	order   []string
	memo    sync.Map // normalized key -> memoEntry
}

type memoEntry struct {
	resolved *Resolved
	err      error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for non-fatal resolution warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver collects the models of every source and checks the parts
// that do not depend on resolution: duplicate names, extension names and
// inheritance cycles.
func NewResolver(table *ruletable.Table, sources []*ir.SourceSpec, catalog *plugin.Catalog, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		table:   table,
		catalog: catalog,
		logger:  zap.NewNop(),
		models:  make(map[string]*ir.ModelDefinition),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, src := range sources {
		for _, spec := range src.Models {
			if prev, dup := r.models[spec.Name]; dup {
				return nil, &compiler.ModelParserError{
					Code: compiler.ErrModelShape, Model: spec.Name, Source: src.Name, Line: spec.Line,
					Message: fmt.Sprintf("model already declared in %s", prev.Source),
				}
			}
			if spec.Name == ir.DefaultModel {
				return nil, &compiler.ModelParserError{
					Code: compiler.ErrModelShape, Model: spec.Name, Source: src.Name, Line: spec.Line,
					Message: "the default model name is reserved",
				}
			}
			def, err := r.compileModel(src.Name, spec)
			if err != nil {
				return nil, err
			}
			r.models[spec.Name] = def
			r.order = append(r.order, spec.Name)
		}
	}

	graph := make(compiler.InheritanceGraph, len(r.models))
	for name, def := range r.models {
		graph[name] = def.Bases
	}
	if cycles := compiler.FindInheritanceCycles(graph); len(cycles) > 0 {
		first := r.models[cycles[0][0]]
		return nil, &compiler.ModelParserError{
			Code: compiler.ErrModelCycle, Model: first.Name, Source: first.Source, Line: first.Line,
			Message: "inheritance cycle " + strings.Join(cycles[0], " -> "),
		}
	}
	return r, nil
}

func (r *Resolver) compileModel(source string, spec ir.ModelSpec) (*ir.ModelDefinition, error) {
	def := &ir.ModelDefinition{
		Name:   spec.Name,
		Fields: slices.Clone(spec.Fields),
		Bases:  slices.Clone(spec.Bases),
		Source: source,
		Line:   spec.Line,
	}
	for _, ext := range spec.Extensions {
		me, ok := r.catalog.ModelExtension(ext.Name)
		if !ok {
			return nil, &compiler.ModelParserError{
				Code: compiler.ErrUnknownPlugin, Model: spec.Name, Source: source, Line: spec.Line,
				Message: fmt.Sprintf("unknown model attribute or extension %q", ext.Name),
			}
		}
		value, err := me.CreateElement(ext.Value)
		if err != nil {
			return nil, &compiler.ModelParserError{
				Code: compiler.ErrModelShape, Model: spec.Name, Source: source, Line: spec.Line,
				Message: fmt.Sprintf("extension %s: %v", ext.Name, err),
			}
		}
		def.Extensions = append(def.Extensions, ir.Extension{Name: ext.Name, Value: value})
	}
	return def, nil
}

// Model returns a declared model definition.
func (r *Resolver) Model(name string) (*ir.ModelDefinition, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Names returns the declared model names in declaration order.
func (r *Resolver) Names() []string {
	return slices.Clone(r.order)
}

// Resolve resolves one model or a list of models. No names, or the
// __default__ sentinel, resolve to every known field under its json_id.
// Later names overwrite earlier ones. Unknown names contribute the default
// field set and are logged; they never fail the resolution.
func (r *Resolver) Resolve(names ...string) (*Resolved, error) {
	names = normalize(names)
	key := strings.Join(names, "\x00")
	if cached, ok := r.memo.Load(key); ok {
		e := cached.(memoEntry)
		return e.resolved, e.err
	}

	res, err := r.resolveList(names)
	actual, _ := r.memo.LoadOrStore(key, memoEntry{resolved: res, err: err})
	e := actual.(memoEntry)
	return e.resolved, e.err
}

func normalize(names []string) []string {
	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return []string{ir.DefaultModel}
	}
	return out
}

func (r *Resolver) resolveList(names []string) (*Resolved, error) {
	if len(names) == 1 {
		return r.resolveOne(names[0])
	}

	acc := newResolved(names)
	for _, name := range names {
		part, err := r.resolveOne(name)
		if err != nil {
			return nil, err
		}
		acc.overlay(part)
		acc.Bases = appendUnique(acc.Bases, part.Bases...)
		acc.Extensions = r.inheritExtensions(part.Extensions, acc.Extensions)
	}
	return acc, nil
}

func (r *Resolver) resolveOne(name string) (*Resolved, error) {
	if name == ir.DefaultModel {
		return r.defaultModel(), nil
	}
	if _, ok := r.models[name]; !ok {
		r.logger.Warn("unknown model, using default field set", zap.String("model", name))
		return r.defaultModel(), nil
	}
	return r.resolveModel(name)
}

func (r *Resolver) defaultModel() *Resolved {
	res := newResolved([]string{ir.DefaultModel})
	for _, id := range r.table.FieldIDs() {
		res.set(id, id)
	}
	return res
}

// resolveModel resolves a declared model depth-first. Bases apply in
// declaration order, then the model's own fields; an own entry replaces
// every inherited exposed name pointing at the same json_id.
func (r *Resolver) resolveModel(name string) (*Resolved, error) {
	if cached, ok := r.memo.Load(name); ok {
		e := cached.(memoEntry)
		return e.resolved, e.err
	}

	def := r.models[name]
	res := newResolved([]string{name})
	var baseExts [][]ir.Extension
	for _, base := range def.Bases {
		if _, ok := r.models[base]; !ok {
			return nil, &compiler.ModelParserError{
				Code: compiler.ErrUnknownBase, Model: name, Source: def.Source, Line: def.Line,
				Message: fmt.Sprintf("unknown base model %q", base),
			}
		}
		parent, err := r.resolveModel(base)
		if err != nil {
			return nil, err
		}
		res.overlay(parent)
		res.Bases = appendUnique(res.Bases, base)
		res.Bases = appendUnique(res.Bases, parent.Bases...)
		baseExts = append(baseExts, parent.Extensions)
	}

	for _, ref := range def.Fields {
		id, ok := r.table.ResolveAlias(ref.JSONID)
		if !ok {
			return nil, &compiler.ModelParserError{
				Code: compiler.ErrUndeclaredField, Model: name, Source: def.Source, Line: def.Line,
				Message: fmt.Sprintf("field %q refers to undeclared field %q", ref.Name, ref.JSONID),
			}
		}
		res.rename(ref.Name, id)
	}

	exts := slices.Clone(def.Extensions)
	for _, base := range baseExts {
		exts = r.inheritExtensions(exts, base)
	}
	res.Extensions = exts

	r.memo.Store(name, memoEntry{resolved: res})
	return res, nil
}

// inheritExtensions combines current with base through each extension's
// InheritModel hook. Names keep first-seen order, current first.
func (r *Resolver) inheritExtensions(current, base []ir.Extension) []ir.Extension {
	out := slices.Clone(current)
	for _, b := range base {
		idx := slices.IndexFunc(out, func(e ir.Extension) bool { return e.Name == b.Name })
		var cur ir.IRValue
		if idx >= 0 {
			cur = out[idx].Value
		}
		merged := b.Value
		if me, ok := r.catalog.ModelExtension(b.Name); ok {
			merged = me.InheritModel(cur, b.Value)
		} else if cur != nil {
			merged = cur
		}
		if idx >= 0 {
			out[idx].Value = merged
		} else {
			out = append(out, ir.Extension{Name: b.Name, Value: merged})
		}
	}
	return out
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(dst, item) {
			dst = append(dst, item)
		}
	}
	return dst
}
