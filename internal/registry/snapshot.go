package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/index"
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/model"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/ruletable"
)

// Snapshot is one compiled configuration. It is immutable once built apart
// from the lazily filled index slots and the resolver memo, both of which
// are safe for concurrent use.
type Snapshot struct {
	Table   *ruletable.Table
	Models  *model.Resolver
	Catalog *plugin.Catalog
	Sources []string

	indexes map[string]*lazyIndex
}

type lazyIndex struct {
	once sync.Once
	idx  *index.Index
}

// Build compiles sources into a snapshot. Every source is parsed and
// checked before the rule table is built, so a *SourceError lists the
// problems of all sources at once.
func Build(sources []compiler.Source, catalog *plugin.Catalog, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	specs := make([]*ir.SourceSpec, 0, len(sources))
	names := make([]string, 0, len(sources))
	var problems []compiler.ValidationError
	for _, src := range sources {
		spec, err := compiler.CompileSource(src)
		if err != nil {
			return nil, err
		}
		problems = append(problems, compiler.Validate(spec)...)
		specs = append(specs, spec)
		names = append(names, src.Name)
	}
	if len(problems) > 0 {
		return nil, &SourceError{Errors: problems}
	}

	table, err := ruletable.Build(specs, catalog)
	if err != nil {
		return nil, err
	}
	resolver, err := model.NewResolver(table, specs, catalog, model.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Table:   table,
		Models:  resolver,
		Catalog: catalog,
		Sources: names,
		indexes: make(map[string]*lazyIndex),
	}
	for _, format := range table.Formats() {
		snap.indexes[format] = &lazyIndex{}
	}
	if _, ok := snap.indexes[ir.FormatJSON]; !ok {
		snap.indexes[ir.FormatJSON] = &lazyIndex{}
	}
	return snap, nil
}

// Index returns the multi-pattern index for a source format, building it
// on first use. Formats no field has rules for get an empty index.
func (s *Snapshot) Index(format string) *index.Index {
	slot, ok := s.indexes[format]
	if !ok {
		return index.Build(s.Table, format)
	}
	slot.once.Do(func() {
		slot.idx = index.Build(s.Table, format)
	})
	return slot.idx
}

// Fingerprint identifies the rule table the snapshot was built from.
func (s *Snapshot) Fingerprint() string {
	return s.Table.Fingerprint()
}
