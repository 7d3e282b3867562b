// Package registry owns the compiled configuration a translation runs
// against. A Registry publishes an immutable Snapshot (rule table, model
// resolver, lazily built indexes) and swaps it atomically on Reparse, so
// readers holding an older snapshot finish against a consistent view.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/compiler"
	"github.com/roach88/bibform/internal/plugin"
)

// Loader supplies the configuration sources, in the order they apply.
type Loader interface {
	Load() ([]compiler.Source, error)
}

// DirLoader reads every .cue file under Dir in lexical path order.
type DirLoader struct {
	Dir string
}

func (l DirLoader) Load() ([]compiler.Source, error) {
	sources, err := compiler.LoadDir(l.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: loading %s", l.Dir)
	}
	if len(sources) == 0 {
		return nil, errors.Newf("registry: no .cue files in %s", l.Dir)
	}
	return sources, nil
}

// MemLoader serves sources held in memory.
type MemLoader []compiler.Source

func (l MemLoader) Load() ([]compiler.Source, error) {
	return append([]compiler.Source(nil), l...), nil
}

// SourceError reports the structural problems found in the sources. It
// carries every problem, not just the first.
type SourceError struct {
	Errors []compiler.ValidationError
}

func (e *SourceError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// IsSourceError reports whether err carries validation problems.
func IsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Registry is the handle callers translate through.
type Registry struct {
	loader  Loader
	catalog *plugin.Catalog
	logger  *zap.Logger

	mu      sync.Mutex // serialises loads
	current atomic.Pointer[Snapshot]
}

// Option configures a Registry.
type Option func(*Registry)

// WithCatalog replaces the builtin plugin catalog. Custom plugins must be
// registered before the first load.
func WithCatalog(c *plugin.Catalog) Option {
	return func(r *Registry) { r.catalog = c }
}

// WithLogger sets the registry logger. It is handed to the model resolver.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New returns a registry reading its configuration from loader. Nothing is
// compiled until the first Load, Snapshot or Reparse.
func New(loader Loader, opts ...Option) *Registry {
	r := &Registry{loader: loader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = plugin.NewDefaultCatalog()
	}
	return r
}

// Catalog returns the plugin catalog shared by every snapshot.
func (r *Registry) Catalog() *plugin.Catalog {
	return r.catalog
}

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger {
	return r.logger
}

// Load compiles the configuration unless a snapshot is already published.
func (r *Registry) Load() error {
	_, err := r.Snapshot()
	return err
}

// Snapshot returns the published snapshot, building it on first use.
func (r *Registry) Snapshot() (*Snapshot, error) {
	if s := r.current.Load(); s != nil {
		return s, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.current.Load(); s != nil {
		return s, nil
	}
	return r.rebuild()
}

// Reparse re-reads and recompiles the configuration and publishes the new
// snapshot. On failure the previous snapshot stays published.
func (r *Registry) Reparse() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuild()
}

func (r *Registry) rebuild() (*Snapshot, error) {
	sources, err := r.loader.Load()
	if err != nil {
		return nil, err
	}
	snap, err := Build(sources, r.catalog, r.logger)
	if err != nil {
		r.logger.Warn("configuration rejected", zap.Error(err))
		return nil, err
	}
	prev := r.current.Swap(snap)

	fields := []zap.Field{
		zap.Int("sources", len(sources)),
		zap.Int("fields", snap.Table.Len()),
		zap.Int("models", len(snap.Models.Names())),
		zap.String("fingerprint", snap.Fingerprint()),
	}
	if prev != nil {
		fields = append(fields, zap.Bool("changed", prev.Fingerprint() != snap.Fingerprint()))
	}
	r.logger.Info("configuration loaded", fields...)
	return snap, nil
}
