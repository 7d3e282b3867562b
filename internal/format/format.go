// Package format holds the blob preparers: per input encoding, how a raw
// multi-record blob is split and how one record is turned into an
// intermediate record.
package format

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/marc"
)

// Preparer reads one input encoding.
type Preparer interface {
	// Name is the input format name callers select the preparer by.
	Name() string

	// MasterFormat is the master format of the records it prepares, which
	// selects the creator rules applied to them.
	MasterFormat() string

	// SplitBlob cuts a raw blob into single-record blobs.
	SplitBlob(raw []byte) ([][]byte, error)

	// Prepare parses a single-record blob.
	Prepare(raw []byte) (*ir.Intermediate, error)
}

// Registry holds preparers by name.
type Registry struct {
	mu        sync.RWMutex
	preparers map[string]Preparer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{preparers: make(map[string]Preparer)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry holding the json, marc (MARCXML) and
// textmarc preparers.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		for _, p := range []Preparer{JSONPreparer{}, marc.XMLPreparer{}, marc.TextPreparer{}} {
			if err := r.Register(p); err != nil {
				panic(err)
			}
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Register adds a preparer. Names are unique.
func (r *Registry) Register(p Preparer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.preparers[p.Name()]; dup {
		return errors.Newf("format: preparer %q already registered", p.Name())
	}
	r.preparers[p.Name()] = p
	return nil
}

// Lookup returns the preparer registered under name.
func (r *Registry) Lookup(name string) (Preparer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preparers[name]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.preparers))
	for name := range r.preparers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
