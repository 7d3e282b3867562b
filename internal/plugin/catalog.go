package plugin

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
)

// Kind identifies one of the catalog's namespaces.
type Kind string

const (
	KindBefore         Kind = "before"
	KindOn             Kind = "on"
	KindAfter          Kind = "after"
	KindFieldExtension Kind = "field_extension"
	KindModelExtension Kind = "model_extension"
	KindCreator        Kind = "creator"
	KindVirtual        Kind = "virtual"
	KindCapability     Kind = "capability"
	KindDefault        Kind = "default"
)

// Catalog is the name-keyed registry of plugins and function factories.
// Each kind is its own namespace. Registration is expected to finish before
// the first translation; lookups are safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]any
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[Kind]map[string]any)}
}

// NewDefaultCatalog returns a catalog holding every builtin plugin.
func NewDefaultCatalog() *Catalog {
	c := NewCatalog()
	if err := RegisterBuiltins(c); err != nil {
		// Builtin names are unique; a failure here is a programming error.
		panic(err)
	}
	return c
}

func (c *Catalog) register(kind Kind, name string, v any) error {
	if name == "" {
		return errors.Newf("plugin: empty %s name", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.entries[kind]
	if !ok {
		ns = make(map[string]any)
		c.entries[kind] = ns
	}
	if _, exists := ns[name]; exists {
		return errors.Newf("plugin: %s %q already registered", kind, name)
	}
	ns[name] = v
	return nil
}

func lookup[T any](c *Catalog, kind Kind, name string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[kind][name]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Has reports whether name is registered under kind.
func (c *Catalog) Has(kind Kind, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[kind][name]
	return ok
}

// Names returns the sorted names registered under kind.
func (c *Catalog) Names(kind Kind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries[kind]))
	for name := range c.entries[kind] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Catalog) RegisterBefore(name string, d BeforeDecorator) error {
	return c.register(KindBefore, name, d)
}

func (c *Catalog) RegisterOn(name string, d OnDecorator) error {
	return c.register(KindOn, name, d)
}

func (c *Catalog) RegisterAfter(name string, d AfterDecorator) error {
	return c.register(KindAfter, name, d)
}

func (c *Catalog) RegisterFieldExtension(name string, e FieldExtension) error {
	return c.register(KindFieldExtension, name, e)
}

func (c *Catalog) RegisterModelExtension(name string, e ModelExtension) error {
	return c.register(KindModelExtension, name, e)
}

func (c *Catalog) RegisterCreator(name string, f CreatorFactory) error {
	return c.register(KindCreator, name, f)
}

func (c *Catalog) RegisterVirtual(name string, f VirtualFactory) error {
	return c.register(KindVirtual, name, f)
}

func (c *Catalog) RegisterCapability(name string, f CapabilityFactory) error {
	return c.register(KindCapability, name, f)
}

func (c *Catalog) RegisterDefault(name string, f DefaultProducer) error {
	return c.register(KindDefault, name, f)
}

func (c *Catalog) Before(name string) (BeforeDecorator, bool) {
	return lookup[BeforeDecorator](c, KindBefore, name)
}

func (c *Catalog) On(name string) (OnDecorator, bool) {
	return lookup[OnDecorator](c, KindOn, name)
}

func (c *Catalog) After(name string) (AfterDecorator, bool) {
	return lookup[AfterDecorator](c, KindAfter, name)
}

func (c *Catalog) FieldExtension(name string) (FieldExtension, bool) {
	return lookup[FieldExtension](c, KindFieldExtension, name)
}

func (c *Catalog) ModelExtension(name string) (ModelExtension, bool) {
	return lookup[ModelExtension](c, KindModelExtension, name)
}

func (c *Catalog) Creator(name string) (CreatorFactory, bool) {
	return lookup[CreatorFactory](c, KindCreator, name)
}

func (c *Catalog) Virtual(name string) (VirtualFactory, bool) {
	return lookup[VirtualFactory](c, KindVirtual, name)
}

func (c *Catalog) Capability(name string) (CapabilityFactory, bool) {
	return lookup[CapabilityFactory](c, KindCapability, name)
}

func (c *Catalog) Default(name string) (DefaultProducer, bool) {
	return lookup[DefaultProducer](c, KindDefault, name)
}
