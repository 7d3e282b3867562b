package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/bibform/internal/compiler"
)

const fieldsV1 = `
fields: {
	title: creator: marc: [{tags: ["245__"], function: "subfield", args: "a"}]
	subject: creator: marc: [{tags: ["650.."], function: "subfield", args: "a"}]
}
models: Book: fields: {title: "title"}
`

const fieldsV2 = `
fields: {
	title: creator: marc: [{tags: ["245__", "246__"], function: "subfield", args: "a"}]
}
`

// swapLoader lets a test change the configuration between loads.
type swapLoader struct {
	mu    sync.Mutex
	src   string
	loads int
}

func (l *swapLoader) set(src string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.src = src
}

func (l *swapLoader) Load() ([]compiler.Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return []compiler.Source{{Name: "fields.cue", Data: []byte(l.src)}}, nil
}

func TestSnapshotIsBuiltLazilyOnce(t *testing.T) {
	loader := &swapLoader{src: fieldsV1}
	reg := New(loader)
	assert.Equal(t, 0, loader.loads)

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.Snapshot()
			assert.NoError(t, err)
			snaps[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, loader.loads)
	for _, s := range snaps[1:] {
		assert.Same(t, snaps[0], s)
	}
	assert.Equal(t, []string{"title", "subject"}, snaps[0].Table.FieldIDs())
	assert.Equal(t, []string{"Book"}, snaps[0].Models.Names())
}

func TestReparseSwapsSnapshot(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	loader := &swapLoader{src: fieldsV1}
	reg := New(loader, WithLogger(zap.New(core)))

	first, err := reg.Snapshot()
	require.NoError(t, err)

	loader.set(fieldsV2)
	second, err := reg.Reparse()
	require.NoError(t, err)

	current, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, current)
	assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, []string{"title", "subject"}, first.Table.FieldIDs(), "old snapshot is untouched")
	assert.Equal(t, []string{"title"}, second.Table.FieldIDs())

	entries := logs.FilterMessage("configuration loaded").All()
	require.Len(t, entries, 2)
	assert.Equal(t, true, entries[1].ContextMap()["changed"])
}

func TestFailedReparseKeepsPreviousSnapshot(t *testing.T) {
	loader := &swapLoader{src: fieldsV1}
	reg := New(loader)
	first, err := reg.Snapshot()
	require.NoError(t, err)

	loader.set(`fields: title: {creator: marc: [{tags: ["245__"], function: "no_such_function"}]}`)
	_, err = reg.Reparse()
	require.Error(t, err)
	fpe, ok := compiler.IsFieldParserError(err)
	require.True(t, ok)
	assert.Equal(t, compiler.ErrUnknownPlugin, fpe.Code)

	current, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, current)
}

func TestBuildCollectsValidationErrorsAcrossSources(t *testing.T) {
	reg := New(MemLoader{
		{Name: "a.cue", Data: []byte(`fields: a: creator: marc: [{tags: [], function: "value"}]`)},
		{Name: "b.cue", Data: []byte(`fields: b: {pid: -1, creator: marc: [{tags: ["001"], function: "value"}]}`)},
	})
	err := reg.Load()
	require.Error(t, err)

	se, ok := IsSourceError(err)
	require.True(t, ok)
	codes := make([]string, len(se.Errors))
	for i, ve := range se.Errors {
		codes[i] = ve.Code
	}
	assert.Equal(t, []string{compiler.ErrCreatorNoTags, compiler.ErrNegativePID}, codes)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestDuplicateFieldAcrossSources(t *testing.T) {
	reg := New(MemLoader{
		{Name: "a.cue", Data: []byte(`fields: title: creator: marc: [{tags: ["245__"], function: "value"}]`)},
		{Name: "b.cue", Data: []byte(`fields: title: creator: marc: [{tags: ["246__"], function: "value"}]`)},
	})
	err := reg.Load()
	require.Error(t, err)
	assert.True(t, compiler.IsDuplicateField(err))
	assert.Contains(t, err.Error(), "a.cue")
}

func TestIndexIsBuiltOncePerFormat(t *testing.T) {
	reg := New(MemLoader{{Name: "fields.cue", Data: []byte(fieldsV1)}})
	snap, err := reg.Snapshot()
	require.NoError(t, err)

	marc := snap.Index("marc")
	assert.Same(t, marc, snap.Index("marc"))
	assert.Equal(t, "marc", marc.Format())
	assert.NotEmpty(t, marc.Query("65007"))

	json := snap.Index("json")
	assert.Same(t, json, snap.Index("json"))
	assert.NotEmpty(t, json.Query("title"))

	other := snap.Index("unimarc")
	assert.Empty(t, other.Query("245__"))
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fields.cue"), []byte(`fields: title: creator: marc: [{tags: ["245__"], function: "value"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "book.cue"), []byte(`models: Book: fields: ["title"]`), 0o644))

	reg := New(DirLoader{Dir: dir})
	snap, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "fields.cue"), filepath.Join(dir, "models", "book.cue")}, snap.Sources)
	assert.Equal(t, []string{"Book"}, snap.Models.Names())

	_, err = New(DirLoader{Dir: t.TempDir()}).Snapshot()
	assert.ErrorContains(t, err, "no .cue files")
}
