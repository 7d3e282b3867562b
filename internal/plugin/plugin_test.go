package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
)

// fakeTarget is a map-backed Target.
type fakeTarget struct {
	data         ir.IRObject
	origins      map[string]string
	capabilities map[string]any
	puts         int
}

func newFakeTarget(data ir.IRObject) *fakeTarget {
	return &fakeTarget{data: data, origins: map[string]string{}, capabilities: map[string]any{}}
}

func (f *fakeTarget) Get(path string) (ir.IRValue, bool) { return ir.Lookup(f.data, path) }

func (f *fakeTarget) Put(name string, v ir.IRValue, origin string) error {
	f.puts++
	f.data[name] = v
	f.origins[name] = origin
	return nil
}

func (f *fakeTarget) AddCapability(name string, c any) { f.capabilities[name] = c }

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.RegisterBefore("gate", OnlyIf{}))

	err := c.RegisterBefore("gate", ParseFirst{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `before "gate" already registered`)

	// Kinds are separate namespaces.
	require.NoError(t, c.RegisterOn("gate", OnlyIfValue{}))
	require.Error(t, c.RegisterAfter("", CopyTo{}))
}

func TestDefaultCatalogNames(t *testing.T) {
	c := NewDefaultCatalog()

	assert.Equal(t, []string{"depends_on", "legacy", "only_if", "parse_first"}, c.Names(KindBefore))
	assert.Equal(t, []string{"only_if_master_value", "only_if_value"}, c.Names(KindOn))
	assert.Equal(t, []string{"copy_to", "dedupe"}, c.Names(KindAfter))
	assert.Equal(t, []string{"const", "integer", "join", "subfield", "subfields", "value"}, c.Names(KindCreator))
	assert.Equal(t, []string{"const", "copy", "count", "first"}, c.Names(KindVirtual))

	_, ok := c.Creator("subfields")
	assert.True(t, ok)
	_, ok = c.Creator("nope")
	assert.False(t, ok)
}

func TestSubfieldsFunc(t *testing.T) {
	fn, err := SubfieldsFunc(ir.IRObject{"personal_name": ir.IRString("a"), "affiliation": ir.IRString("u")})
	require.NoError(t, err)

	got, err := fn(ir.IRObject{"a": ir.IRString("Ellis"), "u": ir.IRString("CERN"), "z": ir.IRString("x")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"personal_name": ir.IRString("Ellis"), "affiliation": ir.IRString("CERN")}, got)

	got, err = fn(ir.IRObject{"z": ir.IRString("x")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, got)

	_, err = SubfieldsFunc(ir.IRString("a"))
	require.Error(t, err)
}

func TestSubfieldFunc(t *testing.T) {
	all, err := SubfieldFunc(ir.IRString("a"))
	require.NoError(t, err)
	first, err := SubfieldFunc(ir.IRObject{"code": ir.IRString("a"), "first": ir.IRBool(true)})
	require.NoError(t, err)

	elem := ir.IRObject{"a": ir.IRArray{ir.IRString("x"), ir.IRString("y")}}
	got, err := all(elem)
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("x"), ir.IRString("y")}, got)

	got, err = first(elem)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x"), got)

	// Control fields are scalars.
	got, err = all(ir.IRString("1"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("1"), got)

	_, err = SubfieldFunc(nil)
	require.Error(t, err)
}

func TestIntegerFunc(t *testing.T) {
	fn, err := IntegerFunc(ir.IRObject{"code": ir.IRString("c")})
	require.NoError(t, err)

	got, err := fn(ir.IRObject{"c": ir.IRString(" 42 ")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(42), got)

	_, err = fn(ir.IRObject{"c": ir.IRString("forty-two")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not an integer")

	got, err = fn(ir.IRObject{"a": ir.IRString("x")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, got)
}

func TestJoinFunc(t *testing.T) {
	fn, err := JoinFunc(ir.IRObject{"codes": ir.IRArray{ir.IRString("a"), ir.IRString("b")}, "sep": ir.IRString(" : ")})
	require.NoError(t, err)

	got, err := fn(ir.IRObject{"b": ir.IRString("subtitle"), "a": ir.IRArray{ir.IRString("Main"), ir.IRString("title")}})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Main : title : subtitle"), got)

	_, err = JoinFunc(ir.IRObject{})
	require.Error(t, err)
}

func TestConstFuncClones(t *testing.T) {
	fn, err := ConstFunc(ir.IRObject{"k": ir.IRString("v")})
	require.NoError(t, err)

	a, _ := fn(nil)
	a.(ir.IRObject)["k"] = ir.IRString("mutated")
	b, _ := fn(nil)
	assert.Equal(t, ir.IRObject{"k": ir.IRString("v")}, b)
}

func TestVirtualFunctions(t *testing.T) {
	rec := newFakeTarget(ir.IRObject{
		"authors": ir.IRArray{ir.IRObject{"full_name": ir.IRString("Ellis")}, ir.IRObject{"full_name": ir.IRString("Higgs")}},
	})

	count, err := CountVirtual(ir.IRObject{"field": ir.IRString("authors")})
	require.NoError(t, err)
	got, err := count(rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(2), got)

	countMissing, err := CountVirtual(ir.IRString("editors"))
	require.NoError(t, err)
	got, err = countMissing(rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(0), got)

	first, err := FirstVirtual(ir.IRString("authors.full_name"))
	require.NoError(t, err)
	got, err = first(rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Ellis"), got)

	cp, err := CopyVirtual(ir.IRString("missing"))
	require.NoError(t, err)
	got, err = cp(rec)
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, got)

	_, err = CountVirtual(nil)
	require.Error(t, err)
}

func TestOnlyIfMasterValue(t *testing.T) {
	d := OnlyIfMasterValue{}
	assert.False(t, d.OnTransformed())

	elem := ir.IRObject{"a": ir.IRString("10.1000/1"), "2": ir.IRString("DOI")}

	ok, err := d.Evaluate(elem, nil, ir.IRObject{"subfield": ir.IRString("2"), "equals": ir.IRString("DOI")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Evaluate(elem, nil, ir.IRObject{"subfield": ir.IRString("2"), "in": ir.IRArray{ir.IRString("ISBN"), ir.IRString("URN")}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.Evaluate(elem, nil, ir.IRObject{"subfield": ir.IRString("9"), "exists": ir.IRBool(false)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Evaluate(ir.IRString("scalar"), nil, ir.IRObject{"subfield": ir.IRString("a")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOnlyIfValue(t *testing.T) {
	d := OnlyIfValue{}
	assert.True(t, d.OnTransformed())

	value := ir.IRObject{"personal_name": ir.IRArray{ir.IRString("Ellis"), ir.IRString("J.")}}
	ok, err := d.Evaluate(value, nil, ir.IRObject{"path": ir.IRString("personal_name"), "equals": ir.IRString("J.")})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Evaluate(value, nil, ir.IRObject{"path": ir.IRString("affiliation")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBeforeDecorators(t *testing.T) {
	rec := newFakeTarget(ir.IRObject{"collection": ir.IRObject{"primary": ir.IRString("ARTICLE")}})
	var required []string
	ctx := &BeforeContext{
		MasterFormat: "marc",
		Record:       rec,
		Require: func(name string) bool {
			required = append(required, name)
			_, ok := rec.Get(name)
			return ok
		},
	}

	ok, err := OnlyIf{}.Evaluate(ctx, ir.IRObject{"master_format": ir.IRString("json")})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = OnlyIf{}.Evaluate(ctx, ir.IRObject{
		"master_format": ir.IRArray{ir.IRString("marc")},
		"field":         ir.IRString("collection.primary"),
		"equals":        ir.IRString("ARTICLE"),
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, required, "only_if reads the record without processing fields")

	ok, err = OnlyIf{}.Evaluate(ctx, ir.IRObject{"field": ir.IRString("authors"), "exists": ir.IRBool(true)})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, required, "a false answer leaves the record alone")

	ok, err = ParseFirst{}.Evaluate(ctx, ir.IRArray{ir.IRString("authors"), ir.IRString("title")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"authors", "title"}, required)

	ok, err = DependsOn{}.Evaluate(ctx, ir.IRArray{ir.IRString("collection"), ir.IRString("authors")})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = DependsOn{}.Evaluate(ctx, ir.IRObject{"fields": ir.IRString("collection")})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseLegacyEntries(t *testing.T) {
	entries, err := ParseLegacyEntries(ir.IRArray{
		ir.IRObject{"tag": ir.IRString("100__a"), "path": ir.IRString("personal_name")},
		ir.IRObject{"tag": ir.IRString("100__")},
	})
	require.NoError(t, err)
	assert.Equal(t, []LegacyEntry{{Tag: "100__a", Path: "personal_name"}, {Tag: "100__"}}, entries)

	_, err = ParseLegacyEntries(ir.IRObject{"path": ir.IRString("x")})
	require.Error(t, err)
}

func TestCopyToAndDedupeAreIdempotent(t *testing.T) {
	out := newFakeTarget(ir.IRObject{
		"authors": ir.IRArray{ir.IRString("Ellis"), ir.IRString("Higgs"), ir.IRString("Ellis")},
	})

	require.NoError(t, Dedupe{}.Evaluate(out, "authors", ActionTranslate, nil))
	assert.Equal(t, ir.IRArray{ir.IRString("Ellis"), ir.IRString("Higgs")}, out.data["authors"])
	require.NoError(t, Dedupe{}.Evaluate(out, "authors", ActionTranslate, nil))
	assert.Equal(t, 1, out.puts)

	require.NoError(t, CopyTo{}.Evaluate(out, "authors", ActionSet, ir.IRObject{"field": ir.IRString("creators")}))
	require.NoError(t, CopyTo{}.Evaluate(out, "authors", ActionSet, ir.IRObject{"field": ir.IRString("creators")}))
	assert.Equal(t, out.data["authors"], out.data["creators"])
	assert.Equal(t, "authors", out.origins["creators"])

	require.Error(t, CopyTo{}.Evaluate(out, "authors", ActionSet, ir.IRString("authors")))
}

func TestNormalizeExtension(t *testing.T) {
	n := Normalize{}
	form, err := n.CreateElement(ir.IRString("nfc"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("NFC"), form)

	_, err = n.CreateElement(ir.IRString("NFX"))
	require.Error(t, err)

	out := newFakeTarget(ir.IRObject{"title": ir.IRObject{"title": ir.IRString("Cafe\u0301")}})
	require.NoError(t, n.Evaluate(out, "title", form))
	assert.Equal(t, ir.IRObject{"title": ir.IRString("Caf\u00e9")}, out.data["title"])
}

func TestCapabilitiesExtension(t *testing.T) {
	c := NewDefaultCatalog()
	ext, ok := c.ModelExtension("capabilities")
	require.True(t, ok)

	v, err := ext.CreateElement(ir.IRArray{ir.IRString("citable")})
	require.NoError(t, err)

	_, err = ext.CreateElement(ir.IRString("teleport"))
	require.Error(t, err)

	merged := ext.InheritModel(v, ir.IRArray{ir.IRString("identifiable"), ir.IRString("citable")})
	assert.Equal(t, ir.IRArray{ir.IRString("identifiable"), ir.IRString("citable")}, merged)
	assert.Nil(t, ext.InheritModel(nil, nil))

	out := newFakeTarget(ir.IRObject{
		"title":                    ir.IRObject{"title": ir.IRString("Higgs boson")},
		"main_entry_personal_name": ir.IRObject{"personal_name": ir.IRString("Ellis")},
		"control_number":           ir.IRString("1"),
	})
	require.NoError(t, ext.Evaluate(out, merged))

	citable, ok := out.capabilities["citable"].(*Citable)
	require.True(t, ok)
	assert.Equal(t, "Ellis: Higgs boson", citable.Citation())

	ident, ok := out.capabilities["identifiable"].(*Identifiable)
	require.True(t, ok)
	cn, ok := ident.ControlNumber()
	require.True(t, ok)
	assert.Equal(t, "1", cn)
}

func TestModelDescriptionInherits(t *testing.T) {
	d := ModelDescription{}
	assert.Equal(t, ir.IRString("base"), d.InheritModel(nil, ir.IRString("base")))
	assert.Equal(t, ir.IRString("own"), d.InheritModel(ir.IRString("own"), ir.IRString("base")))
}

func TestDefaultProducers(t *testing.T) {
	env := ProducerEnv{
		Now:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		NewID: func() string { return "fixed-id" },
	}

	v, err := NowDefault(env)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("2024-03-01T12:00:00Z"), v)

	v, err = UUIDDefault(env)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("fixed-id"), v)

	v, err = UUIDDefault(ProducerEnv{})
	require.NoError(t, err)
	assert.Len(t, string(v.(ir.IRString)), 36)

	v, _ = EmptyListDefault(env)
	assert.Equal(t, ir.IRArray{}, v)
	v, _ = EmptyObjectDefault(env)
	assert.Equal(t, ir.IRObject{}, v)
}
