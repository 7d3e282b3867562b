package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
)

const exampleSource = `
fields: {
	title: {
		description: "Main title statement"
		creator: marc: [{
			tags: ["245__"]
			function: "subfields"
			args: {title: "a", subtitle: "b"}
			after: dedupe: {}
		}]
		producer: json_for_marc: [{tag: "245__", subfields: {a: "title", b: "subtitle"}}]
		schema: {
			type: "object"
			required: ["title"]
			properties: title: type: "string"
		}
	}
	authors: {
		aliases: ["main_entry_personal_name"]
		pid: 2
		creator: marc: [{
			tags: ["100__", "700.."]
			function: "subfield"
			args: {code: "a"}
			before: only_if: {master_format: "marc"}
		}]
	}
	number_of_authors: derived: [{function: "count", args: {field: "authors"}}]
}
models: {
	Parent: {
		fields: {title: "title", authors: "authors"}
		description: "base"
	}
	Child: {
		bases: "Parent"
		fields: ["number_of_authors"]
		capabilities: ["citable"]
	}
}
`

func TestCompileSourceFields(t *testing.T) {
	spec, err := CompileSource(Source{Name: "example.cue", Data: []byte(exampleSource)})
	require.NoError(t, err)
	require.Len(t, spec.Fields, 3)
	assert.Equal(t, "example.cue", spec.Name)

	title := spec.Fields[0]
	assert.Equal(t, "title", title.Name)
	require.Len(t, title.Rules, 1)
	rule := title.Rules[0]
	assert.Equal(t, ir.RuleCreator, rule.Type)
	assert.Equal(t, "marc", rule.Format)
	assert.Equal(t, []string{"245__"}, rule.Tags)
	assert.Equal(t, "subfields", rule.Function)
	assert.Equal(t, ir.IRObject{"title": ir.IRString("a"), "subtitle": ir.IRString("b")}, rule.Args)
	assert.Equal(t, []ir.DecoratorCall{{Name: "dedupe", Args: ir.IRObject{}}}, rule.Decorators.After)
	assert.Equal(t, []ir.Extension{{Name: "description", Value: ir.IRString("Main title statement")}}, title.Extensions)

	require.Len(t, title.Producers, 1)
	assert.Equal(t, "json_for_marc", title.Producers[0].Format)
	assert.Equal(t, "245__", title.Producers[0].Tag)
	assert.ElementsMatch(t, []ir.SubfieldMap{{Code: "a", Path: "title"}, {Code: "b", Path: "subtitle"}}, title.Producers[0].Subfields)

	require.NotNil(t, title.Schema)
	assert.Equal(t, "object", title.Schema.Type)
	assert.Equal(t, []string{"title"}, title.Schema.Required)
	assert.Equal(t, "string", title.Schema.Properties["title"].Type)

	authors := spec.Fields[1]
	assert.Equal(t, []string{"main_entry_personal_name"}, authors.Aliases)
	require.NotNil(t, authors.PID)
	assert.Equal(t, int64(2), *authors.PID)
	assert.Equal(t, []string{"100__", "700.."}, authors.Rules[0].Tags)
	assert.Equal(t, "only_if", authors.Rules[0].Decorators.Before[0].Name)

	count := spec.Fields[2]
	require.Len(t, count.Rules, 1)
	assert.Equal(t, ir.RuleDerived, count.Rules[0].Type)
	assert.Empty(t, count.Rules[0].Tags)
}

func TestCompileSourceModels(t *testing.T) {
	spec, err := CompileSource(Source{Name: "example.cue", Data: []byte(exampleSource)})
	require.NoError(t, err)
	require.Len(t, spec.Models, 2)

	parent := spec.Models[0]
	assert.Equal(t, "Parent", parent.Name)
	assert.Equal(t, []ir.FieldRef{{Name: "title", JSONID: "title"}, {Name: "authors", JSONID: "authors"}}, parent.Fields)
	assert.Equal(t, []ir.Extension{{Name: "description", Value: ir.IRString("base")}}, parent.Extensions)

	child := spec.Models[1]
	assert.Equal(t, []string{"Parent"}, child.Bases)
	assert.Equal(t, []ir.FieldRef{{Name: "number_of_authors", JSONID: "number_of_authors"}}, child.Fields)
	assert.Equal(t, []ir.Extension{{Name: "capabilities", Value: ir.IRArray{ir.IRString("citable")}}}, child.Extensions)

	assert.Empty(t, Validate(spec))
}

func TestCompileSourceRejectsFloats(t *testing.T) {
	_, err := CompileSource(Source{Name: "f.cue", Data: []byte(`fields: x: weight: 1.5`)})
	require.Error(t, err)

	fpe, ok := IsFieldParserError(err)
	require.True(t, ok)
	assert.Equal(t, ErrFieldShape, fpe.Code)
	assert.Equal(t, "x", fpe.Field)
	assert.Contains(t, fpe.Error(), "float values are forbidden")
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource(Source{Name: "broken.cue", Data: []byte("fields: {\n  title: creator: marc: [\n")})
	require.Error(t, err)

	fpe, ok := IsFieldParserError(err)
	require.True(t, ok)
	assert.Equal(t, ErrFieldSyntax, fpe.Code)
	assert.True(t, fpe.Pos.IsValid(), "syntax errors carry a position")
	assert.Contains(t, fpe.Error(), "broken.cue:")
}

func TestCompileSourceNonConcrete(t *testing.T) {
	_, err := CompileSource(Source{Name: "open.cue", Data: []byte(`fields: x: pid: int`)})
	require.Error(t, err)
	fpe, ok := IsFieldParserError(err)
	require.True(t, ok)
	assert.Equal(t, ErrFieldSyntax, fpe.Code)
}

func TestCompileSourceUnknownTopLevelKey(t *testing.T) {
	_, err := CompileSource(Source{Name: "x.cue", Data: []byte(`concepts: {}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown top-level key "concepts"`)
}

func TestCompileSourceUnknownRuleKey(t *testing.T) {
	_, err := CompileSource(Source{Name: "x.cue", Data: []byte(`fields: t: creator: marc: [{tags: ["245__"], function: "value", when: "now"}]`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rule key "when"`)
	assert.Contains(t, err.Error(), `field "t"`)
}

func TestCompileSourceUnknownSchemaKey(t *testing.T) {
	_, err := CompileSource(Source{Name: "x.cue", Data: []byte(`fields: t: schema: {type: "string", pattern: "x"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown schema key "pattern"`)
}

func TestCompileSourceModelShape(t *testing.T) {
	_, err := CompileSource(Source{Name: "m.cue", Data: []byte(`models: Book: fields: 3`)})
	require.Error(t, err)
	mpe, ok := IsModelParserError(err)
	require.True(t, ok)
	assert.Equal(t, ErrModelShape, mpe.Code)
	assert.Equal(t, "Book", mpe.Model)
}

func TestFindCUEFilesSorted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.cue", "a.cue", "nested/c.cue", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fields: {}\n"), 0o644))
	}

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.cue"),
		filepath.Join(dir, "nested", "c.cue"),
	}, files)

	sources, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "fields: {}\n", string(sources[0].Data))
}

func TestFindCUEFilesMissingDir(t *testing.T) {
	_, err := FindCUEFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
