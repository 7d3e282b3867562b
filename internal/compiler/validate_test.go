package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateValidSource(t *testing.T) {
	spec := &ir.SourceSpec{
		Fields: []ir.FieldSpec{{
			Name: "title",
			Rules: []ir.RuleSpec{
				{Type: ir.RuleCreator, Format: "marc", Tags: []string{"245__"}, Function: "subfields"},
				{Type: ir.RuleDerived, Function: "count"},
			},
			Producers: []ir.ProducerRule{{Format: "marc", Tag: "245__"}},
			Schema:    &ir.Schema{Type: "object", Properties: map[string]*ir.Schema{"title": {Type: "string"}}},
		}},
		Models: []ir.ModelSpec{{Name: "Book", Fields: []ir.FieldRef{{Name: "title", JSONID: "title"}}}},
	}
	assert.Empty(t, Validate(spec))
}

func TestValidateRuleShapes(t *testing.T) {
	spec := &ir.SourceSpec{
		Fields: []ir.FieldSpec{{
			Name: "broken",
			Rules: []ir.RuleSpec{
				{Type: ir.RuleCreator, Format: "marc", Function: "value"},
				{Type: ir.RuleCalculated, Tags: []string{"100__"}, Function: "count"},
				{Type: ir.RuleCreator, Format: "marc", Tags: []string{" "}},
			},
		}},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrCreatorNoTags, ErrVirtualHasTags, ErrRuleNoFunction, ErrEmptyTag}, codes(errs))
	assert.Equal(t, "fields.broken.creator.marc[0].tags", errs[0].Field)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	pid := int64(-1)
	spec := &ir.SourceSpec{
		Fields: []ir.FieldSpec{{
			Name:      "f",
			PID:       &pid,
			Extend:    true,
			Override:  true,
			Producers: []ir.ProducerRule{{Format: "marc"}},
			Schema:    &ir.Schema{Type: "float", Items: &ir.Schema{Type: "number"}},
		}},
		Models: []ir.ModelSpec{
			{Name: "Empty"},
			{Name: "Dup", Fields: []ir.FieldRef{{Name: "x", JSONID: ""}}},
			{Name: "Dup", Bases: []string{"Empty"}},
		},
	}

	assert.Equal(t, []string{
		ErrExtendAndOverride,
		ErrNegativePID,
		ErrProducerNoTag,
		ErrInvalidSchemaType,
		ErrInvalidSchemaType,
		ErrModelEmpty,
		ErrModelEmptyReference,
		ErrModelDuplicateName,
	}, codes(Validate(spec)))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "fields.x", Message: "bad", Code: ErrCreatorNoTags}
	assert.Equal(t, "[E210] fields.x: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E210] line 7: fields.x: bad", err.Error())
}

func TestValidateCompiledSource(t *testing.T) {
	spec, err := CompileSource(Source{Name: "bad.cue", Data: []byte(`
fields: number_of_authors: derived: [{tags: ["100__"], function: "count", args: {field: "authors"}}]
`)})
	require.NoError(t, err)

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrVirtualHasTags, errs[0].Code)
	assert.Equal(t, 2, errs[0].Line)
}
