package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
)

func TestValidate_ValidQuery(t *testing.T) {
	query := Select{
		Filter: And{Predicates: []Predicate{
			Equals{Path: "control_number", Value: ir.IRString("1")},
			Contains{Path: "international_standard_book_number", Key: "international_standard_book_number", Value: ir.IRString("80-902734-1-6")},
			Exists{Path: "main_entry_personal_name.personal_name"},
		}},
		MasterFormat: "marc",
		Limit:        10,
	}

	result := Validate(query)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Problems)
}

func TestValidate_PointerTypes(t *testing.T) {
	query := &Select{
		Filter: &And{Predicates: []Predicate{
			&Equals{Path: "title", Value: ir.IRInt(1)},
			&Exists{Path: "title"},
			&Contains{Path: "subjects", Value: ir.IRBool(true)},
		}},
	}

	result := Validate(query)

	assert.True(t, result.Valid)
}

func TestValidate_NoFilter(t *testing.T) {
	result := Validate(Select{})
	assert.True(t, result.Valid, "a select without filter returns every record")
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"nil query", nil, "nil query"},
		{"negative limit", Select{Limit: -1}, "negative limit"},
		{"empty path", Select{Filter: Exists{}}, "empty path"},
		{"empty segment", Select{Filter: Exists{Path: "a..b"}}, "empty segment"},
		{"null value", Select{Filter: Equals{Path: "title", Value: ir.IRNull{}}}, "use Exists"},
		{"missing value", Select{Filter: Equals{Path: "title"}}, "use Exists"},
		{"object value", Select{Filter: Equals{Path: "title", Value: ir.IRObject{}}}, "only scalars"},
		{"dotted key", Select{Filter: Contains{Path: "isbn", Key: "a.b", Value: ir.IRString("x")}}, "single member name"},
		{"nil predicate in and", Select{Filter: And{Predicates: []Predicate{nil}}}, "nil predicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid)
			require.NotEmpty(t, result.Problems)
			assert.Contains(t, result.Problems[0], tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	query := Select{Filter: And{Predicates: []Predicate{
		Exists{Path: ""},
		Equals{Path: "x", Value: ir.IRArray{}},
	}}}

	result := Validate(query)

	assert.Len(t, result.Problems, 2)
}
