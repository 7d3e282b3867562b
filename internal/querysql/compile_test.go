package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/queryir"
)

func TestCompile_SelectAll(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{})
	require.NoError(t, err)

	assert.Equal(t, "SELECT "+Columns+" FROM records ORDER BY seq ASC, id COLLATE BINARY ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_Equals(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		Filter: queryir.Equals{Path: "main_entry_personal_name.personal_name", Value: ir.IRString("Ellis")},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE json_extract(data, ?) = ?")
	assert.NotContains(t, sql, "Ellis", "values are never interpolated")
	assert.Equal(t, []any{`$."main_entry_personal_name"."personal_name"`, "Ellis"}, params)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler()

	queries := []queryir.Query{
		queryir.Select{},
		&queryir.Select{Filter: queryir.Exists{Path: "title"}},
		queryir.Select{Filter: queryir.And{}, MasterFormat: "marc", Limit: 3},
		queryir.Select{Filter: queryir.Contains{Path: "subjects", Value: ir.IRString("physics")}},
	}
	for _, q := range queries {
		sql, _, err := compiler.Compile(q)
		require.NoError(t, err)
		assert.Contains(t, sql, "ORDER BY seq ASC, id COLLATE BINARY ASC", "query: %+v", q)
	}
}

func TestCompile_AndMasterFormatLimit(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Path: "control_number", Value: ir.IRString("1")},
			queryir.Exists{Path: "title"},
		}},
		MasterFormat: "marc",
		Limit:        5,
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "WHERE (json_extract(data, ?) = ? AND json_type(data, ?) IS NOT NULL) AND master_format = ?")
	assert.True(t, strings.HasSuffix(sql, "COLLATE BINARY ASC LIMIT ?"))
	assert.Equal(t, []any{`$."control_number"`, "1", `$."title"`, "marc", 5}, params)
}

func TestCompile_ContainsWithKey(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		Filter: queryir.Contains{Path: "isbn", Key: "number", Value: ir.IRString("80-902734-1-6")},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "json_each(data, ?)")
	assert.Contains(t, sql, "json_extract(je.value, ?) = ?")
	assert.Equal(t, []any{
		`$."isbn"`, `$."isbn"`, `$."number"`, "80-902734-1-6",
		`$."isbn"`, `$."isbn"."number"`, "80-902734-1-6",
	}, params)
	assert.Equal(t, strings.Count(sql, "?"), len(params))
}

func TestCompile_ContainsScalars(t *testing.T) {
	compiler := NewSQLCompiler()

	sql, params, err := compiler.Compile(queryir.Select{
		Filter: queryir.Contains{Path: "subjects", Value: ir.IRBool(true)},
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "je.value = ?")
	assert.Equal(t, strings.Count(sql, "?"), len(params))
	assert.Equal(t, int64(1), params[2])
}

func TestCompile_Errors(t *testing.T) {
	compiler := NewSQLCompiler()

	_, _, err := compiler.Compile(nil)
	assert.Error(t, err)

	_, _, err = compiler.Compile(queryir.Select{Filter: queryir.Equals{Path: "title", Value: ir.IRNull{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid query")
}

func TestJSONPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"title", `$."title"`},
		{"main_entry.personal_name", `$."main_entry"."personal_name"`},
		{"subjects.0", `$."subjects"[0]`},
		{`odd"key`, `$."odd\"key"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JSONPath(tt.path), tt.path)
	}
}
