package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/queryir"
)

func TestSearchOptionsQuery(t *testing.T) {
	tests := []struct {
		name string
		opts SearchOptions
		want queryir.Select
	}{
		{
			name: "everything",
			opts: SearchOptions{},
			want: queryir.Select{},
		},
		{
			name: "equals",
			opts: SearchOptions{Path: "control_number", Equals: "1"},
			want: queryir.Select{Filter: queryir.Equals{Path: "control_number", Value: ir.IRString("1")}},
		},
		{
			name: "typed equals",
			opts: SearchOptions{Path: "number_of_isbns", Equals: "2", Typed: true},
			want: queryir.Select{Filter: queryir.Equals{Path: "number_of_isbns", Value: ir.IRInt(2)}},
		},
		{
			name: "contains with key",
			opts: SearchOptions{Path: "isbn", Key: "isbn", Contains: "0-306-40615-2"},
			want: queryir.Select{Filter: queryir.Contains{Path: "isbn", Key: "isbn", Value: ir.IRString("0-306-40615-2")}},
		},
		{
			name: "exists",
			opts: SearchOptions{Path: "cataloguer_note", Exists: true},
			want: queryir.Select{Filter: queryir.Exists{Path: "cataloguer_note"}},
		},
		{
			name: "where pairs",
			opts: SearchOptions{Where: []string{"title=a=b", "control_number=1"}, MasterFormat: "marc", Limit: 5},
			want: queryir.Select{
				Filter: queryir.And{Predicates: []queryir.Predicate{
					queryir.Equals{Path: "title", Value: ir.IRString("a=b")},
					queryir.Equals{Path: "control_number", Value: ir.IRString("1")},
				}},
				MasterFormat: "marc",
				Limit:        5,
			},
		},
		{
			name: "path and where",
			opts: SearchOptions{Path: "edition", Exists: true, Where: []string{"title=x"}},
			want: queryir.Select{Filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Exists{Path: "edition"},
				queryir.Equals{Path: "title", Value: ir.IRString("x")},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchOptionsQuery_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    SearchOptions
		wantErr string
	}{
		{"path without comparison", SearchOptions{Path: "title"}, "--path needs one of"},
		{"comparison without path", SearchOptions{Equals: "x"}, "need --path"},
		{"key without path", SearchOptions{Key: "isbn"}, "need --path"},
		{"where without value", SearchOptions{Where: []string{"title"}}, "is not path=value"},
		{"where without path", SearchOptions{Where: []string{"=x"}}, "is not path=value"},
		{"typed float", SearchOptions{Path: "n", Equals: "1.5", Typed: true}, "not a JSON literal"},
		{"typed garbage", SearchOptions{Path: "n", Equals: "{", Typed: true}, "not a JSON literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.query()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	stdout, _, err := runCLI(t, "", withEnv(t, "", "--format", "json", "search", "--path", "title..x", "--equals", "a")...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeQuery, decodeError(t, stdout).Code)
}

func TestSearchExclusiveFlags(t *testing.T) {
	_, _, err := runCLI(t, "", withEnv(t, "", "search", "--path", "title", "--equals", "a", "--exists")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestSummaryLine(t *testing.T) {
	data := ir.IRObject{
		"title":                    ir.IRString("Field theory"),
		"control_number":           ir.IRString("2"),
		"main_entry_personal_name": ir.IRObject{"personal_name": ir.IRString("Smith")},
		"number_of_isbns":          ir.IRInt(1),
		"edition":                  ir.IRInt(2),
	}
	assert.Equal(t, `control_number="2" edition="2" number_of_isbns="1"`, summaryLine(data))
}
