// Package querysql compiles queryir queries into SQLite SQL over the
// records table, using the JSON1 functions on the canonical data column.
package querysql

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/queryir"
)

// Columns is the column list every compiled query selects, in scan order.
const Columns = "id, seq, master_format, models, fingerprint, data, meta, errors, created_at, updated_at"

// orderBy is appended to every query.
const orderBy = " ORDER BY seq ASC, id COLLATE BINARY ASC"

// SQLCompiler compiles queryir queries to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries end with ORDER BY seq ASC, id COLLATE BINARY ASC.
// CRITICAL: All values and JSON paths are parameterized, never interpolated.
type SQLCompiler struct {
	// Table is the records table name.
	Table string
}

// NewSQLCompiler creates a compiler for the "records" table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "records"}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, errors.New("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, errors.Newf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, errors.Newf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var (
		conds  []string
		params []any
	)
	if q.Filter != nil {
		sql, p, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, errors.Wrap(err, "compile filter")
		}
		conds = append(conds, sql)
		params = append(params, p...)
	}
	if q.MasterFormat != "" {
		conds = append(conds, "master_format = ?")
		params = append(params, q.MasterFormat)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(Columns)
	b.WriteString(" FROM ")
	b.WriteString(c.Table)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(orderBy)
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.Contains:
		return c.compileContains(pred)
	case *queryir.Contains:
		return c.compileContains(*pred)
	case queryir.Exists:
		return c.compileExists(pred)
	case *queryir.Exists:
		return c.compileExists(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, errors.Newf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles to "json_extract(data, ?) = ?".
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, errors.Wrapf(err, "equals %s", eq.Path)
	}
	return "json_extract(data, ?) = ?", []any{JSONPath(eq.Path), param}, nil
}

// compileContains matches an element of a list, or a single value treated
// as a list of one.
func (c *SQLCompiler) compileContains(ct queryir.Contains) (string, []any, error) {
	param, err := irValueToParam(ct.Value)
	if err != nil {
		return "", nil, errors.Wrapf(err, "contains %s", ct.Path)
	}
	path := JSONPath(ct.Path)

	elem, single := "je.value", path
	var elemParams []any
	if ct.Key != "" {
		elem = "json_extract(je.value, ?)"
		elemParams = []any{JSONPath(ct.Key)}
		single = JSONPath(ct.Path + "." + ct.Key)
	}

	sql := "((json_type(data, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(data, ?) AS je WHERE " +
		elem + " = ?)) OR (json_type(data, ?) <> 'array' AND json_extract(data, ?) = ?))"
	params := []any{path, path}
	params = append(params, elemParams...)
	params = append(params, param, path, single, param)
	return sql, params, nil
}

func (c *SQLCompiler) compileExists(ex queryir.Exists) (string, []any, error) {
	return "json_type(data, ?) IS NOT NULL", []any{JSONPath(ex.Path)}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// JSONPath turns a dot path into a SQLite JSON path: every segment is a
// quoted member name, except all-digit segments, which index arrays.
//
//	main_entry.personal_name -> $."main_entry"."personal_name"
//	subjects.0               -> $."subjects"[0]
func JSONPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(seg, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}

// irValueToParam converts a scalar ir.IRValue to a SQL parameter. Booleans
// become 1 and 0, which is what json_extract yields for true and false.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, errors.Newf("%T cannot be used as a SQL parameter", v)
	}
}
