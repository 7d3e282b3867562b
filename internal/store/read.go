package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/queryir"
	"github.com/roach88/bibform/internal/querysql"
	"github.com/roach88/bibform/internal/record"
)

// Stored is a record as it was saved.
type Stored struct {
	ID           string
	Seq          int64
	MasterFormat string
	Models       []string
	Fingerprint  string
	Data         ir.IRObject
	Meta         ir.IRObject
	Errors       []record.FieldError
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Record rebuilds the record from its stored data and provenance. The
// record keeps its origin but is not bound to a registry: Set stores
// values unchecked and Recalculate fails until it is translated again.
func (st *Stored) Record() (*record.Record, error) {
	dump := ir.Clone(st.Data).(ir.IRObject)
	if len(st.Meta) > 0 {
		dump[ir.MetaKey] = ir.Clone(st.Meta)
	}
	rec, err := record.FromDump(dump)
	if err != nil {
		return nil, errors.Wrapf(err, "rebuild record %s", st.ID)
	}
	for _, fe := range st.Errors {
		rec.AddError(fe)
	}
	rec.Bind(nil, record.Origin{
		MasterFormat: st.MasterFormat,
		Models:       st.Models,
		Fingerprint:  st.Fingerprint,
	})
	return rec, nil
}

// GetOne returns the record with the given id.
// Returns ErrNotFound when no record has that id.
func (s *Store) GetOne(ctx context.Context, id string) (*Stored, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+querysql.Columns+` FROM records WHERE id = ?`, id)
	st, err := scanStored(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "get %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", id)
	}
	return st, nil
}

// Search returns the records matching q, ordered by seq then id.
func (s *Store) Search(ctx context.Context, q queryir.Query) ([]*Stored, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search records")
	}
	defer rows.Close()

	var out []*Stored
	for rows.Next() {
		st, err := scanStored(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate records")
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count records")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanStored reads one row selected with querysql.Columns.
func scanStored(sc scanner) (*Stored, error) {
	var st Stored
	var models, data, meta, errs, created, updated string
	if err := sc.Scan(&st.ID, &st.Seq, &st.MasterFormat, &models, &st.Fingerprint,
		&data, &meta, &errs, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "scan record")
	}

	var err error
	if st.Models, err = unmarshalModels(models); err != nil {
		return nil, err
	}
	if st.Data, err = unmarshalObject("data", data); err != nil {
		return nil, err
	}
	if st.Meta, err = unmarshalObject("meta", meta); err != nil {
		return nil, err
	}
	if st.Errors, err = unmarshalErrors(errs); err != nil {
		return nil, err
	}
	if st.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, errors.Wrap(err, "parse created_at")
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, errors.Wrap(err, "parse updated_at")
	}
	return &st, nil
}
