package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/roach88/bibform/internal/record"
)

// row is a record ready to be written.
type row struct {
	masterFormat string
	models       string
	fingerprint  string
	data         string
	meta         string
	errors       string
}

func toRow(rec *record.Record) (row, error) {
	if rec == nil {
		return row{}, errors.New("store: nil record")
	}
	dump, err := rec.Dump(record.DumpOptions{IncludeMeta: true})
	if err != nil {
		return row{}, errors.Wrap(err, "dump record")
	}
	data, meta := splitDump(dump)

	var r row
	origin := rec.Origin()
	r.masterFormat = origin.MasterFormat
	r.fingerprint = origin.Fingerprint
	if r.models, err = marshalModels(origin.Models); err != nil {
		return row{}, err
	}
	if r.data, err = marshalObject("data", data); err != nil {
		return row{}, err
	}
	if r.meta, err = marshalObject("meta", meta); err != nil {
		return row{}, err
	}
	if r.errors, err = marshalErrors(rec.Errors()); err != nil {
		return row{}, err
	}
	return r, nil
}

// SaveOne writes a new record and returns its id.
//
// The record gets the next seq of the store inside the same transaction,
// so concurrent writers never share a seq.
func (s *Store) SaveOne(ctx context.Context, rec *record.Record) (string, error) {
	r, err := toRow(rec)
	if err != nil {
		return "", err
	}
	id := s.ids.NewID()
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM records`).Scan(&seq); err != nil {
		return "", errors.Wrap(err, "next seq")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (id, seq, master_format, models, fingerprint, data, meta, errors, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, seq, r.masterFormat, r.models, r.fingerprint, r.data, r.meta, r.errors, now, now)
	if err != nil {
		return "", errors.Wrapf(err, "insert record %s", id)
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}

	s.logger.Debug("record saved",
		zap.String("id", id),
		zap.Int64("seq", seq),
		zap.String("master_format", r.masterFormat),
	)
	return id, nil
}

// UpdateOne replaces the stored record with the given id. Its seq and
// created_at are kept. Returns ErrNotFound when no record has that id.
func (s *Store) UpdateOne(ctx context.Context, rec *record.Record, id string) error {
	r, err := toRow(rec)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET master_format = ?, models = ?, fingerprint = ?, data = ?, meta = ?, errors = ?, updated_at = ?
		WHERE id = ?
	`, r.masterFormat, r.models, r.fingerprint, r.data, r.meta, r.errors, now, id)
	if err != nil {
		return errors.Wrapf(err, "update record %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "update %s", id)
	}

	s.logger.Debug("record updated", zap.String("id", id))
	return nil
}

// Delete removes the record with the given id.
// Returns ErrNotFound when no record has that id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete record %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "delete %s", id)
	}
	return nil
}
