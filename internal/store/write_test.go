package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/testutil"
)

func TestSaveOne_AssignsIDAndSeq(t *testing.T) {
	s := createTestStore(t)
	_, ids := saveTestRecords(t, s)

	assert.Equal(t, []string{"rec-0001", "rec-0002"}, ids)

	first, err := s.GetOne(context.Background(), ids[0])
	require.NoError(t, err)
	second, err := s.GetOne(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
}

func TestSaveOne_DefaultIDsAreUUIDv7(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	reg := newTestRegistry(t)
	id, err := s.SaveOne(context.Background(), translate(t, reg, ellisRecord))
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14], "version nibble of %s", id)
}

func TestSaveOne_KeepsOrigin(t *testing.T) {
	s := createTestStore(t)
	reg, ids := saveTestRecords(t, s)

	st, err := s.GetOne(context.Background(), ids[0])
	require.NoError(t, err)

	snap, err := reg.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "marc", st.MasterFormat)
	assert.Equal(t, []string{ir.DefaultModel}, st.Models)
	assert.Equal(t, snap.Fingerprint(), st.Fingerprint)
	assert.Equal(t, testutil.Epoch, st.CreatedAt)
	assert.Equal(t, testutil.Epoch, st.UpdatedAt)
}

func TestSaveOne_KeepsContinuableErrors(t *testing.T) {
	s := createTestStore(t)
	_, ids := saveTestRecords(t, s)

	st, err := s.GetOne(context.Background(), ids[1])
	require.NoError(t, err)
	require.Len(t, st.Errors, 1)
	assert.Equal(t, record.ErrCoercion, st.Errors[0].Code)
	assert.Equal(t, "edition", st.Errors[0].Field)
	assert.NotContains(t, st.Data, "edition")
}

func TestSaveOne_StoresCanonicalJSON(t *testing.T) {
	s := createTestStore(t)
	_, ids := saveTestRecords(t, s)

	var data string
	require.NoError(t, s.db.QueryRow(`SELECT data FROM records WHERE id = ?`, ids[1]).Scan(&data))

	st, err := s.GetOne(context.Background(), ids[1])
	require.NoError(t, err)
	canonical, err := ir.MarshalCanonical(st.Data)
	require.NoError(t, err)
	assert.Equal(t, string(canonical), data)
}

func TestSaveOne_NilRecord(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SaveOne(context.Background(), nil)
	assert.Error(t, err)
}

func TestUpdateOne_ReplacesDataKeepsSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	clock := testutil.NewDeterministicClock()
	s, err := Open(path, WithClock(clock), WithIDGenerator(testutil.NewSequenceIDGenerator("rec")))
	require.NoError(t, err)
	defer s.Close()

	_, ids := saveTestRecords(t, s)
	ctx := context.Background()

	st, err := s.GetOne(ctx, ids[0])
	require.NoError(t, err)
	rec, err := st.Record()
	require.NoError(t, err)
	rec.Store("title", ir.IRString("Quarks and Leptons"), nil)

	clock.Advance(time.Hour)
	require.NoError(t, s.UpdateOne(ctx, rec, ids[0]))

	updated, err := s.GetOne(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Quarks and Leptons"), updated.Data["title"])
	assert.Equal(t, st.Seq, updated.Seq)
	assert.Equal(t, st.MasterFormat, updated.MasterFormat)
	assert.Equal(t, st.Fingerprint, updated.Fingerprint)
	assert.Equal(t, testutil.Epoch, updated.CreatedAt)
	assert.Equal(t, testutil.Epoch.Add(time.Hour), updated.UpdatedAt)
}

func TestUpdateOne_NotFound(t *testing.T) {
	s := createTestStore(t)
	reg := newTestRegistry(t)

	err := s.UpdateOne(context.Background(), translate(t, reg, ellisRecord), "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	_, ids := saveTestRecords(t, s)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, ids[0]))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetOne(ctx, ids[0])
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(ctx, ids[0])
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveOne_SeqContinuesAfterDelete(t *testing.T) {
	s := createTestStore(t)
	reg, ids := saveTestRecords(t, s)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, ids[0]))
	id, err := s.SaveOne(ctx, translate(t, reg, ellisRecord))
	require.NoError(t, err)

	st, err := s.GetOne(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Seq)
}
