package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/bibform/internal/reader"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/registry"
	"github.com/roach88/bibform/internal/testutil"
)

// createTestStore creates a new store in a temp dir with predictable ids
// and timestamps.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithLogger(zaptest.NewLogger(t)),
		WithIDGenerator(testutil.NewSequenceIDGenerator("rec")),
		WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const testConfig = `
fields: {
	control_number: creator: marc: [{tags: ["001"], function: "value"}]
	main_entry_personal_name: {
		aliases: ["author"]
		pid: 2
		creator: marc: [{
			tags: ["100__"]
			function: "subfields"
			args: {personal_name: "a", affiliation: "u"}
		}]
	}
	international_standard_book_number: creator: marc: [{
		tags: ["020__"]
		function: "subfields"
		args: {international_standard_book_number: "a"}
	}]
	title: creator: marc: [{tags: ["245__"], function: "subfield", args: {code: "a"}}]
	number_of_isbns: calculated: [{function: "count", args: {field: "international_standard_book_number"}}]
	internal_note: {
		hidden: true
		creator: marc: [{tags: ["595__"], function: "subfield", args: {code: "a"}}]
	}
	edition: {
		creator: marc: [{tags: ["250__"], function: "subfield", args: {code: "a"}}]
		schema: {type: "integer", force: true}
	}
}
`

const ellisRecord = `<record>
  <controlfield tag="001">1</controlfield>
  <datafield tag="100" ind1=" " ind2=" ">
    <subfield code="a">Ellis</subfield>
    <subfield code="u">CERN</subfield>
  </datafield>
  <datafield tag="020" ind1=" " ind2=" ">
    <subfield code="a">80-902734-1-6</subfield>
  </datafield>
  <datafield tag="020" ind1=" " ind2=" ">
    <subfield code="a">960-425-059-0</subfield>
  </datafield>
  <datafield tag="245" ind1=" " ind2=" ">
    <subfield code="a">Quarks</subfield>
  </datafield>
  <datafield tag="595" ind1=" " ind2=" ">
    <subfield code="a">check shelf</subfield>
  </datafield>
</record>`

const smithRecord = `<record>
  <controlfield tag="001">2</controlfield>
  <datafield tag="100" ind1=" " ind2=" ">
    <subfield code="a">Smith</subfield>
  </datafield>
  <datafield tag="020" ind1=" " ind2=" ">
    <subfield code="a">0-306-40615-2</subfield>
  </datafield>
  <datafield tag="250" ind1=" " ind2=" ">
    <subfield code="a">second</subfield>
  </datafield>
</record>`

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.MemLoader{{Name: "fields.cue", Data: []byte(testConfig)}})
	require.NoError(t, reg.Load())
	return reg
}

// translate reads a MARCXML record with the test configuration.
func translate(t *testing.T, reg *registry.Registry, blob string) *record.Record {
	t.Helper()
	out, err := reader.Translate(reg, blob,
		reader.WithLogger(zaptest.NewLogger(t)),
		reader.WithClock(testutil.NewDeterministicClock()),
	)
	require.NoError(t, err)
	return out.Record()
}

// saveTestRecords stores the Ellis and Smith records, in that order.
func saveTestRecords(t *testing.T, s *Store) (*registry.Registry, []string) {
	t.Helper()
	reg := newTestRegistry(t)
	var ids []string
	for _, blob := range []string{ellisRecord, smithRecord} {
		id, err := s.SaveOne(context.Background(), translate(t, reg, blob))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return reg, ids
}
