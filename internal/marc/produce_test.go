package marc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/marc"
	"github.com/roach88/bibform/internal/reader"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/registry"
)

const produceConfig = `
fields: {
	control_number: {
		creator: marc: [{tags: ["001"], function: "value"}]
		producer: marc: [{tag: "001"}]
	}
	main_entry_personal_name: {
		creator: marc: [{tags: ["100__"], function: "subfields", args: {personal_name: "a", affiliation: "u"}}]
		producer: marc: [{tag: "100__", subfields: {a: "personal_name", u: "affiliation"}}]
	}
	international_standard_book_number: {
		creator: marc: [{tags: ["020__"], function: "subfields", args: {international_standard_book_number: "a"}}]
		producer: marc: [{tag: "020__", subfields: {a: "international_standard_book_number"}}]
	}
	note: creator: marc: [{tags: ["500__"], function: "subfield", args: {code: "a"}}]
}
`

const source = `<record>
  <controlfield tag="001">1</controlfield>
  <datafield tag="100" ind1=" " ind2=" "><subfield code="a">Ellis &amp; Co</subfield><subfield code="u">CERN</subfield></datafield>
  <datafield tag="020" ind1=" " ind2=" "><subfield code="a">80-902734-1-6</subfield></datafield>
  <datafield tag="020" ind1=" " ind2=" "><subfield code="a">960-425-059-0</subfield></datafield>
  <datafield tag="500" ind1=" " ind2=" "><subfield code="a">not produced</subfield></datafield>
</record>`

func TestProduce_RoundTrip(t *testing.T) {
	reg := registry.New(registry.MemLoader{{Name: "fields.cue", Data: []byte(produceConfig)}})
	snap, err := reg.Snapshot()
	require.NoError(t, err)

	out, err := reader.Translate(reg, source)
	require.NoError(t, err)

	produced, err := marc.Produce(out.Record(), snap.Table)
	require.NoError(t, err)
	xmlText := string(produced)
	assert.Contains(t, xmlText, `<collection xmlns="http://www.loc.gov/MARC21/slim">`)
	assert.Contains(t, xmlText, `<controlfield tag="001">1</controlfield>`)
	assert.Contains(t, xmlText, `Ellis &amp; Co`)
	assert.NotContains(t, xmlText, "not produced", "fields without producer rules are skipped")

	blobs, err := marc.XMLPreparer{}.SplitBlob(produced)
	require.NoError(t, err)
	require.Len(t, blobs, 1)

	again, err := reader.Translate(reg, blobs[0])
	require.NoError(t, err)
	for _, name := range []string{"control_number", "main_entry_personal_name", "international_standard_book_number"} {
		want, _ := out.Value(name)
		got, ok := again.Value(name)
		require.True(t, ok, name)
		assert.True(t, ir.Equal(want, got), "%s: want %v, got %v", name, want, got)
	}
}

func TestProduceAll_OrdersFieldsByTag(t *testing.T) {
	reg := registry.New(registry.MemLoader{{Name: "fields.cue", Data: []byte(produceConfig)}})
	snap, err := reg.Snapshot()
	require.NoError(t, err)

	results, err := reader.TranslateAll(reg, []byte("<collection>"+source+source+"</collection>"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	recs := make([]*record.Record, 0, len(results))
	for _, r := range results {
		require.NoError(t, r.Err)
		recs = append(recs, r.Output.Record())
	}
	produced, err := marc.ProduceAll(recs, snap.Table)
	require.NoError(t, err)

	text := string(produced)
	first020 := strings.Index(text, `tag="020"`)
	first100 := strings.Index(text, `tag="100"`)
	require.NotEqual(t, -1, first020)
	assert.Less(t, first020, first100, "data fields are written in tag order")

	blobs, err := marc.XMLPreparer{}.SplitBlob(produced)
	require.NoError(t, err)
	assert.Len(t, blobs, 2)
}
