package marc

import (
	"encoding/xml"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/ruletable"
)

// Namespace is the MARC21 slim namespace written on produced collections.
const Namespace = "http://www.loc.gov/MARC21/slim"

type outCollection struct {
	XMLName xml.Name    `xml:"collection"`
	Xmlns   string      `xml:"xmlns,attr"`
	Records []outRecord `xml:"record"`
}

type outRecord struct {
	Control []outControl `xml:"controlfield"`
	Data    []outData    `xml:"datafield"`
}

type outControl struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type outData struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []outSubfield `xml:"subfield"`
}

type outSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// Produce renders one record as a MARCXML collection through the marc
// producer rules of its fields.
func Produce(rec *record.Record, table *ruletable.Table) ([]byte, error) {
	return ProduceAll([]*record.Record{rec}, table)
}

// ProduceAll renders several records into one collection.
func ProduceAll(recs []*record.Record, table *ruletable.Table) ([]byte, error) {
	coll := outCollection{Xmlns: Namespace}
	for _, rec := range recs {
		coll.Records = append(coll.Records, produceRecord(rec, table))
	}
	data, err := xml.MarshalIndent(coll, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marcxml: encoding")
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

func produceRecord(rec *record.Record, table *ruletable.Table) outRecord {
	byID := make(map[string][]string)
	for _, name := range rec.Names() {
		id := name
		if prov, ok := rec.Meta(name); ok && prov.JSONID != "" {
			id = prov.JSONID
		}
		byID[id] = append(byID[id], name)
	}

	var out outRecord
	for _, id := range table.FieldIDs() {
		def, _ := table.Field(id)
		producers := def.ProducersFor(MasterFormat)
		if len(producers) == 0 {
			continue
		}
		for _, name := range byID[id] {
			value, _ := rec.Value(name)
			for _, p := range producers {
				for _, item := range ir.AsList(value) {
					produceItem(&out, p, item)
				}
			}
		}
	}
	sort.SliceStable(out.Control, func(i, j int) bool { return out.Control[i].Tag < out.Control[j].Tag })
	sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Tag < out.Data[j].Tag })
	return out
}

func produceItem(out *outRecord, p ir.ProducerRule, item ir.IRValue) {
	tag, ind1, ind2 := SplitKey(p.Tag)
	if len(p.Subfields) == 0 {
		if s, ok := ir.AsString(item); ok {
			out.Control = append(out.Control, outControl{Tag: tag, Value: s})
		}
		return
	}

	field := outData{Tag: tag, Ind1: xmlIndicator(ind1), Ind2: xmlIndicator(ind2)}
	for _, m := range p.Subfields {
		v, ok := ir.Lookup(item, m.Path)
		if !ok {
			continue
		}
		for _, elem := range ir.AsList(v) {
			if s, ok := ir.AsString(elem); ok {
				field.Subfields = append(field.Subfields, outSubfield{Code: m.Code, Value: s})
			}
		}
	}
	if len(field.Subfields) > 0 {
		out.Data = append(out.Data, field)
	}
}
