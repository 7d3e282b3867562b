package marc

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// XMLPreparer reads MARCXML.
type XMLPreparer struct{}

func (XMLPreparer) Name() string         { return "marc" }
func (XMLPreparer) MasterFormat() string { return MasterFormat }

// SplitBlob cuts a collection into one blob per <record> element. The
// record blobs keep their bytes verbatim.
func (XMLPreparer) SplitBlob(raw []byte) ([][]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var out [][]byte
	depth, start := 0, int64(-1)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "marcxml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "record" && start < 0 {
				start = offset
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "record" && start >= 0 {
				out = append(out, raw[start:dec.InputOffset()])
				start = -1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("marcxml: unbalanced document")
	}
	return out, nil
}

type xmlField struct {
	tag, ind1, ind2 string
	control         bool
	subfields       *subfieldSet
	text            strings.Builder
}

// Prepare parses a blob holding exactly one record.
func (XMLPreparer) Prepare(raw []byte) (*ir.Intermediate, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var (
		rec      *ir.Intermediate
		records  int
		field    *xmlField
		code     string
		inSub    bool
		subValue strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "marcxml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "record":
				records++
				if records > 1 {
					return nil, errors.New("marcxml: blob holds more than one record, split it first")
				}
				rec = ir.NewIntermediate(MasterFormat)
			case "controlfield", "datafield":
				if rec == nil {
					return nil, errors.Newf("marcxml: %s outside a record", t.Name.Local)
				}
				tag := attr(t, "tag")
				if tag == "" {
					return nil, errors.Newf("marcxml: %s without a tag", t.Name.Local)
				}
				field = &xmlField{
					tag:       tag,
					ind1:      attr(t, "ind1"),
					ind2:      attr(t, "ind2"),
					control:   t.Name.Local == "controlfield",
					subfields: newSubfieldSet(),
				}
			case "subfield":
				if field == nil || field.control {
					return nil, errors.New("marcxml: subfield outside a datafield")
				}
				code = attr(t, "code")
				inSub = true
				subValue.Reset()
			}

		case xml.CharData:
			switch {
			case inSub:
				subValue.Write(t)
			case field != nil && field.control:
				field.text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "subfield":
				if inSub {
					field.subfields.add(code, subValue.String())
					inSub = false
				}
			case "controlfield", "datafield":
				if field != nil {
					addField(rec, field.tag, field.ind1, field.ind2, field.subfields, field.text.String(), field.control)
					field = nil
				}
			}
		}
	}
	if rec == nil {
		return nil, errors.New("marcxml: no record element")
	}
	return rec, nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
