// Package marc reads MARC-family records into intermediate records and
// writes translated records back out as MARCXML.
//
// Two input encodings are understood: MARCXML (MARC21 slim) and a line
// based text form
//
//	001 1
//	100__ $$aEllis$$uCERN
//
// Both produce the same intermediate shape: data fields are keyed by tag
// and both indicators, blank indicators written "_", with an object of
// subfield codes as value; control fields are keyed by the bare tag with
// the text as value.
package marc

import (
	"strings"

	"github.com/roach88/bibform/internal/ir"
)

// MasterFormat is the master format of every record read by this package.
const MasterFormat = "marc"

// controlThreshold splits control from data tags. The comparison is
// lexical, so alphanumeric local tags sort above it.
const controlThreshold = "010"

// IsControlTag reports whether tag is a control field tag.
func IsControlTag(tag string) bool {
	return tag < controlThreshold
}

// Key builds the intermediate key of a data field.
func Key(tag, ind1, ind2 string) string {
	return tag + indicator(ind1) + indicator(ind2)
}

// SplitKey splits an intermediate key into tag and indicators. Control
// keys have empty indicators.
func SplitKey(key string) (tag, ind1, ind2 string) {
	if len(key) < 5 {
		return key, "", ""
	}
	return key[:3], key[3:4], key[4:5]
}

func indicator(ind string) string {
	ind = strings.TrimSpace(ind)
	if ind == "" {
		return "_"
	}
	return ind[:1]
}

// xmlIndicator renders an intermediate indicator for MARCXML.
func xmlIndicator(ind string) string {
	if ind == "_" || ind == "" {
		return " "
	}
	return ind
}

// subfieldSet accumulates subfields, collapsing repeated codes into arrays
// in input order.
type subfieldSet struct {
	obj   ir.IRObject
	order []string
}

func newSubfieldSet() *subfieldSet {
	return &subfieldSet{obj: ir.IRObject{}}
}

func (s *subfieldSet) add(code, value string) {
	cur, ok := s.obj[code]
	if !ok {
		s.order = append(s.order, code)
		s.obj[code] = ir.IRString(value)
		return
	}
	if arr, isArr := cur.(ir.IRArray); isArr {
		s.obj[code] = append(arr, ir.IRString(value))
		return
	}
	s.obj[code] = ir.IRArray{cur, ir.IRString(value)}
}

// text joins every subfield value, used when a data field carries a
// control tag.
func (s *subfieldSet) text() string {
	var parts []string
	for _, code := range s.order {
		for _, v := range ir.AsList(s.obj[code]) {
			if str, ok := ir.AsString(v); ok {
				parts = append(parts, str)
			}
		}
	}
	return strings.Join(parts, " ")
}

// addField stores one parsed field on rec. Fields below the control
// threshold and explicit control fields are stored as text.
func addField(rec *ir.Intermediate, tag, ind1, ind2 string, subfields *subfieldSet, text string, control bool) {
	if control || IsControlTag(tag) {
		if !control {
			text = subfields.text()
		}
		rec.Add(tag, ir.IRString(text))
		return
	}
	rec.Add(Key(tag, ind1, ind2), subfields.obj)
}
