package plugin

import (
	"strings"

	"github.com/roach88/bibform/internal/ir"
)

// Citable is the "citable" capability: a short citation view over a record.
type Citable struct {
	rec ir.RecordView
}

// NewCitable is the CapabilityFactory for "citable".
func NewCitable(rec ir.RecordView) (any, error) {
	return &Citable{rec: rec}, nil
}

// Title returns the first title of the record.
func (c *Citable) Title() string {
	for _, path := range []string{"title.title", "title"} {
		if v, ok := c.rec.Get(path); ok {
			if s, ok := ir.AsString(v); ok {
				return s
			}
		}
	}
	return ""
}

// Authors returns the main entry name followed by any added entry names.
func (c *Citable) Authors() []string {
	var names []string
	for _, path := range []string{"main_entry_personal_name.personal_name", "added_entry_personal_name.personal_name"} {
		v, ok := c.rec.Get(path)
		if !ok {
			continue
		}
		for _, item := range ir.AsList(v) {
			if s, ok := ir.AsString(item); ok && s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}

// Citation renders "Author, Author: Title".
func (c *Citable) Citation() string {
	title := c.Title()
	authors := c.Authors()
	switch {
	case len(authors) == 0:
		return title
	case title == "":
		return strings.Join(authors, ", ")
	default:
		return strings.Join(authors, ", ") + ": " + title
	}
}

// Identifiable is the "identifiable" capability: access to the control number.
type Identifiable struct {
	rec ir.RecordView
}

// NewIdentifiable is the CapabilityFactory for "identifiable".
func NewIdentifiable(rec ir.RecordView) (any, error) {
	return &Identifiable{rec: rec}, nil
}

// ControlNumber returns the record's control number, if any.
func (i *Identifiable) ControlNumber() (string, bool) {
	v, ok := i.rec.Get("control_number")
	if !ok {
		return "", false
	}
	return ir.AsString(v)
}
