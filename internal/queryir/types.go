package queryir

import "github.com/roach88/bibform/internal/ir"

// Query is a query over stored records.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate is a filter over one stored record's data.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select returns the stored records matching Filter.
//
// Semantics:
//
//	SELECT records WHERE <filter> [AND master_format = <MasterFormat>]
//	ORDER BY seq, id
//
// Example:
//
//	Select{
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Path: "control_number", Value: ir.IRString("1")},
//	    Exists{Path: "main_entry_personal_name"},
//	  }},
//	}
type Select struct {
	Filter       Predicate // nil = every record
	MasterFormat string    // "" = any master format
	Limit        int       // 0 = no limit
}

func (Select) queryNode() {}

// Equals matches records whose value at Path equals Value.
//
// Example:
//
//	Equals{Path: "main_entry_personal_name.personal_name", Value: ir.IRString("Ellis")}
type Equals struct {
	Path  string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// Contains matches records whose value at Path holds an element equal to
// Value. The value at Path may be a list or a single element; a single
// element is treated as a list of one. With Key set, elements are objects
// and Key names the member compared.
//
// Example:
//
//	Contains{
//	  Path:  "international_standard_book_number",
//	  Key:   "international_standard_book_number",
//	  Value: ir.IRString("80-902734-1-6"),
//	}
type Contains struct {
	Path  string
	Key   string
	Value ir.IRValue
}

func (Contains) predicateNode() {}

// Exists matches records holding any value at Path.
type Exists struct {
	Path string
}

func (Exists) predicateNode() {}

// And matches when all predicates match. Empty Predicates matches every
// record.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
