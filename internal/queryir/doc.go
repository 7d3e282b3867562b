// Package queryir is the small query language over stored records.
//
// A query selects stored records whose translated data satisfies a
// predicate. Predicates address the data with dot paths of exposed field
// names, the same paths record.Get accepts:
//
//	main_entry_personal_name.personal_name
//	international_standard_book_number
//
// The language is deliberately tiny: equality, list containment, presence
// and conjunction. It is not a general query engine; querysql compiles it
// to SQLite JSON1 SQL.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Contains:
//	case Exists:
//	case And:
//	}
//
// All literal values are ir.IRValue scalars (no floats, no null).
package queryir
