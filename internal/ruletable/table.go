// Package ruletable builds the immutable rule table: every field definition
// keyed by json_id, with compiled creator and virtual functions, resolved
// decorators, aliases and the legacy flat-name lookup table.
//
// Build is deterministic for the same ordered sources. Fields declared with
// extend or override whose target is not defined yet are deferred to a
// second pass over the sources.
package ruletable

import (
	"regexp"
	"slices"

	"github.com/roach88/bibform/internal/ir"
)

// Table is the built rule table. It is never mutated after Build returns and
// is safe for concurrent readers.
type Table struct {
	fields      map[string]*ir.FieldDefinition
	order       []string
	aliases     map[string]string
	legacy      map[string][]string
	formats     []string
	summary     ir.IRObject
	fingerprint string
}

// Field returns the definition for a json_id.
func (t *Table) Field(jsonID string) (*ir.FieldDefinition, bool) {
	f, ok := t.fields[jsonID]
	return f, ok
}

// FieldIDs returns every json_id in declaration order.
func (t *Table) FieldIDs() []string {
	return slices.Clone(t.order)
}

// Len returns the number of fields.
func (t *Table) Len() int {
	return len(t.order)
}

// ResolveAlias maps a json_id or one of its aliases to the json_id.
func (t *Table) ResolveAlias(name string) (string, bool) {
	if _, ok := t.fields[name]; ok {
		return name, true
	}
	id, ok := t.aliases[name]
	return id, ok
}

// Formats returns the sorted source formats that have creator rules.
func (t *Table) Formats() []string {
	return slices.Clone(t.formats)
}

// HasFormat reports whether any field has creator rules for format.
func (t *Table) HasFormat(format string) bool {
	_, found := slices.BinarySearch(t.formats, format)
	return found
}

// LegacyFields returns the dot paths a flat legacy name such as "100__a"
// maps to, in declaration order.
func (t *Table) LegacyFields(tag string) []string {
	return slices.Clone(t.legacy[tag])
}

// Fingerprint identifies the configuration the table was built from.
func (t *Table) Fingerprint() string {
	return t.fingerprint
}

// Summary returns the canonical description the fingerprint is computed
// over.
func (t *Table) Summary() ir.IRObject {
	return ir.Clone(t.summary).(ir.IRObject)
}

// IsLiteralTag reports whether a source tag pattern has no regular
// expression metacharacters. Literal tags are matched by equality.
func IsLiteralTag(tag string) bool {
	return regexp.QuoteMeta(tag) == tag
}

// CompileTag compiles a source tag pattern anchored at both ends.
func CompileTag(tag string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + tag + ")$")
}
