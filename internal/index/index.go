// Package index dispatches an incoming source tag to the creator rules that
// accept it for one source format.
//
// Literal tag patterns live in a hash bucket. Patterns with regular
// expression metacharacters are compiled anchored and bucketed by their
// literal prefix, so a query tests only the regexes whose prefix the tag
// starts with. Query results are memoised per tag.
package index

import (
	"regexp"
	"slices"
	"sync"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/ruletable"
)

// Match is one field rule accepting a tag.
type Match struct {
	JSONID    string
	Field     *ir.FieldDefinition
	Rule      *ir.Rule
	RuleIndex int // position in Field.Rules[format]
}

// entry is a registered pattern. seq is the registration order; within one
// field the entry registered first wins.
type entry struct {
	seq        int
	fieldOrder int
	match      Match
}

type patternEntry struct {
	entry
	re *regexp.Regexp
}

// Index is immutable after Build and safe for concurrent queries.
type Index struct {
	format   string
	literal  map[string][]entry
	patterns map[string][]patternEntry // keyed by literal prefix
	size     int
	memo     sync.Map // tag -> []Match
}

// Build registers every source tag pattern of every field that has creator
// rules for format. Patterns are registered in reverse declaration order per
// field so that the later-declared rule shadows earlier ones on the same tag.
// Tag patterns must already be valid; the rule table checks them at build.
func Build(table *ruletable.Table, format string) *Index {
	idx := &Index{
		format:   format,
		literal:  make(map[string][]entry),
		patterns: make(map[string][]patternEntry),
	}

	seq := 0
	for order, id := range table.FieldIDs() {
		def, _ := table.Field(id)
		rules := def.CreatorRules(format)
		for i := len(rules) - 1; i >= 0; i-- {
			rule := &rules[i]
			for _, tag := range rule.SourceTags {
				e := entry{
					seq:        seq,
					fieldOrder: order,
					match:      Match{JSONID: id, Field: def, Rule: rule, RuleIndex: i},
				}
				seq++
				if ruletable.IsLiteralTag(tag) {
					idx.literal[tag] = append(idx.literal[tag], e)
					continue
				}
				re, err := ruletable.CompileTag(tag)
				if err != nil {
					continue
				}
				prefix, _ := re.LiteralPrefix()
				idx.patterns[prefix] = append(idx.patterns[prefix], patternEntry{entry: e, re: re})
			}
		}
	}
	idx.size = seq
	return idx
}

// Format returns the source format the index was built for.
func (idx *Index) Format() string {
	return idx.format
}

// Len returns the number of registered patterns.
func (idx *Index) Len() int {
	return idx.size
}

// Query returns every field rule accepting tag: at most one rule per field,
// ordered by field declaration order. The returned slice is owned by the
// caller.
func (idx *Index) Query(tag string) []Match {
	if cached, ok := idx.memo.Load(tag); ok {
		return slices.Clone(cached.([]Match))
	}
	matches := idx.query(tag)
	idx.memo.Store(tag, matches)
	return slices.Clone(matches)
}

func (idx *Index) query(tag string) []Match {
	var candidates []entry
	candidates = append(candidates, idx.literal[tag]...)
	for end := 0; end <= len(tag); end++ {
		for _, p := range idx.patterns[tag[:end]] {
			if p.re.MatchString(tag) {
				candidates = append(candidates, p.entry)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	best := make(map[int]entry)
	for _, c := range candidates {
		if prev, ok := best[c.fieldOrder]; !ok || c.seq < prev.seq {
			best[c.fieldOrder] = c
		}
	}
	winners := make([]entry, 0, len(best))
	for _, e := range best {
		winners = append(winners, e)
	}
	slices.SortFunc(winners, func(a, b entry) int { return a.fieldOrder - b.fieldOrder })

	out := make([]Match, len(winners))
	for i, w := range winners {
		out[i] = w.match
	}
	return out
}
