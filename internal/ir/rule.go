package ir

// RuleType classifies how a rule obtains its input.
type RuleType string

const (
	// RuleCreator maps one matched source element to a field contribution.
	RuleCreator RuleType = "creator"

	// RuleDerived is computed once from the record being built.
	RuleDerived RuleType = "derived"

	// RuleCalculated is computed from the record being built and can be
	// recomputed later on demand.
	RuleCalculated RuleType = "calculated"
)

// IsVirtual reports whether the rule works over the whole record rather
// than a matched element.
func (t RuleType) IsVirtual() bool {
	return t == RuleDerived || t == RuleCalculated
}

// FormatJSON is the source format every field can always be read from.
const FormatJSON = "json"

// DefaultModel is the sentinel model resolving to every known field.
const DefaultModel = "__default__"

// MetaKey is the key under which a dump carries its meta-metadata.
const MetaKey = "__meta_metadata__"

// CreatorFunc turns one matched source element into a field contribution.
type CreatorFunc func(elem IRValue) (IRValue, error)

// VirtualFunc computes a field value from the record being built.
type VirtualFunc func(rec RecordView) (IRValue, error)

// RecordView is the read-only face of a record in progress.
type RecordView interface {
	// Get follows a dot path through the record's data.
	Get(path string) (IRValue, bool)
}

// DecoratorCall is a named plugin invocation with its configured arguments.
type DecoratorCall struct {
	Name string  `json:"name"`
	Args IRValue `json:"args,omitempty"`
}

// Decorators groups a rule's decorator calls by evaluation phase.
type Decorators struct {
	Before []DecoratorCall `json:"before,omitempty"`
	On     []DecoratorCall `json:"on,omitempty"`
	After  []DecoratorCall `json:"after,omitempty"`
}

// Rule is a compiled, source-format-specific transformation rule.
type Rule struct {
	Type         RuleType   `json:"type"`
	SourceFormat string     `json:"source_format,omitempty"`
	SourceTags   []string   `json:"source_tags,omitempty"`
	Function     string     `json:"function"` // human readable description, recorded in provenance
	Decorators   Decorators `json:"decorators"`
	Source       string     `json:"source,omitempty"` // configuration source that declared the rule

	Creator CreatorFunc `json:"-"`
	Virtual VirtualFunc `json:"-"`
}

// Extension is a named field or model extension value, kept in
// registration order.
type Extension struct {
	Name  string  `json:"name"`
	Value IRValue `json:"value"`
}

// SubfieldMap maps one MARC subfield code to a path inside a field value.
type SubfieldMap struct {
	Code string `json:"code"`
	Path string `json:"path"`
}

// ProducerRule renders a field value back into a tagged element.
// Subfields is empty for control fields, which take the value itself.
type ProducerRule struct {
	Format    string        `json:"format"`
	Tag       string        `json:"tag"`
	Subfields []SubfieldMap `json:"subfields,omitempty"`
}

// Schema describes the expected shape of a field value.
type Schema struct {
	Type        string             `json:"type,omitempty"` // string|integer|boolean|object|list|any
	Default     IRValue            `json:"default,omitempty"`
	DefaultFunc string             `json:"default_func,omitempty"`
	Force       bool               `json:"force,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Constraint  string             `json:"constraint,omitempty"` // CUE expression
}

// HasDefault reports whether the schema declares a constant or produced default.
func (s *Schema) HasDefault() bool {
	return s != nil && (s.Default != nil || s.DefaultFunc != "")
}

// FieldDefinition is the rule table entry for one json_id.
type FieldDefinition struct {
	JSONID     string            `json:"json_id"`
	Aliases    []string          `json:"aliases,omitempty"`
	PID        *int64            `json:"pid,omitempty"`
	Override   bool              `json:"override,omitempty"`
	Extend     bool              `json:"extend,omitempty"`
	Hidden     bool              `json:"hidden,omitempty"`
	Rules      map[string][]Rule `json:"rules"`             // creator rules by source format
	Virtual    []Rule            `json:"virtual,omitempty"` // derived and calculated rules
	Schema     *Schema           `json:"schema,omitempty"`
	Extensions []Extension       `json:"extensions,omitempty"`
	Producers  []ProducerRule    `json:"producers,omitempty"`
	Sources    []string          `json:"sources,omitempty"`
}

// CreatorRules returns the creator rules for a source format.
func (f *FieldDefinition) CreatorRules(format string) []Rule {
	if f == nil {
		return nil
	}
	return f.Rules[format]
}

// Extension returns the value of a named extension.
func (f *FieldDefinition) Extension(name string) (IRValue, bool) {
	for _, ext := range f.Extensions {
		if ext.Name == name {
			return ext.Value, true
		}
	}
	return nil, false
}

// ProducersFor returns the producer rules for a target format.
func (f *FieldDefinition) ProducersFor(format string) []ProducerRule {
	var out []ProducerRule
	for _, p := range f.Producers {
		if p.Format == format {
			out = append(out, p)
		}
	}
	return out
}

// FieldRef is one exposed-name to json_id entry of a model.
type FieldRef struct {
	Name   string `json:"name"`
	JSONID string `json:"json_id"`
}

// ModelDefinition is a named, inheritable subset-and-rename view over the
// field catalog.
type ModelDefinition struct {
	Name       string      `json:"name"`
	Fields     []FieldRef  `json:"fields"`
	Bases      []string    `json:"bases,omitempty"`
	Extensions []Extension `json:"extensions,omitempty"`
	Source     string      `json:"source,omitempty"`
	Line       int         `json:"line,omitempty"`
}
