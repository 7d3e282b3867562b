package ir

// SourceSpec is one compiled configuration source: the field and model
// declarations it contains, in declaration order.
type SourceSpec struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields,omitempty"`
	Models []ModelSpec `json:"models,omitempty"`
}

// FieldSpec is a parsed field declaration before rule compilation.
type FieldSpec struct {
	Name       string         `json:"name"`
	Aliases    []string       `json:"aliases,omitempty"`
	PID        *int64         `json:"pid,omitempty"`
	Override   bool           `json:"override,omitempty"`
	Extend     bool           `json:"extend,omitempty"`
	Hidden     bool           `json:"hidden,omitempty"`
	Rules      []RuleSpec     `json:"rules,omitempty"`
	Producers  []ProducerRule `json:"producers,omitempty"`
	Schema     *Schema        `json:"schema,omitempty"`
	Extensions []Extension    `json:"extensions,omitempty"`
	Source     string         `json:"source,omitempty"`
	Line       int            `json:"line,omitempty"`
}

// RuleSpec is a parsed rule: a function name plus raw arguments and the
// decorator calls guarding it.
type RuleSpec struct {
	Type       RuleType   `json:"type"`
	Format     string     `json:"format,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Function   string     `json:"function"`
	Args       IRValue    `json:"args,omitempty"`
	Decorators Decorators `json:"decorators"`
	Line       int        `json:"line,omitempty"`
}

// ModelSpec is a parsed model declaration.
type ModelSpec struct {
	Name       string      `json:"name"`
	Fields     []FieldRef  `json:"fields,omitempty"`
	Bases      []string    `json:"bases,omitempty"`
	Extensions []Extension `json:"extensions,omitempty"`
	Source     string      `json:"source,omitempty"`
	Line       int         `json:"line,omitempty"`
}
