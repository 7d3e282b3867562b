package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bibform/internal/ir"
)

// Validation error codes (E210-E229 fields, E310-E319 models).
const (
	ErrCreatorNoTags       = "E210" // creator rule without source tags
	ErrVirtualHasTags      = "E211" // derived/calculated rule with source tags
	ErrNegativePID         = "E212" // pid below zero
	ErrExtendAndOverride   = "E213" // both extend and override set
	ErrRuleNoFunction      = "E214" // rule without a function name
	ErrProducerNoTag       = "E215" // producer rule without a tag
	ErrInvalidSchemaType   = "E216" // schema type not in the allowed set
	ErrEmptyTag            = "E217" // blank source tag pattern
	ErrModelEmpty          = "E310" // model with neither fields nor bases
	ErrModelEmptyReference = "E311" // model field pointing at an empty json_id
	ErrModelDuplicateName  = "E312" // model declared twice in one source
)

// ValidationError represents a structural problem in a parsed source.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var schemaTypes = map[string]bool{
	"":        true,
	"any":     true,
	"string":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"list":    true,
}

// Validate checks a parsed source for structural errors.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.SourceSpec) []ValidationError {
	var errs []ValidationError
	for i := range spec.Fields {
		errs = append(errs, validateField(&spec.Fields[i])...)
	}

	seen := make(map[string]bool)
	for i := range spec.Models {
		m := &spec.Models[i]
		if seen[m.Name] {
			errs = append(errs, ValidationError{
				Field:   "models." + m.Name,
				Message: "model declared twice",
				Code:    ErrModelDuplicateName,
				Line:    m.Line,
			})
		}
		seen[m.Name] = true
		errs = append(errs, validateModel(m)...)
	}
	return errs
}

func validateField(f *ir.FieldSpec) []ValidationError {
	var errs []ValidationError
	at := "fields." + f.Name

	if f.Extend && f.Override {
		errs = append(errs, ValidationError{
			Field:   at,
			Message: "extend and override are mutually exclusive",
			Code:    ErrExtendAndOverride,
			Line:    f.Line,
		})
	}
	if f.PID != nil && *f.PID < 0 {
		errs = append(errs, ValidationError{
			Field:   at + ".pid",
			Message: fmt.Sprintf("pid must not be negative, got %d", *f.PID),
			Code:    ErrNegativePID,
			Line:    f.Line,
		})
	}

	for i, r := range f.Rules {
		ruleAt := fmt.Sprintf("%s.%s[%d]", at, r.Type, i)
		if r.Type == ir.RuleCreator {
			ruleAt = fmt.Sprintf("%s.creator.%s[%d]", at, r.Format, i)
		}

		if strings.TrimSpace(r.Function) == "" {
			errs = append(errs, ValidationError{Field: ruleAt + ".function", Message: "function is required", Code: ErrRuleNoFunction, Line: r.Line})
		}
		switch {
		case r.Type == ir.RuleCreator && len(r.Tags) == 0:
			errs = append(errs, ValidationError{Field: ruleAt + ".tags", Message: "creator rules need at least one source tag", Code: ErrCreatorNoTags, Line: r.Line})
		case r.Type.IsVirtual() && len(r.Tags) > 0:
			errs = append(errs, ValidationError{Field: ruleAt + ".tags", Message: fmt.Sprintf("%s rules work over the whole record and take no tags", r.Type), Code: ErrVirtualHasTags, Line: r.Line})
		}
		for j, tag := range r.Tags {
			if strings.TrimSpace(tag) == "" {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.tags[%d]", ruleAt, j), Message: "tag must not be blank", Code: ErrEmptyTag, Line: r.Line})
			}
		}
	}

	for i, p := range f.Producers {
		if strings.TrimSpace(p.Tag) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.producer.%s[%d].tag", at, p.Format, i),
				Message: "producer tag is required",
				Code:    ErrProducerNoTag,
				Line:    f.Line,
			})
		}
	}

	errs = append(errs, validateSchema(f.Schema, at+".schema", f.Line)...)
	return errs
}

func validateSchema(s *ir.Schema, at string, line int) []ValidationError {
	if s == nil {
		return nil
	}
	var errs []ValidationError
	if !schemaTypes[s.Type] {
		errs = append(errs, ValidationError{
			Field:   at + ".type",
			Message: fmt.Sprintf("invalid schema type %q, must be one of string, integer, boolean, object, list, any", s.Type),
			Code:    ErrInvalidSchemaType,
			Line:    line,
		})
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		errs = append(errs, validateSchema(s.Properties[name], at+".properties."+name, line)...)
	}
	errs = append(errs, validateSchema(s.Items, at+".items", line)...)
	return errs
}

func validateModel(m *ir.ModelSpec) []ValidationError {
	var errs []ValidationError
	at := "models." + m.Name
	if len(m.Fields) == 0 && len(m.Bases) == 0 {
		errs = append(errs, ValidationError{
			Field:   at,
			Message: "model needs fields or bases",
			Code:    ErrModelEmpty,
			Line:    m.Line,
		})
	}
	for _, ref := range m.Fields {
		if strings.TrimSpace(ref.JSONID) == "" {
			errs = append(errs, ValidationError{
				Field:   at + ".fields." + ref.Name,
				Message: "json_id must not be empty",
				Code:    ErrModelEmptyReference,
				Line:    m.Line,
			})
		}
	}
	return errs
}
