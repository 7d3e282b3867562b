// Package schema validates field values against the schema declared on a
// field definition, applies declared defaults and performs forced type
// coercion.
//
// Schema types are string, integer, boolean, object, list and any (or
// empty, meaning any). An optional constraint is a CUE expression unified
// with the value, e.g. `=~"^[0-9-]+$"` or `>0 & <10000`.
package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// Schema error codes (E500-E599).
const (
	ErrTypeMismatch    = "E501" // value does not have the schema type
	ErrMissingRequired = "E502" // required object key absent
	ErrConstraint      = "E503" // CUE constraint not satisfied
	ErrCoercion        = "E504" // forced coercion impossible
	ErrUnknownProducer = "E505" // default_func names no registered producer
)

// Type names accepted in schema declarations.
const (
	TypeAny     = "any"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeList    = "list"
)

// ValidationError reports a value that does not satisfy a schema.
type ValidationError struct {
	Code    string
	Field   string // field name, set by callers that know it
	Path    string // dot path inside the value, empty for the value itself
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Code)
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	b.WriteString(e.Message)
	return b.String()
}

// AsValidationError reports whether err is a ValidationError and returns it.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Validate checks v against s. A nil schema accepts everything.
func Validate(s *ir.Schema, v ir.IRValue) error {
	return validateAt(s, v, "")
}

func validateAt(s *ir.Schema, v ir.IRValue, path string) error {
	if s == nil {
		return nil
	}
	if !hasType(s.Type, v) {
		return &ValidationError{
			Code:    ErrTypeMismatch,
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", s.Type, KindOf(v)),
		}
	}

	switch val := v.(type) {
	case ir.IRObject:
		for _, key := range s.Required {
			if _, ok := val[key]; !ok {
				return &ValidationError{Code: ErrMissingRequired, Path: join(path, key), Message: "required key is missing"}
			}
		}
		for _, key := range val.SortedKeys() {
			if err := validateAt(s.Properties[key], val[key], join(path, key)); err != nil {
				return err
			}
		}
	case ir.IRArray:
		for i, elem := range val {
			if err := validateAt(s.Items, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}

	if s.Constraint != "" {
		if err := checkConstraint(s.Constraint, v); err != nil {
			return &ValidationError{Code: ErrConstraint, Path: path, Message: err.Error()}
		}
	}
	return nil
}

func hasType(typ string, v ir.IRValue) bool {
	switch typ {
	case "", TypeAny:
		return true
	case TypeString:
		_, ok := v.(ir.IRString)
		return ok
	case TypeInteger:
		_, ok := v.(ir.IRInt)
		return ok
	case TypeBoolean:
		_, ok := v.(ir.IRBool)
		return ok
	case TypeObject:
		_, ok := v.(ir.IRObject)
		return ok
	case TypeList:
		_, ok := v.(ir.IRArray)
		return ok
	default:
		return false
	}
}

// KindOf names the schema type of a value.
func KindOf(v ir.IRValue) string {
	switch v.(type) {
	case ir.IRString:
		return TypeString
	case ir.IRInt:
		return TypeInteger
	case ir.IRBool:
		return TypeBoolean
	case ir.IRObject:
		return TypeObject
	case ir.IRArray:
		return TypeList
	case ir.IRNull:
		return "null"
	default:
		return "nothing"
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
