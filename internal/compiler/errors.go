package compiler

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"
)

// Field parser error codes (E200-E299).
const (
	ErrFieldSyntax        = "E200" // configuration source does not parse or is not concrete
	ErrDuplicateField     = "E201" // field declared twice without extend/override
	ErrUndefinedBaseField = "E202" // extend/override of a field nobody defined
	ErrUnknownPlugin      = "E203" // unknown function, decorator or extension name
	ErrFieldShape         = "E204" // attribute has the wrong shape
)

// Model parser error codes (E300-E399).
const (
	ErrUndeclaredField = "E301" // model references a field that does not exist
	ErrUnknownBase     = "E302" // model inherits from an unknown model
	ErrModelCycle      = "E303" // model inheritance cycle
	ErrModelShape      = "E304" // model attribute has the wrong shape
)

// FieldParserError reports a field definition that cannot be turned into a
// rule table entry.
type FieldParserError struct {
	Code    string
	Field   string
	Source  string
	Message string
	Pos     token.Pos
	Line    int // used when no CUE position is available
}

func (e *FieldParserError) Error() string {
	return formatParserError(e.Code, "field", e.Field, e.Source, e.Message, e.Pos, e.Line)
}

// ModelParserError reports a model definition that cannot be resolved.
type ModelParserError struct {
	Code    string
	Model   string
	Source  string
	Message string
	Pos     token.Pos
	Line    int
}

func (e *ModelParserError) Error() string {
	return formatParserError(e.Code, "model", e.Model, e.Source, e.Message, e.Pos, e.Line)
}

func formatParserError(code, kind, name, source, msg string, pos token.Pos, line int) string {
	where := source
	switch {
	case pos.IsValid():
		where = fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
	case line > 0 && source != "":
		where = fmt.Sprintf("%s:%d", source, line)
	}
	subject := msg
	if name != "" {
		subject = fmt.Sprintf("%s %q: %s", kind, name, msg)
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", code, subject)
	}
	return fmt.Sprintf("[%s] %s: %s", code, where, subject)
}

// IsFieldParserError reports whether err is a FieldParserError and returns it.
func IsFieldParserError(err error) (*FieldParserError, bool) {
	var fpe *FieldParserError
	if errors.As(err, &fpe) {
		return fpe, true
	}
	return nil, false
}

// IsModelParserError reports whether err is a ModelParserError and returns it.
func IsModelParserError(err error) (*ModelParserError, bool) {
	var mpe *ModelParserError
	if errors.As(err, &mpe) {
		return mpe, true
	}
	return nil, false
}

// IsDuplicateField reports whether err is a duplicate field declaration.
func IsDuplicateField(err error) bool {
	fpe, ok := IsFieldParserError(err)
	return ok && fpe.Code == ErrDuplicateField
}

// IsUndefinedBaseField reports whether err is an extend/override of an
// undefined field.
func IsUndefinedBaseField(err error) bool {
	fpe, ok := IsFieldParserError(err)
	return ok && fpe.Code == ErrUndefinedBaseField
}

// IsModelCycle reports whether err is a model inheritance cycle.
func IsModelCycle(err error) bool {
	mpe, ok := IsModelParserError(err)
	return ok && mpe.Code == ErrModelCycle
}

// fieldSyntaxError converts a CUE error into a FieldParserError carrying the
// first reported position.
func fieldSyntaxError(source string, err error) *FieldParserError {
	out := &FieldParserError{Code: ErrFieldSyntax, Source: source, Message: err.Error()}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return out
	}
	out.Message = errs[0].Error()
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
