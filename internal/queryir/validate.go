package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/bibform/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes every invalid node, in traversal order.
	Problems []string
}

// Validate checks a query before it is compiled: paths must be well
// formed dot paths, and compared values must be non-null scalars.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validatePath(pred.Path)
		v.validateValue(pred.Path, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case Contains:
		v.validatePath(pred.Path)
		if pred.Key != "" && strings.Contains(pred.Key, ".") {
			v.addProblem("contains %s: key %q must be a single member name", pred.Path, pred.Key)
		}
		v.validateValue(pred.Path, pred.Value)
	case *Contains:
		v.validatePredicate(*pred)
	case Exists:
		v.validatePath(pred.Path)
	case *Exists:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	case nil:
		v.addProblem("nil predicate")
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validatePath(path string) {
	if path == "" {
		v.addProblem("empty path")
		return
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			v.addProblem("path %q has an empty segment", path)
			return
		}
	}
}

func (v *validator) validateValue(path string, value ir.IRValue) {
	switch value.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil, ir.IRNull:
		v.addProblem("%s compared to null; use Exists", path)
	default:
		v.addProblem("%s compared to %T; only scalars can be compared", path, value)
	}
}
