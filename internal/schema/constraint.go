package schema

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cockroachdb/errors"

	"github.com/roach88/bibform/internal/ir"
)

// checkConstraint unifies a CUE expression with the value and requires the
// result to be concrete and free of conflicts. A cue.Context is not safe for
// concurrent use, so each check gets its own.
func checkConstraint(expr string, v ir.IRValue) error {
	ctx := cuecontext.New()
	constraint := ctx.CompileString(expr, cue.Filename("constraint"))
	if err := constraint.Err(); err != nil {
		return errors.Wrapf(err, "invalid constraint %q", expr)
	}
	value := ctx.Encode(ir.ToGo(v))
	if err := value.Err(); err != nil {
		return errors.Wrap(err, "encoding value")
	}
	if err := constraint.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return errors.Newf("constraint %s not satisfied", expr)
	}
	return nil
}

// CheckConstraintSyntax compiles a constraint expression without a value.
// The rule table calls it at build time so broken expressions fail early.
func CheckConstraintSyntax(expr string) error {
	ctx := cuecontext.New()
	if err := ctx.CompileString(expr, cue.Filename("constraint")).Err(); err != nil {
		return errors.Wrapf(err, "invalid constraint %q", expr)
	}
	return nil
}
