package harness

import (
	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/record"
)

// RecordResult is one translated record of a scenario.
type RecordResult struct {
	Index  int                 `json:"index"`
	ID     string              `json:"id"` // store id
	Dump   ir.IRObject         `json:"dump"`
	Errors []record.FieldError `json:"errors,omitempty"`
	Record *record.Record      `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// Records holds the translated records in input order.
	Records []RecordResult `json:"records"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Records: []RecordResult{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
