package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bibform/internal/ir"
	"github.com/roach88/bibform/internal/plugin"
	"github.com/roach88/bibform/internal/queryir"
	"github.com/roach88/bibform/internal/record"
	"github.com/roach88/bibform/internal/schema"
	"github.com/roach88/bibform/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Record   int    // Index of the record under test, -1 for store assertions
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Errors   []record.FieldError
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Record >= 0 {
		fmt.Fprintf(&buf, " (record %d)", e.Record)
	}
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Errors) > 0 {
		fmt.Fprintf(&buf, "\nRecord errors:\n")
		for _, fe := range e.Errors {
			fmt.Fprintf(&buf, "  %s\n", fe.Error())
		}
	}
	return buf.String()
}

func fail(a Assertion, rr *RecordResult, expected, actual string) error {
	e := &AssertionError{Type: a.Type, Record: a.Record, Expected: expected, Actual: actual}
	if rr != nil {
		e.Errors = rr.Errors
	}
	return e
}

// toIR converts a YAML-parsed value to an IRValue.
func toIR(v any) (ir.IRValue, error) {
	if v == nil {
		return nil, fmt.Errorf("null values are forbidden in IR")
	}
	return ir.FromGo(v)
}

// assertFieldEquals checks a record value at a dot path.
func assertFieldEquals(rr *RecordResult, a Assertion) error {
	want, err := toIR(a.Value)
	if err != nil {
		return fmt.Errorf("assertion field_equals: value: %w", err)
	}
	got, ok := rr.Record.Get(a.Field)
	if !ok {
		return fail(a, rr, fmt.Sprintf("%s = %s", a.Field, render(want)), "field absent")
	}
	if !ir.Equal(got, want) {
		return fail(a, rr, fmt.Sprintf("%s = %s", a.Field, render(want)), render(got))
	}
	return nil
}

// assertFieldAbsent checks that a record has no value at a dot path.
func assertFieldAbsent(rr *RecordResult, a Assertion) error {
	if got, ok := rr.Record.Get(a.Field); ok {
		return fail(a, rr, a.Field+" absent", render(got))
	}
	return nil
}

// assertErrorCode checks for a continuable error with the code, on the
// field when one is given.
func assertErrorCode(rr *RecordResult, a Assertion) error {
	for _, fe := range rr.Errors {
		if fe.Code == a.Code && (a.Field == "" || fe.Field == a.Field) {
			return nil
		}
	}
	want := a.Code
	if a.Field != "" {
		want += " on " + a.Field
	}
	return fail(a, rr, want, fmt.Sprintf("%d errors", len(rr.Errors)))
}

func assertErrorCount(rr *RecordResult, a Assertion) error {
	if len(rr.Errors) != a.Count {
		return fail(a, rr, fmt.Sprintf("%d errors", a.Count), fmt.Sprintf("%d errors", len(rr.Errors)))
	}
	return nil
}

// assertProvenance checks that the provenance of a field contains the
// expected members (subset match).
func assertProvenance(rr *RecordResult, a Assertion) error {
	meta, err := currentMeta(rr.Record)
	if err != nil {
		return fmt.Errorf("assertion provenance: %w", err)
	}
	prov, ok := meta[a.Field].(ir.IRObject)
	if !ok {
		return fail(a, rr, "provenance of "+a.Field, "no provenance")
	}
	for key, raw := range a.Expect {
		want, err := toIR(raw)
		if err != nil {
			return fmt.Errorf("assertion provenance: expect.%s: %w", key, err)
		}
		got, ok := prov[key]
		if !ok || !ir.Equal(got, want) {
			return fail(a, rr, fmt.Sprintf("%s.%s = %s", a.Field, key, render(want)), render(got))
		}
	}
	return nil
}

// assertCapability checks that a record exposes a capability. The citable
// and identifiable views can be checked through expect.
func assertCapability(rr *RecordResult, a Assertion) error {
	capability, ok := rr.Record.Capability(a.Capability)
	if !ok {
		return fail(a, rr, "capability "+a.Capability, fmt.Sprintf("capabilities %v", rr.Record.Capabilities()))
	}

	actual := map[string]string{}
	switch c := capability.(type) {
	case *plugin.Citable:
		actual["title"] = c.Title()
		actual["citation"] = c.Citation()
		actual["authors"] = strings.Join(c.Authors(), "; ")
	case *plugin.Identifiable:
		cn, _ := c.ControlNumber()
		actual["control_number"] = cn
	}
	for key, raw := range a.Expect {
		want := fmt.Sprint(raw)
		got, known := actual[key]
		if !known {
			return fmt.Errorf("assertion capability: %s has no view %q", a.Capability, key)
		}
		if got != want {
			return fail(a, rr, fmt.Sprintf("%s.%s = %q", a.Capability, key, want), fmt.Sprintf("%q", got))
		}
	}
	return nil
}

// assertSet calls Set on the record. Without a code the call must succeed;
// with one it must fail with that code and leave the record unchanged.
func assertSet(rr *RecordResult, a Assertion) error {
	var value ir.IRValue
	if a.Value != nil {
		v, err := toIR(a.Value)
		if err != nil {
			return fmt.Errorf("assertion set: value: %w", err)
		}
		value = v
	}

	before := rr.Record.Data()
	beforeErrs := rr.Record.Errors()
	beforeMeta, err := currentMeta(rr.Record)
	if err != nil {
		return fmt.Errorf("assertion set: %w", err)
	}
	err = rr.Record.Set(a.Field, value)
	if a.Code == "" {
		if err != nil {
			return fail(a, rr, "set "+a.Field+" succeeds", err.Error())
		}
		return nil
	}

	ve, ok := schema.AsValidationError(err)
	if !ok {
		actual := "no error"
		if err != nil {
			actual = err.Error()
		}
		return fail(a, rr, "set "+a.Field+" fails with "+a.Code, actual)
	}
	if ve.Code != a.Code {
		return fail(a, rr, "set "+a.Field+" fails with "+a.Code, ve.Error())
	}
	if !ir.Equal(before, rr.Record.Data()) {
		return fail(a, rr, "record unchanged after failed set", "data changed")
	}
	if !slices.Equal(beforeErrs, rr.Record.Errors()) {
		return fail(a, rr, "record unchanged after failed set", "error list changed")
	}
	afterMeta, err := currentMeta(rr.Record)
	if err != nil {
		return fmt.Errorf("assertion set: %w", err)
	}
	if !ir.Equal(beforeMeta, afterMeta) {
		return fail(a, rr, "record unchanged after failed set", "provenance changed")
	}
	return nil
}

// currentMeta dumps the provenance the record holds now. Result dumps are
// taken right after translation and miss later Set calls.
func currentMeta(rec *record.Record) (ir.IRObject, error) {
	dump, err := rec.Dump(record.DumpOptions{IncludeMeta: true})
	if err != nil {
		return nil, err
	}
	meta, _ := dump[ir.MetaKey].(ir.IRObject)
	if meta == nil {
		meta = ir.IRObject{}
	}
	return meta, nil
}

// searchQuery builds the store query of a search assertion.
func searchQuery(a Assertion) (queryir.Query, error) {
	var pred queryir.Predicate
	switch {
	case a.Exists:
		pred = queryir.Exists{Path: a.Path}
	case a.Equals != nil:
		v, err := toIR(a.Equals)
		if err != nil {
			return nil, err
		}
		pred = queryir.Equals{Path: a.Path, Value: v}
	default:
		v, err := toIR(a.Contains)
		if err != nil {
			return nil, err
		}
		pred = queryir.Contains{Path: a.Path, Key: a.Key, Value: v}
	}
	return queryir.Select{Filter: pred}, nil
}

// assertSearch runs a store search and compares the returned records.
func assertSearch(ctx context.Context, st *store.Store, records []RecordResult, a Assertion) error {
	q, err := searchQuery(a)
	if err != nil {
		return fmt.Errorf("assertion search: %w", err)
	}
	found, err := st.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("assertion search: %w", err)
	}

	index := make(map[string]int, len(records))
	for _, rr := range records {
		if rr.ID != "" {
			index[rr.ID] = rr.Index
		}
	}
	got := make([]int, 0, len(found))
	for _, s := range found {
		got = append(got, index[s.ID])
	}

	want := a.ExpectRecords
	if want == nil {
		want = []int{}
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		e := &AssertionError{Type: a.Type, Record: -1, Expected: fmt.Sprintf("records %v for %s", want, a.Path), Actual: fmt.Sprintf("records %v", got)}
		return e
	}
	return nil
}

// render formats an IR value as canonical JSON for messages.
func render(v ir.IRValue) string {
	if v == nil {
		return "<nil>"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result, in
// order. Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for search assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		if a.Type == AssertSearch {
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: search requires a store", i)
			} else {
				err = assertSearch(actx.Ctx, actx.Store, result.Records, a)
			}
			if err != nil {
				errs = append(errs, err.Error())
			}
			continue
		}

		if a.Record < 0 || a.Record >= len(result.Records) || result.Records[a.Record].Record == nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: record %d was not translated", i, a.Record))
			continue
		}
		rr := &result.Records[a.Record]

		switch a.Type {
		case AssertFieldEquals:
			err = assertFieldEquals(rr, a)
		case AssertFieldAbsent:
			err = assertFieldAbsent(rr, a)
		case AssertErrorCode:
			err = assertErrorCode(rr, a)
		case AssertErrorCount:
			err = assertErrorCount(rr, a)
		case AssertProvenance:
			err = assertProvenance(rr, a)
		case AssertCapability:
			err = assertCapability(rr, a)
		case AssertSet:
			err = assertSet(rr, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
