package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bibform/internal/ir"
)

// RecordSnapshot captures the translated records of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type RecordSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Records      []RecordResult `json:"records"`
}

// toCanonical converts a RecordSnapshot to an IRObject for canonical JSON
// serialization. Store ids are left out: they depend on the store, not on
// the translation.
func (s *RecordSnapshot) toCanonical() ir.IRObject {
	records := make(ir.IRArray, len(s.Records))
	for i, rr := range s.Records {
		entry := ir.IRObject{"index": ir.IRInt(int64(rr.Index))}
		if rr.Dump != nil {
			entry["dump"] = rr.Dump
		}
		if len(rr.Errors) > 0 {
			errs := make(ir.IRArray, len(rr.Errors))
			for j, fe := range rr.Errors {
				obj := ir.IRObject{
					"code":    ir.IRString(fe.Code),
					"field":   ir.IRString(fe.Field),
					"message": ir.IRString(fe.Message),
				}
				if fe.JSONID != "" {
					obj["json_id"] = ir.IRString(fe.JSONID)
				}
				errs[j] = obj
			}
			entry["errors"] = errs
		}
		records[i] = entry
	}
	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"records":       records,
	}
}

// SnapshotJSON renders the records of a result as canonical JSON.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := RecordSnapshot{ScenarioName: scenarioName, Records: result.Records}
	return ir.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario and compares the translated records
// against a golden file. By default the golden file is stored in
// testdata/golden/{scenario.Name}.golden; opts are passed to goldie.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the records don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the records of a result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, data)
	return nil
}
