// Package harness provides conformance testing for field configurations.
//
// The harness loads a CUE configuration, translates source records with the
// reader, saves them in an isolated in-memory store and checks the outcome
// against assertions written as YAML scenarios.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config:
//	  - ../catalog/fields.cue
//	input_format: marc
//	models: [Book]
//	records:
//	  - file: ../records/ellis.xml
//	  - data: |
//	      001 2
//	      245__ $$aQuarks
//	assertions:
//	  - type: field_equals
//	    record: 0
//	    field: main_entry_personal_name.personal_name
//	    value: Ellis
//	  - type: error_code
//	    record: 1
//	    code: E403
//	    field: edition
//	  - type: search
//	    path: international_standard_book_number
//	    key: international_standard_book_number
//	    contains: 80-902734-1-6
//	    expect_records: [0]
//
// # Assertion Types
//
//   - field_equals: a record value at a dot path equals value
//   - field_absent: a record has no value at a dot path
//   - error_code: a record carries a continuable error with the code
//   - error_count: a record carries exactly count continuable errors
//   - provenance: the provenance of a field contains the expect members
//   - capability: a record exposes a capability, optionally checking its
//     citation or control number
//   - set: Set on a record succeeds, or fails with the error code
//   - search: a store search returns exactly the expect_records
//
// # Deterministic Testing
//
// Every record is translated with a fresh testutil.DeterministicClock and
// shares one testutil.SequenceIDGenerator, so dumps are identical across
// runs and can be compared with golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/book.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(context.Background(), scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
