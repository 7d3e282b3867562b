package harness

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a configuration, the
// records to translate with it and the assertions over the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config lists the CUE configuration files, applied in order.
	// Relative paths resolve against the scenario file location.
	Config []string `yaml:"config"`

	// InputFormat names the preparer for the record blobs. Defaults to marc.
	InputFormat string `yaml:"input_format,omitempty"`

	// Models lists the models to translate with. Empty means the default
	// model.
	Models []string `yaml:"models,omitempty"`

	// Fields restricts translation to the named fields.
	Fields []string `yaml:"fields,omitempty"`

	// Records are the source records, translated in order.
	Records []RecordInput `yaml:"records"`

	// Assertions validate the translated records and the store.
	Assertions []Assertion `yaml:"assertions"`
}

// RecordInput is one source record, given inline or as a file.
type RecordInput struct {
	// Data is the raw record blob.
	Data string `yaml:"data,omitempty"`

	// File is a path to the blob, relative to the scenario file.
	File string `yaml:"file,omitempty"`
}

// Assertion validates a translated record or the store.
type Assertion struct {
	// Type specifies the assertion type, one of the Assert constants.
	Type string `yaml:"type"`

	// Record is the index of the record the assertion is about.
	Record int `yaml:"record,omitempty"`

	// Field is a field name or dot path (field_equals, field_absent,
	// error_code, provenance, set).
	Field string `yaml:"field,omitempty"`

	// Value is the expected value (field_equals) or the value to set (set).
	Value any `yaml:"value,omitempty"`

	// Code is the expected error code (error_code, set).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of errors (error_count).
	Count int `yaml:"count,omitempty"`

	// Expect holds expected members: provenance members (provenance) or
	// capability views (capability: citation, title, control_number).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Capability is the capability name (capability).
	Capability string `yaml:"capability,omitempty"`

	// Path, Key, Equals, Contains and Exists describe a store search.
	Path     string `yaml:"path,omitempty"`
	Key      string `yaml:"key,omitempty"`
	Equals   any    `yaml:"equals,omitempty"`
	Contains any    `yaml:"contains,omitempty"`
	Exists   bool   `yaml:"exists,omitempty"`

	// ExpectRecords lists the record indexes a search must return, in order.
	ExpectRecords []int `yaml:"expect_records,omitempty"`
}

// Assertion type constants.
const (
	AssertFieldEquals = "field_equals"
	AssertFieldAbsent = "field_absent"
	AssertErrorCode   = "error_code"
	AssertErrorCount  = "error_count"
	AssertProvenance  = "provenance"
	AssertCapability  = "capability"
	AssertSet         = "set"
	AssertSearch      = "search"
)

// LoadScenario reads and parses a scenario YAML file. Relative config and
// record paths resolve against the directory of the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative config and record paths against basePath.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	for i, p := range scenario.Config {
		scenario.Config[i] = resolvePath(basePath, p)
	}
	for i := range scenario.Records {
		if scenario.Records[i].File != "" {
			scenario.Records[i].File = resolvePath(basePath, scenario.Records[i].File)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without resolving or checking its paths.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	return &scenario, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Config) == 0 {
		return errors.New("config list is required and must be non-empty")
	}
	if len(s.Records) == 0 {
		return errors.New("records list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for _, p := range s.Config {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return errors.Newf("config file not found: %s", p)
		}
	}

	for i, rec := range s.Records {
		switch {
		case rec.Data == "" && rec.File == "":
			return errors.Newf("records[%d]: data or file is required", i)
		case rec.Data != "" && rec.File != "":
			return errors.Newf("records[%d]: data and file are exclusive", i)
		case rec.File != "":
			if _, err := os.Stat(rec.File); os.IsNotExist(err) {
				return errors.Newf("records[%d]: file not found: %s", i, rec.File)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Records)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, records int) error {
	if a.Type == "" {
		return errors.Newf("assertions[%d]: type is required", index)
	}
	if a.Record < 0 || a.Record >= records {
		return errors.Newf("assertions[%d]: record %d out of range", index, a.Record)
	}

	switch a.Type {
	case AssertFieldEquals:
		if a.Field == "" || a.Value == nil {
			return errors.Newf("assertions[%d]: field and value are required for field_equals", index)
		}
	case AssertFieldAbsent, AssertProvenance:
		if a.Field == "" {
			return errors.Newf("assertions[%d]: field is required for %s", index, a.Type)
		}
		if a.Type == AssertProvenance && len(a.Expect) == 0 {
			return errors.Newf("assertions[%d]: expect is required for provenance", index)
		}
	case AssertErrorCode:
		if a.Code == "" {
			return errors.Newf("assertions[%d]: code is required for error_code", index)
		}
	case AssertErrorCount:
		if a.Count < 0 {
			return errors.Newf("assertions[%d]: count must be non-negative for error_count", index)
		}
	case AssertCapability:
		if a.Capability == "" {
			return errors.Newf("assertions[%d]: capability is required", index)
		}
	case AssertSet:
		if a.Field == "" {
			return errors.Newf("assertions[%d]: field is required for set", index)
		}
	case AssertSearch:
		if a.Path == "" {
			return errors.Newf("assertions[%d]: path is required for search", index)
		}
		n := 0
		for _, set := range []bool{a.Equals != nil, a.Contains != nil, a.Exists} {
			if set {
				n++
			}
		}
		if n != 1 {
			return errors.Newf("assertions[%d]: search needs exactly one of equals, contains, exists", index)
		}
		for _, idx := range a.ExpectRecords {
			if idx < 0 || idx >= records {
				return errors.Newf("assertions[%d]: expect_records index %d out of range", index, idx)
			}
		}
	default:
		return errors.Newf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
