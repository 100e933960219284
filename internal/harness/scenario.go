package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Suite is one YAML file of scenarios.
type Suite struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one expression run against a fixed resource set.
type Scenario struct {
	// Name uniquely identifies this scenario within its suite.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description,omitempty"`

	// Expression is the FHIRPath expression to compile and run.
	Expression string `yaml:"expression"`

	// Resources are the documents loaded before execution. Each entry is
	// either a YAML mapping (converted to JSON) or a raw JSON string.
	Resources []any `yaml:"resources,omitempty"`

	// Expect is the scenario expectation.
	Expect Expectation `yaml:"expect"`
}

// Expectation describes the required outcome of a scenario.
// Exactly one of Values, Count, or Error must be set.
type Expectation struct {
	// Values is the expected value column, in result order. A null entry
	// expects a NULL value.
	Values []*string `yaml:"values,omitempty"`

	// Count is the expected number of result rows.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected compile failure: a translation error code
	// (e.g. MISSING_SCHEMA_METADATA) or a pipeline stage name
	// (parse, adapt, translate, assemble).
	Error string `yaml:"error,omitempty"`
}

// LoadSuite reads and parses a scenario suite YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario suite: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite parses scenario suite YAML.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("parse scenario suite: %w", err)
	}
	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid scenario suite: %w", err)
	}
	return &suite, nil
}

func validateSuite(s *Suite) error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}
	seen := map[string]bool{}
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenarios[%d]: name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("scenarios[%d]: duplicate name %q", i, sc.Name)
		}
		seen[sc.Name] = true
		if sc.Expression == "" {
			return fmt.Errorf("scenario %q: expression is required", sc.Name)
		}
		set := 0
		if sc.Expect.Values != nil {
			set++
		}
		if sc.Expect.Count != nil {
			set++
		}
		if sc.Expect.Error != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("scenario %q: expect must set exactly one of values, count, error", sc.Name)
		}
		for j, res := range sc.Resources {
			if _, err := resourceJSON(res); err != nil {
				return fmt.Errorf("scenario %q: resources[%d]: %w", sc.Name, j, err)
			}
		}
	}
	return nil
}

// resourceJSON renders one scenario resource entry as a JSON document.
func resourceJSON(res any) (string, error) {
	switch v := res.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return "", fmt.Errorf("resource string is not valid JSON")
		}
		return v, nil
	default:
		doc, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("convert resource to JSON: %w", err)
		}
		return string(doc), nil
	}
}
