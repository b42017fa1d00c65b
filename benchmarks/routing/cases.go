// ABOUTME: Routing benchmark test cases: expected agent, category, difficulty and context
// ABOUTME: Cases load from JSON or YAML files; a default Spanish set is embedded
package routing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harper/tutor/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed cases.yaml
var defaultCases []byte

// TestCase is one routing expectation
type TestCase struct {
	ID            string        `json:"id" yaml:"id"`
	Query         string        `json:"consulta" yaml:"consulta"`
	ExpectedAgent models.Agent  `json:"expected_agent" yaml:"expected_agent"`
	Difficulty    string        `json:"difficulty" yaml:"difficulty"`
	Category      string        `json:"category" yaml:"category"`
	Context       *ContextState `json:"context_state,omitempty" yaml:"context_state,omitempty"`
}

// ContextState seeds the session before the query is routed
type ContextState struct {
	LastAgent models.Agent `json:"last_agent,omitempty" yaml:"last_agent,omitempty"`
	LastTopic string       `json:"last_topic,omitempty" yaml:"last_topic,omitempty"`
	// TurnsAgo is how many user turns have passed since LastAgent answered
	TurnsAgo int `json:"turns_ago,omitempty" yaml:"turns_ago,omitempty"`
}

type caseFile struct {
	TestCases []TestCase `json:"test_cases" yaml:"test_cases"`
}

// DefaultCases returns the embedded benchmark set
func DefaultCases() ([]TestCase, error) {
	return parseCases(defaultCases, "yaml")
}

// LoadCases reads test cases from a .json, .yaml or .yml file
func LoadCases(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test cases: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseCases(data, "json")
	case ".yaml", ".yml":
		return parseCases(data, "yaml")
	default:
		return nil, fmt.Errorf("unsupported test case format %q (use .json or .yaml)", filepath.Ext(path))
	}
}

func parseCases(data []byte, format string) ([]TestCase, error) {
	var f caseFile
	var err error
	if format == "json" {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse test cases: %w", err)
	}

	seen := make(map[string]bool, len(f.TestCases))
	for i, tc := range f.TestCases {
		if err := tc.validate(); err != nil {
			return nil, fmt.Errorf("test case %d: %w", i+1, err)
		}
		if seen[tc.ID] {
			return nil, fmt.Errorf("duplicate test case id %q", tc.ID)
		}
		seen[tc.ID] = true
	}
	return f.TestCases, nil
}

func (tc TestCase) validate() error {
	if tc.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(tc.Query) == "" {
		return fmt.Errorf("%s: consulta is required", tc.ID)
	}
	if !tc.ExpectedAgent.IsResponder() {
		return fmt.Errorf("%s: expected_agent %q is not a responder", tc.ID, tc.ExpectedAgent)
	}
	if tc.Context != nil && tc.Context.LastAgent != models.AgentNone && !tc.Context.LastAgent.IsResponder() {
		return fmt.Errorf("%s: context last_agent %q is not a responder", tc.ID, tc.Context.LastAgent)
	}
	return nil
}

// Filter keeps the cases of one category; an empty category keeps all
func Filter(cases []TestCase, category string) []TestCase {
	if category == "" {
		return cases
	}
	var out []TestCase
	for _, tc := range cases {
		if strings.EqualFold(tc.Category, category) {
			out = append(out, tc)
		}
	}
	return out
}
