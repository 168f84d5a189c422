// Package harness runs declarative resolution scenarios for conformance
// testing.
//
// A scenario is a YAML document describing a small world (files with
// relative ages, inline CUE rules), one query, and the expected outcome.
// The harness materializes the world in a scratch directory, resolves the
// query through the real engine with deterministic run tokens, and checks
// the result against the scenario's expectations. Golden trace snapshots
// (see golden.go) pin the full attempt trail byte for byte.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one declarative conformance case.
type Scenario struct {
	// Name identifies the scenario in failures and golden file names.
	Name string `yaml:"name"`

	// RunToken is the fixed run token for this scenario. Defaults to
	// "scenario-run" so golden snapshots never churn.
	RunToken string `yaml:"run_token"`

	// Files are written into the scratch directory before resolving.
	Files []FileSpec `yaml:"files"`

	// Rules is inline CUE source in the standard rule file format.
	Rules string `yaml:"rules"`

	// Query is the goal to resolve, in query syntax (current(prog)).
	Query string `yaml:"query"`

	// Mode is "real" or "dry". Defaults to "real".
	Mode string `yaml:"mode"`

	// Expect describes the outcome the scenario requires.
	Expect Expect `yaml:"expect"`
}

// FileSpec describes one fixture file.
type FileSpec struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`

	// AgeSeconds backdates the file's mtime, so scenarios can stage
	// out-of-date targets without sleeping.
	AgeSeconds int `yaml:"age_seconds"`
}

// Expect lists the assertions evaluated after the resolution. Empty fields
// assert nothing.
type Expect struct {
	Status   string            `yaml:"status"`
	Code     string            `yaml:"code"`
	Bindings map[string]string `yaml:"bindings"`
	Planned  []PlannedExpect   `yaml:"planned"`

	// Commands is the expected sequence of rebuilt targets, in execution
	// order.
	Commands []string `yaml:"commands"`
}

// PlannedExpect is one expected dry-mode planned action.
type PlannedExpect struct {
	Rule string `yaml:"rule"`
	Goal string `yaml:"goal"`
}

// ParseScenario decodes a YAML scenario and applies defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario has no name")
	}
	if sc.Query == "" {
		return nil, fmt.Errorf("scenario %s has no query", sc.Name)
	}
	if sc.Rules == "" {
		return nil, fmt.Errorf("scenario %s has no rules", sc.Name)
	}
	if sc.RunToken == "" {
		sc.RunToken = "scenario-run"
	}
	if sc.Mode == "" {
		sc.Mode = "real"
	}
	return &sc, nil
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}
