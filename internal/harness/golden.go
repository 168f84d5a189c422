package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hagoth/hagoth/internal/engine"
)

// TraceSnapshot is the golden-file payload for one scenario run. Bindings
// are deliberately absent: map iteration order would churn the snapshot, and
// expectation checks already cover them.
type TraceSnapshot struct {
	Scenario string                 `json:"scenario"`
	RunToken string                 `json:"run_token"`
	Query    string                 `json:"query"`
	Mode     string                 `json:"mode"`
	Status   string                 `json:"status"`
	Code     string                 `json:"code,omitempty"`
	Planned  []engine.PlannedAction `json:"planned,omitempty"`
	Commands []CommandRecord        `json:"commands,omitempty"`
	Trace    []engine.Attempt       `json:"trace"`
}

// RunWithGolden runs a scenario, checks its expectations, and compares the
// full trace snapshot against testdata/golden/<name>.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	res, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, f := range res.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, f)
	}

	AssertGolden(t, scenario, res)
	return res
}

// AssertGolden compares an already-obtained result against the scenario's
// golden trace.
func AssertGolden(t *testing.T, scenario *Scenario, res *Result) {
	t.Helper()

	snapshot := TraceSnapshot{
		Scenario: scenario.Name,
		RunToken: res.RunToken,
		Query:    scenario.Query,
		Mode:     scenario.Mode,
		Status:   string(res.Status),
		Code:     string(res.Code),
		Planned:  res.Planned,
		Commands: res.Commands,
		Trace:    res.Trace,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("scenario %s: marshal snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
}
