package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rebuildRules = `
rules: [
	{
		id: "obj"
		consequent: {pred: "current", args: ["main.o"]}
		antecedents: [{pred: "current", args: ["main.c"]}]
	},
	{
		id: "src"
		consequent: {pred: "current", args: ["main.c"]}
	},
]

commands: [
	{pattern: "{name}.o", command: "cat {deps} > {target}"},
]
`

func TestRunRebuildChain(t *testing.T) {
	sc := &Scenario{
		Name:     "rebuild",
		RunToken: "run-rebuild",
		Files:    []FileSpec{{Path: "main.c", Content: "main\n", AgeSeconds: 60}},
		Rules:    rebuildRules,
		Query:    "current(main.o)",
		Mode:     "real",
		Expect: Expect{
			Status:   "SATISFIED",
			Commands: []string{"main.o"},
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "failures: %v", res.Failures)
	require.Len(t, res.Commands, 1)
	assert.Equal(t, "cat main.c > main.o", res.Commands[0].Command)
	assert.Equal(t, 0, res.Commands[0].ExitCode)
}

func TestRunUpToDateRunsNothing(t *testing.T) {
	sc := &Scenario{
		Name: "up-to-date",
		Files: []FileSpec{
			{Path: "main.c", Content: "main\n", AgeSeconds: 120},
			{Path: "main.o", Content: "main\n", AgeSeconds: 60},
		},
		Rules: rebuildRules,
		Query: "current(main.o)",
		Mode:  "real",
		Expect: Expect{
			Status:   "SATISFIED",
			Commands: []string{},
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "failures: %v", res.Failures)
	assert.Empty(t, res.Commands)
}

func TestRunBindsQueryVariables(t *testing.T) {
	sc := &Scenario{
		Name:     "bindings",
		RunToken: "run-bindings",
		Rules:    `rules: [{id: "have", consequent: {pred: "owns", args: ["prog"]}}]`,
		Query:    "owns(X)",
		Mode:     "real",
		Expect: Expect{
			Status:   "SATISFIED",
			Bindings: map[string]string{"X": "prog"},
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "failures: %v", res.Failures)
}

func TestRunReportsExpectationFailures(t *testing.T) {
	sc := &Scenario{
		Name:     "mismatch",
		RunToken: "run-mismatch",
		Rules:    `rules: [{id: "have", consequent: {pred: "owns", args: ["prog"]}}]`,
		Query:    "owns(prog)",
		Mode:     "real",
		Expect: Expect{
			Status:   "FAILED",
			Commands: []string{"prog"},
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, res.Passed())
	assert.Len(t, res.Failures, 2)
	assert.Contains(t, res.Failures[0], "status: got SATISFIED, want FAILED")
}

func TestRunFailedQueryIsAResult(t *testing.T) {
	sc := &Scenario{
		Name:     "exhausted",
		RunToken: "run-exhausted",
		Rules:    `rules: [{id: "have", consequent: {pred: "owns", args: ["prog"]}}]`,
		Query:    "owns(other)",
		Mode:     "real",
		Expect: Expect{
			Status: "FAILED",
			Code:   "RULE_EXHAUSTED",
		},
	}

	res, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "failures: %v", res.Failures)
}

func TestRunInKeepsProducedFiles(t *testing.T) {
	dir := t.TempDir()
	sc := &Scenario{
		Name:     "keep-files",
		RunToken: "run-keep",
		Files:    []FileSpec{{Path: "main.c", Content: "main\n", AgeSeconds: 60}},
		Rules:    rebuildRules,
		Query:    "current(main.o)",
		Mode:     "real",
	}

	res, err := RunIn(sc, dir)
	require.NoError(t, err)
	assert.True(t, res.Passed())

	built, err := os.ReadFile(filepath.Join(dir, "main.o"))
	require.NoError(t, err)
	assert.Equal(t, "main\n", string(built))
}

func TestLoadScenarioFile(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "rebuild.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "rebuild-chain", sc.Name)
	assert.Equal(t, "rebuild-run", sc.RunToken)

	res, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "failures: %v", res.Failures)
}

func TestParseScenarioDefaults(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: defaults
rules: "rules: [{id: \"r\", consequent: {pred: \"p\", args: [\"a\"]}}]"
query: p(a)
`))
	require.NoError(t, err)
	assert.Equal(t, "scenario-run", sc.RunToken)
	assert.Equal(t, "real", sc.Mode)
}

func TestParseScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"not yaml", "{{"},
		{"missing name", "query: p(a)\nrules: x"},
		{"missing query", "name: x\nrules: x"},
		{"missing rules", "name: x\nquery: p(a)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.src))
			assert.Error(t, err)
		})
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	sc := &Scenario{
		Name:  "bad-mode",
		Rules: `rules: [{id: "r", consequent: {pred: "p", args: ["a"]}}]`,
		Query: "p(a)",
		Mode:  "wet",
	}
	_, err := Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestGoldenFactSatisfied(t *testing.T) {
	sc := &Scenario{
		Name:     "fact-satisfied",
		RunToken: "golden-run",
		Rules:    `rules: [{id: "boot", consequent: {pred: "ready", args: ["system"]}}]`,
		Query:    "ready(system)",
		Mode:     "real",
		Expect:   Expect{Status: "SATISFIED"},
	}
	RunWithGolden(t, sc)
}

func TestGoldenDryPlan(t *testing.T) {
	sc := &Scenario{
		Name:     "dry-plan",
		RunToken: "golden-dry",
		Rules: `
rules: [
	{id: "gen", consequent: {pred: "current", args: ["out.txt"]}},
]

commands: [
	{pattern: "out.txt", command: "touch {target}"},
]
`,
		Query: "current(out.txt)",
		Mode:  "dry",
		Expect: Expect{
			Status:  "INCONCLUSIVE",
			Planned: []PlannedExpect{{Rule: "gen", Goal: "current(out.txt)"}},
		},
	}
	res := RunWithGolden(t, sc)
	assert.Empty(t, res.Commands, "dry mode must not run commands")
}
