package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagoth/hagoth/internal/journal"
)

// ruleFileSrc builds prog from two object files, compiles objects from
// sources, and treats existing source files as current. The "compiler" and
// "linker" are cat, so the pipeline runs anywhere.
const ruleFileSrc = `
rules: [
	{
		id: "link"
		consequent: {pred: "current", args: ["prog"]}
		antecedents: [
			{pred: "current", args: ["main.o"]},
			{pred: "current", args: ["util.o"]},
		]
	},
	{
		id: "main.o"
		consequent: {pred: "current", args: ["main.o"]}
		antecedents: [{pred: "current", args: ["main.c"]}]
	},
	{
		id: "util.o"
		consequent: {pred: "current", args: ["util.o"]}
		antecedents: [{pred: "current", args: ["util.c"]}]
	},
	{
		id: "sources"
		consequent: {pred: "current", args: [{var: "Src", pattern: "{name}.c"}]}
	},
]

commands: [
	{pattern: "{name}.o", command: "cat {deps} > {target}"},
	{pattern: "prog", command: "cat {deps} > {target}"},
]
`

// workspace writes the rule file and source files into a temp dir and
// returns (dir, rulesPath).
func workspace(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.cue")
	require.NoError(t, os.WriteFile(rulesPath, []byte(ruleFileSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.c"), []byte("util\n"), 0o644))
	return dir, rulesPath
}

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveBuildsProgram(t *testing.T) {
	dir, rulesPath := workspace(t)
	dbPath := filepath.Join(dir, "hagoth.db")

	out, err := execute(t, "resolve", "current(prog)",
		"--rules", rulesPath, "--dir", dir, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: SATISFIED")

	built, err := os.ReadFile(filepath.Join(dir, "prog"))
	require.NoError(t, err)
	assert.Equal(t, "main\nutil\n", string(built))

	// Every executed command was journaled.
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()
	commands, err := j.ReadCommands(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, commands, 3)
	assert.Equal(t, "main.o", commands[0].Target)
	assert.Equal(t, "util.o", commands[1].Target)
	assert.Equal(t, "prog", commands[2].Target)
}

func TestResolveSecondRunRebuildsNothing(t *testing.T) {
	dir, rulesPath := workspace(t)
	dbPath := filepath.Join(dir, "hagoth.db")

	_, err := execute(t, "resolve", "current(prog)",
		"--rules", rulesPath, "--dir", dir, "--db", dbPath)
	require.NoError(t, err)

	_, err = execute(t, "resolve", "current(prog)",
		"--rules", rulesPath, "--dir", dir, "--db", dbPath)
	require.NoError(t, err)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()
	commands, err := j.ReadCommands(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, commands, 3, "an up-to-date tree runs no commands")
}

func TestExplainPlansWithoutBuilding(t *testing.T) {
	dir, rulesPath := workspace(t)

	out, err := execute(t, "explain", "current(prog)", "--rules", rulesPath, "--dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Status: INCONCLUSIVE")
	assert.Contains(t, out, "[main.o] current(main.o)")
	assert.Contains(t, out, "[link] current(prog)")

	_, statErr := os.Stat(filepath.Join(dir, "prog"))
	assert.True(t, os.IsNotExist(statErr), "explain must not build anything")
}

func TestResolveFailedQueryExitsNonZero(t *testing.T) {
	dir, rulesPath := workspace(t)

	out, err := execute(t, "resolve", "current(missing.target)",
		"--rules", rulesPath, "--dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Status: FAILED (RULE_EXHAUSTED)")
}

func TestResolveBadQueryIsCommandError(t *testing.T) {
	_, rulesPath := workspace(t)

	_, err := execute(t, "resolve", "current(prog", "--rules", rulesPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveMissingRulesPath(t *testing.T) {
	_, err := execute(t, "resolve", "current(prog)", "--rules", "/does/not/exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateOK(t *testing.T) {
	_, rulesPath := workspace(t)

	out, err := execute(t, "validate", "--rules", rulesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 4 rule(s) in 1 file(s)")
	assert.Contains(t, out, "current/1")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	// Two bad files: validate reports both instead of stopping at the first.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"),
		[]byte(`rules: [{id: "x"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"),
		[]byte(`rules: [{consequent: "not-a-pred"}]`), 0o644))

	out, err := execute(t, "validate", "--rules", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "2 error(s)")
	assert.Contains(t, out, "consequent is required")
	assert.Contains(t, out, "must be a predicate")
}

func TestValidateDuplicateRuleIDs(t *testing.T) {
	dir := t.TempDir()
	src := `
rules: [
	{id: "dup", consequent: {pred: "p", args: ["a"]}},
	{id: "dup", consequent: {pred: "p", args: ["b"]}},
]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(src), 0o644))

	out, err := execute(t, "validate", "--rules", dir)
	require.Error(t, err)
	assert.Contains(t, out, "duplicate rule ID")
}

func TestTraceShowsRecordedRun(t *testing.T) {
	dir, rulesPath := workspace(t)
	dbPath := filepath.Join(dir, "hagoth.db")

	_, err := execute(t, "resolve", "current(prog)",
		"--rules", rulesPath, "--dir", dir, "--db", dbPath)
	require.NoError(t, err)

	// Find the run token through the journal API.
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	runs, err := j.ListRuns(context.Background(), journal.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	token := runs[0].RunToken
	require.NoError(t, j.Close())

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, token)
	assert.Contains(t, out, "SATISFIED")

	out, err = execute(t, "trace", "--db", dbPath, "--run", token)
	require.NoError(t, err)
	assert.Contains(t, out, "Query:  current(prog)")
	assert.Contains(t, out, "commands_run current(main.o)")
	assert.Contains(t, out, "satisfied current(prog)")
}

func TestTraceUnknownRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hagoth.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = execute(t, "trace", "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormatFlag(t *testing.T) {
	_, err := execute(t, "validate", "--rules", ".", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestResolveJSONOutput(t *testing.T) {
	dir, rulesPath := workspace(t)

	out, err := execute(t, "resolve", "current(prog)",
		"--rules", rulesPath, "--dir", dir, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"query": "current(prog)"`)
	assert.Contains(t, out, `"status": "SATISFIED"`)
}
