package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/hagoth/hagoth/internal/cli"
	"github.com/hagoth/hagoth/internal/compiler"
	"github.com/hagoth/hagoth/internal/engine"
	"github.com/hagoth/hagoth/internal/makeset"
	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
	"github.com/hagoth/hagoth/internal/testutil"
)

// CommandRecord is one command the scenario's resolution executed.
type CommandRecord struct {
	Target   string `json:"target"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
}

// Result is the outcome of running one scenario. Failures collects every
// expectation that did not hold; an empty list means the scenario passed.
type Result struct {
	RunToken string
	Status   engine.Status
	Code     engine.ErrorCode
	Bindings map[string]string
	Planned  []engine.PlannedAction
	Commands []CommandRecord
	Trace    []engine.Attempt
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

// commandLog records executed commands in order. It implements
// makeset.Recorder.
type commandLog struct {
	records []CommandRecord
}

func (l *commandLog) CommandRan(_ context.Context, target, command string, exitCode int) error {
	l.records = append(l.records, CommandRecord{Target: target, Command: command, ExitCode: exitCode})
	return nil
}

// Run executes a scenario in a fresh scratch directory.
//
// A fatal resolution outcome (command failure, missing behavior) is a
// legitimate scenario result, reported through Status and Code; the returned
// error covers only harness infrastructure problems such as unparseable
// rules or fixture I/O.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "hagoth-harness-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)
	return RunIn(scenario, dir)
}

// RunIn executes a scenario against an existing directory. Callers that
// need to inspect the produced files afterwards use this directly.
func RunIn(scenario *Scenario, dir string) (*Result, error) {
	if err := writeFixtures(scenario.Files, dir); err != nil {
		return nil, err
	}

	mode, err := scenarioMode(scenario.Mode)
	if err != nil {
		return nil, err
	}

	query, err := cli.ParseQuery(scenario.Query)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	cuectx := cuecontext.New()
	v := cuectx.CompileString(scenario.Rules, cue.Filename(scenario.Name+".cue"))
	file, err := compiler.Compile(v)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	reg, err := rules.NewRegistry(file.Defs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	log := &commandLog{}
	runner := makeset.ShellRunner{Dir: dir, Stdout: io.Discard, Stderr: io.Discard}
	currency := makeset.New(runner, file.Templates,
		makeset.WithDir(dir), makeset.WithRecorder(log))

	behaviors := make(map[rules.TypeKey]rules.Behavior)
	for _, key := range reg.Types() {
		if key == makeset.TypeKey {
			behaviors[key] = currency
			continue
		}
		behaviors[key] = rules.FactBehavior{}
	}

	resolver := engine.New(reg, behaviors,
		engine.WithRunTokens(testutil.NewFixedRunGenerator(scenario.RunToken)))

	res, _ := resolver.Resolve(context.Background(), query, mode)

	result := &Result{
		RunToken: res.RunToken,
		Status:   res.Status,
		Code:     res.Code,
		Bindings: formatBindings(res.Bindings),
		Planned:  res.Planned,
		Commands: log.records,
		Trace:    res.Trace,
	}
	result.Failures = checkExpectations(result, scenario.Expect)
	return result, nil
}

func writeFixtures(files []FileSpec, dir string) error {
	now := time.Now()
	for _, f := range files {
		path := filepath.Join(dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("fixture %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("fixture %s: %w", f.Path, err)
		}
		if f.AgeSeconds > 0 {
			mtime := now.Add(-time.Duration(f.AgeSeconds) * time.Second)
			if err := os.Chtimes(path, mtime, mtime); err != nil {
				return fmt.Errorf("fixture %s: %w", f.Path, err)
			}
		}
	}
	return nil
}

func scenarioMode(mode string) (engine.Mode, error) {
	switch mode {
	case "real":
		return engine.ModeReal, nil
	case "dry":
		return engine.ModeDry, nil
	default:
		return "", fmt.Errorf("unknown mode %q", mode)
	}
}

func formatBindings(bindings map[string]term.Term) map[string]string {
	out := make(map[string]string, len(bindings))
	for name, value := range bindings {
		out[name] = term.Format(value)
	}
	return out
}

// checkExpectations evaluates every assertion the scenario declares and
// returns the mismatches.
func checkExpectations(res *Result, want Expect) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if want.Status != "" && string(res.Status) != want.Status {
		fail("status: got %s, want %s", res.Status, want.Status)
	}
	if want.Code != "" && string(res.Code) != want.Code {
		fail("code: got %s, want %s", res.Code, want.Code)
	}

	for name, value := range want.Bindings {
		got, ok := res.Bindings[name]
		if !ok {
			fail("binding %s: unbound, want %s", name, value)
			continue
		}
		if got != value {
			fail("binding %s: got %s, want %s", name, got, value)
		}
	}

	if want.Planned != nil {
		if len(res.Planned) != len(want.Planned) {
			fail("planned: got %d action(s), want %d", len(res.Planned), len(want.Planned))
		} else {
			for i, p := range want.Planned {
				got := res.Planned[i]
				if got.RuleID != p.Rule || got.Consequent != p.Goal {
					fail("planned[%d]: got [%s] %s, want [%s] %s",
						i, got.RuleID, got.Consequent, p.Rule, p.Goal)
				}
			}
		}
	}

	if want.Commands != nil {
		if len(res.Commands) != len(want.Commands) {
			fail("commands: got %d, want %d", len(res.Commands), len(want.Commands))
		} else {
			for i, target := range want.Commands {
				if res.Commands[i].Target != target {
					fail("commands[%d]: got %s, want %s", i, res.Commands[i].Target, target)
				}
			}
		}
	}

	return failures
}
