package makeset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
)

// TypeKey is the rule type this ruleset serves.
var TypeKey = rules.TypeKey{Name: "current", Arity: 1}

// Recorder observes executed commands. The journal implements it. Recorder
// errors are logged and ignored; auditing must never change build outcomes.
type Recorder interface {
	CommandRan(ctx context.Context, target, command string, exitCode int) error
}

// FileCurrency is the current/1 behavior: a target is current when its file
// exists and is no older than every file its antecedents name.
type FileCurrency struct {
	dir       string
	runner    CommandRunner
	templates []Template
	recorder  Recorder
}

// Option configures a FileCurrency.
type Option func(*FileCurrency)

// WithDir resolves relative target and dependency paths against dir.
func WithDir(dir string) Option {
	return func(f *FileCurrency) { f.dir = dir }
}

// WithRecorder records every executed command.
func WithRecorder(r Recorder) Option {
	return func(f *FileCurrency) { f.recorder = r }
}

// New creates the behavior. Templates are consulted in order; the first one
// whose pattern matches the target supplies the rebuild command.
func New(runner CommandRunner, templates []Template, opts ...Option) *FileCurrency {
	f := &FileCurrency{
		runner:    runner,
		templates: append([]Template(nil), templates...),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Test reports whether the target file is current: it exists, and no
// dependency file is newer.
func (f *FileCurrency) Test(_ context.Context, r rules.Resolved) (bool, error) {
	target, err := targetOf(r)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(f.path(target))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat target %s: %w", target, err)
	}

	for _, dep := range dependencies(r) {
		depInfo, err := os.Stat(f.path(dep))
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("stat dependency %s: %w", dep, err)
		}
		if depInfo.ModTime().After(info.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// Commands rebuilds the target with the first matching command template.
func (f *FileCurrency) Commands(ctx context.Context, r rules.Resolved) error {
	target, err := targetOf(r)
	if err != nil {
		return err
	}
	deps := strings.Join(dependencies(r), " ")

	for _, tmpl := range f.templates {
		if _, ok := tmpl.pattern.Match(target); !ok {
			continue
		}
		command, err := tmpl.expand(target, deps)
		if err != nil {
			return err
		}

		code, runErr := f.runner.Run(ctx, command)
		f.record(ctx, target, command, code)
		if runErr != nil {
			return fmt.Errorf("command for %s exited %d: %w", target, code, runErr)
		}
		slog.Info("rebuilt target", "target", target, "command", command)
		return nil
	}
	return fmt.Errorf("no command template matches target %s", target)
}

func (f *FileCurrency) record(ctx context.Context, target, command string, code int) {
	if f.recorder == nil {
		return
	}
	if err := f.recorder.CommandRan(ctx, target, command, code); err != nil {
		slog.Warn("command record failed", "target", target, "err", err)
	}
}

func (f *FileCurrency) path(name string) string {
	if f.dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.dir, name)
}

// targetOf extracts the target file name from the resolved consequent.
func targetOf(r rules.Resolved) (string, error) {
	if len(r.Consequent.Args) != 1 {
		return "", fmt.Errorf("rule %s: current takes exactly one argument", r.RuleID)
	}
	a, ok := r.Consequent.Args[0].(term.Atom)
	if !ok {
		return "", fmt.Errorf("rule %s: target %s is not ground", r.RuleID, term.Format(r.Consequent.Args[0]))
	}
	return string(a), nil
}

// dependencies lists the files named by current/1 antecedents, in order.
// Antecedents of other types (pure facts) carry no file to compare against.
func dependencies(r rules.Resolved) []string {
	var deps []string
	for _, ant := range r.Antecedents {
		c, ok := ant.(term.Compound)
		if !ok || c.Functor != TypeKey.Name || c.Arity() != 1 {
			continue
		}
		if a, ok := c.Args[0].(term.Atom); ok {
			deps = append(deps, string(a))
		}
	}
	return deps
}
