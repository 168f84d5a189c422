package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hagoth/hagoth/internal/engine"
	"github.com/hagoth/hagoth/internal/journal"
	"github.com/hagoth/hagoth/internal/makeset"
	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
)

// ResolveOptions holds flags shared by resolve and explain.
type ResolveOptions struct {
	*RootOptions
	RulesPath string
	Database  string
	Dir       string
	MaxSteps  int
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Resolve a query, running rebuild commands as needed",
		Long: `Resolve a query against the loaded rules.

Out-of-date targets are rebuilt by running their rule's command template.
Exit code 0 means the query was satisfied; 1 means it could not be.

Examples:
  hagoth resolve 'current(prog)' --rules ./rules
  hagoth resolve 'current(X)' --rules ./rules --db ./hagoth.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolution(opts, cmd, args[0], engine.ModeReal)
		},
	}

	addResolveFlags(cmd, opts)
	return cmd
}

// NewExplainCommand creates the explain command: a dry resolve that reports
// which commands would run without running them.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show what resolve would do, without running commands",
		Long: `Resolve a query in dry mode.

No command is executed; instead each command that real resolution would run
is reported as a planned action. A query that needs no commands at all
reports SATISFIED; one with planned actions reports INCONCLUSIVE, since
satisfaction was assumed rather than established.

Examples:
  hagoth explain 'current(prog)' --rules ./rules`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolution(opts, cmd, args[0], engine.ModeDry)
		},
	}

	addResolveFlags(cmd, opts)
	return cmd
}

func addResolveFlags(cmd *cobra.Command, opts *ResolveOptions) {
	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "path to CUE rule file or directory (required)")
	_ = cmd.MarkFlagRequired("rules")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "working directory for file tests and commands")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "rule attempt quota per resolution")
}

// ResolveReport is the output payload of resolve and explain.
type ResolveReport struct {
	RunToken string            `json:"run_token"`
	Query    string            `json:"query"`
	Mode     string            `json:"mode"`
	Status   string            `json:"status"`
	Code     string            `json:"code,omitempty"`
	Bindings map[string]string `json:"bindings,omitempty"`
	Planned  []engine.PlannedAction `json:"planned,omitempty"`
	Attempts int               `json:"attempts"`
	Trace    []engine.Attempt  `json:"trace,omitempty"`
}

func runResolution(opts *ResolveOptions, cmd *cobra.Command, queryText string, mode engine.Mode) error {
	ctx := context.Background()

	query, err := ParseQuery(queryText)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	loaded, errs := LoadRules(opts.RulesPath, LoadModeFailFast)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load rules", errs[0])
	}

	reg, err := rules.NewRegistry(loaded.Defs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid rules", err)
	}

	engineOpts := []engine.Option{engine.WithMaxSteps(opts.MaxSteps)}
	makesetOpts := []makeset.Option{makeset.WithDir(opts.Dir)}

	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		engineOpts = append(engineOpts, engine.WithSink(j))
		makesetOpts = append(makesetOpts, makeset.WithRecorder(j))
	}

	runner := makeset.ShellRunner{
		Dir:    opts.Dir,
		Stdout: cmd.ErrOrStderr(),
		Stderr: cmd.ErrOrStderr(),
	}
	currency := makeset.New(runner, loaded.Templates, makesetOpts...)

	resolver := engine.New(reg, buildBehaviors(reg, currency), engineOpts...)

	res, resErr := resolver.Resolve(ctx, query, mode)

	report := ResolveReport{
		RunToken: res.RunToken,
		Query:    term.Format(query),
		Mode:     string(mode),
		Status:   string(res.Status),
		Code:     string(res.Code),
		Bindings: formatBindings(res.Bindings),
		Planned:  res.Planned,
		Attempts: len(res.Trace),
	}
	if opts.Verbose {
		report.Trace = res.Trace
	}

	if opts.Format == "json" {
		if err := outputJSON(cmd, report); err != nil {
			return err
		}
	} else {
		outputResolveText(cmd, report, opts.Verbose)
	}

	if resErr != nil {
		return WrapExitError(ExitFailure, "resolution aborted", resErr)
	}
	if res.Status == engine.StatusFailed {
		return NewExitError(ExitFailure, fmt.Sprintf("query not satisfied: %s", report.Code))
	}
	return nil
}

// buildBehaviors maps every rule type in the registry to its behavior: the
// file-currency ruleset for current/1, pure facts for everything else.
func buildBehaviors(reg *rules.Registry, currency *makeset.FileCurrency) map[rules.TypeKey]rules.Behavior {
	behaviors := make(map[rules.TypeKey]rules.Behavior)
	for _, key := range reg.Types() {
		if key == makeset.TypeKey {
			behaviors[key] = currency
			continue
		}
		behaviors[key] = rules.FactBehavior{}
	}
	return behaviors
}

func formatBindings(bindings map[string]term.Term) map[string]string {
	if len(bindings) == 0 {
		return nil
	}
	out := make(map[string]string, len(bindings))
	for name, value := range bindings {
		out[name] = term.Format(value)
	}
	return out
}

func outputResolveText(cmd *cobra.Command, report ResolveReport, verbose bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Query:  %s\n", report.Query)
	fmt.Fprintf(w, "Status: %s", report.Status)
	if report.Code != "" {
		fmt.Fprintf(w, " (%s)", report.Code)
	}
	fmt.Fprintln(w)

	if len(report.Bindings) > 0 {
		fmt.Fprintln(w, "Bindings:")
		names := make([]string, 0, len(report.Bindings))
		for name := range report.Bindings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s = %s\n", name, report.Bindings[name])
		}
	}

	if len(report.Planned) > 0 {
		fmt.Fprintln(w, "Planned:")
		for _, p := range report.Planned {
			fmt.Fprintf(w, "  [%s] %s\n", p.RuleID, p.Consequent)
		}
	}

	if verbose {
		fmt.Fprintf(w, "Attempts: %d (run %s)\n", report.Attempts, report.RunToken)
		for _, a := range report.Trace {
			fmt.Fprintf(w, "  [%d] %*s%s %s", a.Seq, a.Depth*2, "", a.Event, a.Goal)
			if a.RuleID != "" {
				fmt.Fprintf(w, " rule=%s", a.RuleID)
			}
			if a.Detail != "" {
				fmt.Fprintf(w, " (%s)", a.Detail)
			}
			fmt.Fprintln(w)
		}
	}
}
