package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hagoth/hagoth/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Status   string
	Event    string
	RuleID   string
	Limit    int
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded resolution runs",
		Long: `Read the resolution journal.

Without --run, lists recorded runs (newest first). With --run, prints the
full attempt trail of one run: every rule tried for every goal and where
each attempt diverged.

Examples:
  hagoth trace --db ./hagoth.db
  hagoth trace --db ./hagoth.db --status FAILED
  hagoth trace --db ./hagoth.db --run 7f3b... --event unify_failed`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to show in full")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter runs by status")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter attempts by event")
	cmd.Flags().StringVar(&opts.RuleID, "rule", "", "filter attempts by rule ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "max runs to list")

	return cmd
}

// RunTrace is the JSON payload for one run's trail.
type RunTrace struct {
	Run      journal.Run  `json:"run"`
	Attempts []attemptRow `json:"attempts"`
}

type attemptRow struct {
	Seq    int64  `json:"seq"`
	Depth  int    `json:"depth"`
	Goal   string `json:"goal"`
	RuleID string `json:"rule_id,omitempty"`
	Event  string `json:"event"`
	Detail string `json:"detail,omitempty"`
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.RunToken == "" {
		return listRuns(ctx, opts, cmd, j)
	}
	return showRun(ctx, opts, cmd, j)
}

func listRuns(ctx context.Context, opts *TraceOptions, cmd *cobra.Command, j *journal.Journal) error {
	runs, err := j.ListRuns(ctx, journal.RunFilter{Status: opts.Status, Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd, runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := r.Status
		if status == "" {
			status = "IN_FLIGHT"
		}
		fmt.Fprintf(w, "%s  %-12s %-6s %s", r.RunToken, status, r.Mode, r.Query)
		if r.Code != "" {
			fmt.Fprintf(w, " (%s)", r.Code)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func showRun(ctx context.Context, opts *TraceOptions, cmd *cobra.Command, j *journal.Journal) error {
	run, err := j.ReadRun(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	attempts, err := j.ReadAttempts(ctx, opts.RunToken, journal.AttemptFilter{
		Event:  opts.Event,
		RuleID: opts.RuleID,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read attempts", err)
	}

	rows := make([]attemptRow, len(attempts))
	for i, a := range attempts {
		rows[i] = attemptRow{
			Seq:    a.Seq,
			Depth:  a.Depth,
			Goal:   a.Goal,
			RuleID: a.RuleID,
			Event:  string(a.Event),
			Detail: a.Detail,
		}
	}

	if opts.Format == "json" {
		return outputJSON(cmd, RunTrace{Run: run, Attempts: rows})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:    %s\n", run.RunToken)
	fmt.Fprintf(w, "Query:  %s (%s)\n", run.Query, run.Mode)
	status := run.Status
	if status == "" {
		status = "IN_FLIGHT"
	}
	fmt.Fprintf(w, "Status: %s", status)
	if run.Code != "" {
		fmt.Fprintf(w, " (%s)", run.Code)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if len(rows) == 0 {
		fmt.Fprintln(w, "(no attempts)")
		return nil
	}
	for _, a := range rows {
		fmt.Fprintf(w, "[%d] %*s%s %s", a.Seq, a.Depth*2, "", a.Event, a.Goal)
		if a.RuleID != "" {
			fmt.Fprintf(w, " rule=%s", a.RuleID)
		}
		if a.Detail != "" {
			fmt.Fprintf(w, " (%s)", a.Detail)
		}
		fmt.Fprintln(w)
	}
	return nil
}
