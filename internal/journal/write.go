package journal

import (
	"context"
	"fmt"

	"github.com/hagoth/hagoth/internal/engine"
)

// RunStarted inserts the run header. Idempotent: a duplicate run token is
// silently ignored so a re-reporting process cannot corrupt the record.
func (j *Journal) RunStarted(ctx context.Context, run engine.RunInfo) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (run_token, query, mode)
		VALUES (?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`,
		run.RunToken,
		run.Query,
		string(run.Mode),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// AttemptRecorded appends one attempt to the run's trail. Idempotent on
// (run_token, seq): the logical clock guarantees each attempt a unique seq,
// so a duplicate report is the same attempt and is silently ignored.
func (j *Journal) AttemptRecorded(ctx context.Context, runToken string, a engine.Attempt) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attempts (run_token, seq, depth, goal, goal_key, rule_id, event, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		runToken,
		a.Seq,
		a.Depth,
		a.Goal,
		a.GoalKey,
		a.RuleID,
		string(a.Event),
		a.Detail,
	)
	if err != nil {
		return fmt.Errorf("write attempt: %w", err)
	}
	return nil
}

// CommandRan records one executed shell command. Implements the makeset
// recorder so every side effect a resolution caused is auditable.
func (j *Journal) CommandRan(ctx context.Context, target, command string, exitCode int) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO commands (target, command, exit_code)
		VALUES (?, ?, ?)
	`,
		target,
		command,
		exitCode,
	)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// RunFinished stamps the run with its outcome. Only the first finish wins;
// a run that already has a status is left untouched.
func (j *Journal) RunFinished(ctx context.Context, runToken string, status engine.Status, code engine.ErrorCode) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, code = ?, finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE run_token = ? AND status IS NULL
	`,
		string(status),
		string(code),
		runToken,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
