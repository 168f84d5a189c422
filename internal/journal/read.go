package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hagoth/hagoth/internal/engine"
)

// Run is one recorded resolution run.
type Run struct {
	RunToken   string
	Query      string
	Mode       string
	Status     string // empty while the run is in flight
	Code       string
	StartedAt  string
	FinishedAt string
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Status string // exact status (SATISFIED, FAILED, INCONCLUSIVE)
	Query  string // exact canonical query text
	Limit  int    // 0 means no limit
}

// AttemptFilter narrows ReadAttempts. Zero values match everything.
type AttemptFilter struct {
	Event   string // exact event name
	RuleID  string // exact rule ID
	GoalKey string // exact canonical goal key
}

// ErrRunNotFound is returned by ReadRun for an unknown run token.
var ErrRunNotFound = fmt.Errorf("run not found")

// ReadRun returns the run header for a run token.
func (j *Journal) ReadRun(ctx context.Context, runToken string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_token, query, mode, status, code, started_at, finished_at
		FROM runs
		WHERE run_token = ?
	`, runToken)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runToken)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ListRuns returns recorded runs, newest first. Ordering is deterministic:
// started_at DESC, then run_token for ties.
func (j *Journal) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Query != "" {
		where = append(where, "query = ?")
		args = append(args, f.Query)
	}

	q := `
		SELECT run_token, query, mode, status, code, started_at, finished_at
		FROM runs
	`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, run_token COLLATE BINARY ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadAttempts returns a run's attempt trail in seq order.
func (j *Journal) ReadAttempts(ctx context.Context, runToken string, f AttemptFilter) ([]engine.Attempt, error) {
	where := []string{"run_token = ?"}
	args := []any{runToken}
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, f.Event)
	}
	if f.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, f.RuleID)
	}
	if f.GoalKey != "" {
		where = append(where, "goal_key = ?")
		args = append(args, f.GoalKey)
	}

	q := `
		SELECT seq, depth, goal, goal_key, rule_id, event, detail
		FROM attempts
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY seq ASC
	`

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []engine.Attempt{}
	for rows.Next() {
		var (
			a  engine.Attempt
			ev string
		)
		if err := rows.Scan(&a.Seq, &a.Depth, &a.Goal, &a.GoalKey, &a.RuleID, &ev, &a.Detail); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Event = engine.Event(ev)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Command is one recorded shell command execution.
type Command struct {
	Target   string
	Command  string
	ExitCode int
	RanAt    string
}

// ReadCommands returns executed commands in execution order, optionally
// filtered to one target.
func (j *Journal) ReadCommands(ctx context.Context, target string) ([]Command, error) {
	q := `
		SELECT target, command, exit_code, ran_at
		FROM commands
	`
	var args []any
	if target != "" {
		q += " WHERE target = ?"
		args = append(args, target)
	}
	q += " ORDER BY id ASC"

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	commands := []Command{}
	for rows.Next() {
		var c Command
		if err := rows.Scan(&c.Target, &c.Command, &c.ExitCode, &c.RanAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		status   sql.NullString
		code     sql.NullString
		finished sql.NullString
	)
	if err := s.Scan(&r.RunToken, &r.Query, &r.Mode, &status, &code, &r.StartedAt, &finished); err != nil {
		return Run{}, err
	}
	r.Status = status.String
	r.Code = code.String
	r.FinishedAt = finished.String
	return r, nil
}
