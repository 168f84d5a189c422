package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hagoth/hagoth/internal/engine"
	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j2.Close())
}

func TestWriteAndReadRun(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run := engine.RunInfo{RunToken: "run-1", Query: "current(prog)", Mode: engine.ModeReal}
	require.NoError(t, j.RunStarted(ctx, run))

	got, err := j.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "current(prog)", got.Query)
	assert.Equal(t, "real", got.Mode)
	assert.Empty(t, got.Status, "status is unset while the run is in flight")
	assert.NotEmpty(t, got.StartedAt)
	assert.Empty(t, got.FinishedAt)

	require.NoError(t, j.RunFinished(ctx, "run-1", engine.StatusSatisfied, ""))

	got, err = j.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "SATISFIED", got.Status)
	assert.NotEmpty(t, got.FinishedAt)
}

func TestReadRunNotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.ReadRun(context.Background(), "nope")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestDuplicateWritesAreIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	run := engine.RunInfo{RunToken: "run-1", Query: "current(prog)", Mode: engine.ModeReal}
	require.NoError(t, j.RunStarted(ctx, run))
	require.NoError(t, j.RunStarted(ctx, run))

	a := engine.Attempt{Seq: 1, Goal: "current(prog)", GoalKey: "abc", Event: engine.EventMatched}
	require.NoError(t, j.AttemptRecorded(ctx, "run-1", a))
	require.NoError(t, j.AttemptRecorded(ctx, "run-1", a))

	attempts, err := j.ReadAttempts(ctx, "run-1", AttemptFilter{})
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	// The first finish wins; a second finish with a different status is a
	// no-op.
	require.NoError(t, j.RunFinished(ctx, "run-1", engine.StatusSatisfied, ""))
	require.NoError(t, j.RunFinished(ctx, "run-1", engine.StatusFailed, engine.ErrCodeCommandFailed))

	got, err := j.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "SATISFIED", got.Status)
}

func TestReadAttemptsOrderAndFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RunStarted(ctx, engine.RunInfo{RunToken: "run-1", Query: "q", Mode: engine.ModeReal}))

	in := []engine.Attempt{
		{Seq: 1, Depth: 0, Goal: "current(prog)", GoalKey: "k1", RuleID: "link", Event: engine.EventMatched},
		{Seq: 2, Depth: 1, Goal: "current(main.o)", GoalKey: "k2", RuleID: "link", Event: engine.EventUnifyFailed},
		{Seq: 3, Depth: 1, Goal: "current(main.o)", GoalKey: "k2", RuleID: "compile", Event: engine.EventMatched},
	}
	// Insert out of order; reads come back in seq order.
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, j.AttemptRecorded(ctx, "run-1", in[i]))
	}

	all, err := j.ReadAttempts(ctx, "run-1", AttemptFilter{})
	require.NoError(t, err)
	require.Equal(t, in, all)

	matched, err := j.ReadAttempts(ctx, "run-1", AttemptFilter{Event: string(engine.EventMatched)})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, int64(1), matched[0].Seq)
	assert.Equal(t, int64(3), matched[1].Seq)

	byGoal, err := j.ReadAttempts(ctx, "run-1", AttemptFilter{GoalKey: "k2", RuleID: "compile"})
	require.NoError(t, err)
	require.Len(t, byGoal, 1)
	assert.Equal(t, engine.EventMatched, byGoal[0].Event)
}

func TestListRunsFilters(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for _, token := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, j.RunStarted(ctx, engine.RunInfo{RunToken: token, Query: "current(prog)", Mode: engine.ModeReal}))
	}
	require.NoError(t, j.RunFinished(ctx, "run-a", engine.StatusSatisfied, ""))
	require.NoError(t, j.RunFinished(ctx, "run-b", engine.StatusFailed, engine.ErrCodeRuleExhausted))

	all, err := j.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := j.ListRuns(ctx, RunFilter{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-b", failed[0].RunToken)
	assert.Equal(t, "RULE_EXHAUSTED", failed[0].Code)

	limited, err := j.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCommandLog(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.CommandRan(ctx, "main.o", "cc -c main.c -o main.o", 0))
	require.NoError(t, j.CommandRan(ctx, "prog", "cc main.o -o prog", 0))
	require.NoError(t, j.CommandRan(ctx, "main.o", "cc -c main.c -o main.o", 1))

	all, err := j.ReadCommands(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "main.o", all[0].Target)
	assert.NotEmpty(t, all[0].RanAt)

	forTarget, err := j.ReadCommands(ctx, "main.o")
	require.NoError(t, err)
	require.Len(t, forTarget, 2)
	assert.Equal(t, 0, forTarget[0].ExitCode)
	assert.Equal(t, 1, forTarget[1].ExitCode)
}

// End to end: the journal as the resolver's sink records exactly the trace
// the resolver reports.
func TestJournalAsResolverSink(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	reg, err := rules.NewRegistry([]rules.Def{
		{ID: "fact", Consequent: term.NewCompound("have", term.NewAtom("prog"))},
	})
	require.NoError(t, err)

	r := engine.New(reg, map[rules.TypeKey]rules.Behavior{
		{Name: "have", Arity: 1}: rules.FactBehavior{},
	}, engine.WithSink(j))

	res, err := r.Resolve(ctx, term.NewCompound("have", term.NewAtom("prog")), engine.ModeReal)
	require.NoError(t, err)
	require.Equal(t, engine.StatusSatisfied, res.Status)

	run, err := j.ReadRun(ctx, res.RunToken)
	require.NoError(t, err)
	assert.Equal(t, "have(prog)", run.Query)
	assert.Equal(t, "SATISFIED", run.Status)

	attempts, err := j.ReadAttempts(ctx, res.RunToken, AttemptFilter{})
	require.NoError(t, err)
	assert.Equal(t, res.Trace, attempts)
}
