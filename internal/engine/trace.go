package engine

import "context"

// Event names one observable step of a resolution attempt.
type Event string

const (
	// EventMatched: a candidate rule's consequent unified with the goal.
	EventMatched Event = "matched"
	// EventUnifyFailed: a candidate was rejected during matching.
	EventUnifyFailed Event = "unify_failed"
	// EventCycleSkipped: the candidate would re-enter a frame already on
	// the current path.
	EventCycleSkipped Event = "cycle_skipped"
	// EventUnderInstantiated: an antecedent needs a captured sub-value the
	// query never grounded.
	EventUnderInstantiated Event = "under_instantiated"
	// EventAntecedentFailed: a nested resolution came back unsatisfied.
	EventAntecedentFailed Event = "antecedent_failed"
	// EventTestPassed: the rule type's Test reported the goal satisfied.
	EventTestPassed Event = "test_passed"
	// EventTestFalse: Test reported false; Commands is next (real mode).
	EventTestFalse Event = "test_false"
	// EventPlanned: dry mode recorded the Commands that would have run.
	EventPlanned Event = "planned"
	// EventCommandsRun: Commands completed without error.
	EventCommandsRun Event = "commands_run"
	// EventCommandFailed: Commands returned an error. Fatal.
	EventCommandFailed Event = "command_failed"
	// EventRetestFailed: Test was still false after Commands. Fatal.
	EventRetestFailed Event = "retest_failed"
	// EventSatisfied: the goal was satisfied by this rule.
	EventSatisfied Event = "satisfied"
	// EventExhausted: every candidate for the goal failed.
	EventExhausted Event = "exhausted"
)

// Attempt is one entry of the resolution trail. The full trail shows every
// rule tried for every goal and where each attempt diverged, which is what
// makes failures diagnosable.
type Attempt struct {
	Seq     int64  `json:"seq"`
	Depth   int    `json:"depth"`
	Goal    string `json:"goal"`
	GoalKey string `json:"goal_key"`
	RuleID  string `json:"rule_id,omitempty"`
	Event   Event  `json:"event"`
	Detail  string `json:"detail,omitempty"`
}

// RunInfo describes a top-level resolution for sinks.
type RunInfo struct {
	RunToken string
	Query    string
	Mode     Mode
}

// Sink receives resolution events as they happen. The journal implements
// it. Sink errors are logged and ignored: observability must never change
// resolution outcomes.
type Sink interface {
	RunStarted(ctx context.Context, run RunInfo) error
	AttemptRecorded(ctx context.Context, runToken string, a Attempt) error
	RunFinished(ctx context.Context, runToken string, status Status, code ErrorCode) error
}
