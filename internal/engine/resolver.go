package engine

import (
	"context"
	"log/slog"

	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
)

// Mode selects whether satisfied-making side effects actually run.
type Mode string

const (
	// ModeReal runs Commands when Test is false.
	ModeReal Mode = "real"
	// ModeDry records what Commands would have run and treats the goal as
	// provisionally satisfied.
	ModeDry Mode = "dry"
)

// Status is the outcome of a top-level resolution.
type Status string

const (
	// StatusSatisfied: the query holds (after running any Commands).
	StatusSatisfied Status = "SATISFIED"
	// StatusFailed: the query does not hold, or resolution aborted fatally.
	StatusFailed Status = "FAILED"
	// StatusInconclusive: dry mode planned actions instead of running them,
	// so satisfaction is provisional.
	StatusInconclusive Status = "INCONCLUSIVE"
)

// PlannedAction is one Commands invocation dry mode skipped.
type PlannedAction struct {
	RuleID     string `json:"rule_id"`
	Consequent string `json:"consequent"`
}

// Result is the outcome of one Resolve call. Trace holds every attempt in
// logical-clock order; Bindings maps the query's variable names to their
// resolved values when the query was satisfied.
type Result struct {
	RunToken string
	Status   Status
	Code     ErrorCode // set when Status is FAILED
	Bindings map[string]term.Term
	Trace    []Attempt
	Planned  []PlannedAction
}

// Resolver resolves queries against an immutable rule registry by backward
// chaining: match candidate rules in declaration order, resolve antecedents
// depth first, then Test and, when needed, Commands. It is stateless across
// calls; each Resolve builds its own binding environment, clock, and quota,
// so one Resolver may serve concurrent resolutions.
type Resolver struct {
	registry  *rules.Registry
	behaviors map[rules.TypeKey]rules.Behavior
	maxSteps  int
	tokens    RunTokenGenerator
	sink      Sink
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxSteps overrides the per-resolution rule attempt quota.
func WithMaxSteps(n int) Option {
	return func(r *Resolver) { r.maxSteps = n }
}

// WithSink attaches a sink that observes runs and attempts (the journal).
func WithSink(s Sink) Option {
	return func(r *Resolver) { r.sink = s }
}

// WithRunTokens overrides the run token generator. Tests use fixed tokens.
func WithRunTokens(g RunTokenGenerator) Option {
	return func(r *Resolver) { r.tokens = g }
}

// New creates a resolver over a registry and the behaviors for its rule
// types. A rule type without a behavior is only an error if a rule of that
// type matches during a resolution.
func New(reg *rules.Registry, behaviors map[rules.TypeKey]rules.Behavior, opts ...Option) *Resolver {
	r := &Resolver{
		registry:  reg,
		behaviors: behaviors,
		maxSteps:  DefaultMaxSteps,
		tokens:    UUIDGenerator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers whether query can be satisfied, running Commands along the
// way in real mode. The returned error is non-nil only for fatal failures
// (the world may have changed and the answer is unusable); an exhausted
// search is an ordinary FAILED result with a nil error.
func (r *Resolver) Resolve(ctx context.Context, query term.Compound, mode Mode) (*Result, error) {
	token := r.tokens.Generate()
	queryText := term.Format(query)

	res := &Result{RunToken: token, Bindings: make(map[string]term.Term)}

	if query.Functor == "" {
		res.Status = StatusFailed
		res.Code = ErrCodeInvalidQuery
		return res, resolveErrf(ErrCodeInvalidQuery, queryText, "", nil, "query has no predicate name")
	}
	if mode != ModeReal && mode != ModeDry {
		res.Status = StatusFailed
		res.Code = ErrCodeInvalidQuery
		return res, resolveErrf(ErrCodeInvalidQuery, queryText, "", nil, "unknown mode %q", mode)
	}

	s := &session{
		r:     r,
		token: token,
		mode:  mode,
		b:     term.NewBindings(),
		clock: NewClock(),
		guard: newPathGuard(),
		q:     quota{limit: r.maxSteps},
	}

	slog.Debug("resolve start", "run", token, "query", queryText, "mode", mode)
	if r.sink != nil {
		if err := r.sink.RunStarted(ctx, RunInfo{RunToken: token, Query: queryText, Mode: mode}); err != nil {
			slog.Warn("journal write failed", "run", token, "err", err)
		}
	}

	err := s.solve(ctx, query, 0)
	res.Trace = s.trace
	res.Planned = s.planned

	switch {
	case err == nil && mode == ModeDry && len(s.planned) > 0:
		res.Status = StatusInconclusive
	case err == nil:
		res.Status = StatusSatisfied
	default:
		res.Status = StatusFailed
		if code, ok := CodeOf(err); ok {
			res.Code = code
		}
	}

	if res.Status != StatusFailed {
		for _, v := range term.Vars(query) {
			if _, seen := res.Bindings[v.Name()]; seen {
				continue
			}
			val, rerr := s.b.Resolve(v)
			if rerr != nil {
				continue
			}
			res.Bindings[v.Name()] = val
		}
	}

	if r.sink != nil {
		if serr := r.sink.RunFinished(ctx, token, res.Status, res.Code); serr != nil {
			slog.Warn("journal write failed", "run", token, "err", serr)
		}
	}
	slog.Debug("resolve done", "run", token, "status", res.Status, "code", res.Code, "attempts", len(res.Trace))

	if err != nil && IsFatal(err) {
		return res, err
	}
	return res, nil
}

// session is the per-resolution state: one binding environment, one clock,
// one quota, one path guard.
type session struct {
	r     *Resolver
	token string
	mode  Mode

	b     *term.Bindings
	clock *Clock
	guard *pathGuard
	q     quota

	trace   []Attempt
	planned []PlannedAction
}

func (s *session) record(ctx context.Context, depth int, goal, goalKey, ruleID string, ev Event, detail string) {
	a := Attempt{
		Seq:     s.clock.Next(),
		Depth:   depth,
		Goal:    goal,
		GoalKey: goalKey,
		RuleID:  ruleID,
		Event:   ev,
		Detail:  detail,
	}
	s.trace = append(s.trace, a)
	if s.r.sink != nil {
		if err := s.r.sink.AttemptRecorded(ctx, s.token, a); err != nil {
			slog.Warn("journal write failed", "run", s.token, "err", err)
		}
	}
}

// solve resolves one goal. A nil return means the goal is satisfied under
// the current bindings; retryable errors mean "this goal cannot be met from
// here" and let the caller try its own next candidate; fatal errors abort
// the whole resolution.
func (s *session) solve(ctx context.Context, goal term.Term, depth int) error {
	if ctx.Err() != nil {
		return resolveErrf(ErrCodeCancelled, "", "", ctx.Err(), "resolution cancelled")
	}

	w, err := s.b.Walk(goal)
	if err != nil {
		return resolveErrf(ErrCodeInvalidQuery, "", "", err, "goal cannot be resolved")
	}

	var g term.Compound
	switch wt := w.(type) {
	case term.Compound:
		g = wt
	case term.Atom:
		// A bare atom goal is a nullary predicate.
		g = term.Compound{Functor: string(wt)}
	case *term.Var:
		return resolveErrf(ErrCodeInvalidQuery, term.Format(wt), "", nil,
			"goal is an unbound variable")
	}

	rg, err := s.b.Resolve(g)
	if err != nil {
		return resolveErrf(ErrCodeInvalidQuery, "", "", err, "goal cannot be resolved")
	}
	goalText := term.Format(rg)
	goalKey := term.CanonKey(rg)

	candidates := s.r.registry.RulesFor(g.Functor, g.Arity())

	for _, rule := range candidates {
		if ctx.Err() != nil {
			return resolveErrf(ErrCodeCancelled, goalText, rule.ID(), ctx.Err(), "resolution cancelled")
		}
		if s.q.spend() {
			return resolveErrf(ErrCodeQuotaExceeded, goalText, rule.ID(), nil,
				"rule attempt quota of %d exceeded", s.q.limit)
		}

		mark := s.b.Mark()
		cons, ants := rule.Instantiate(s.b)

		if uerr := term.Unify(g, cons, s.b); uerr != nil {
			s.record(ctx, depth, goalText, goalKey, rule.ID(), EventUnifyFailed, uerr.Error())
			s.b.Undo(mark)
			continue
		}

		// The goal may be more instantiated now; key the cycle frame on the
		// post-match form so current(X) matched as current(prog) guards the
		// frame actually being resolved.
		mg, merr := s.b.Resolve(g)
		if merr != nil {
			s.b.Undo(mark)
			return resolveErrf(ErrCodeInvalidQuery, goalText, rule.ID(), merr, "goal cannot be resolved")
		}
		matchedText := term.Format(mg)
		matchedKey := term.CanonKey(mg)

		frame := cycleKey(rule.ID(), matchedKey)
		if !s.guard.enter(frame) {
			s.record(ctx, depth, matchedText, matchedKey, rule.ID(), EventCycleSkipped,
				"rule would re-enter its own resolution with the same goal")
			s.b.Undo(mark)
			continue
		}
		s.record(ctx, depth, matchedText, matchedKey, rule.ID(), EventMatched, "")

		aerr := s.attempt(ctx, rule, mg.(term.Compound), ants, depth, matchedText, matchedKey)
		s.guard.leave(frame)
		if aerr == nil {
			return nil
		}
		if IsFatal(aerr) {
			return aerr
		}
		s.b.Undo(mark)
	}

	s.record(ctx, depth, goalText, goalKey, "", EventExhausted, "")
	return resolveErrf(ErrCodeRuleExhausted, goalText, "", nil, "no rule satisfies %s", goalText)
}

// attempt drives one matched rule through antecedents, Test, and Commands.
// The caller owns the trail checkpoint and undoes it on retryable failure.
func (s *session) attempt(ctx context.Context, rule *rules.Rule, goal term.Compound, ants []term.Term, depth int, goalText, goalKey string) error {
	// An antecedent that references a capture the match never grounded can
	// only be resolved to an arbitrary value, which is never what the rule
	// author meant. Skip the candidate instead.
	for _, ant := range ants {
		for _, v := range term.Vars(ant) {
			if _, _, ok := v.Capture(); !ok {
				continue
			}
			wv, err := s.b.Walk(v)
			if err != nil {
				return resolveErrf(ErrCodeInvalidQuery, goalText, rule.ID(), err, "goal cannot be resolved")
			}
			if _, unbound := wv.(*term.Var); unbound {
				s.record(ctx, depth, goalText, goalKey, rule.ID(), EventUnderInstantiated,
					"antecedent needs capture _"+v.Name()+" which the goal did not ground")
				return resolveErrf(ErrCodeRuleExhausted, goalText, rule.ID(), nil,
					"antecedent under-instantiated: capture _%s is unbound", v.Name())
			}
		}
	}

	for _, ant := range ants {
		if err := s.solve(ctx, ant, depth+1); err != nil {
			if IsFatal(err) {
				return err
			}
			s.record(ctx, depth, goalText, goalKey, rule.ID(), EventAntecedentFailed, err.Error())
			return err
		}
	}

	resolved, err := s.resolveForBehavior(rule.ID(), goal, ants)
	if err != nil {
		return resolveErrf(ErrCodeInvalidQuery, goalText, rule.ID(), err, "goal cannot be resolved")
	}

	behavior, ok := s.r.behaviors[rule.Type()]
	if !ok {
		return resolveErrf(ErrCodeMissingBehavior, goalText, rule.ID(), nil,
			"no behavior registered for rule type %s", rule.Type())
	}

	pass, err := behavior.Test(ctx, resolved)
	if err != nil {
		return resolveErrf(ErrCodeTestError, goalText, rule.ID(), err, "test failed to evaluate")
	}
	if pass {
		s.record(ctx, depth, goalText, goalKey, rule.ID(), EventTestPassed, "")
		s.record(ctx, depth, goalText, goalKey, rule.ID(), EventSatisfied, "")
		return nil
	}
	s.record(ctx, depth, goalText, goalKey, rule.ID(), EventTestFalse, "")

	if s.mode == ModeDry {
		s.planned = append(s.planned, PlannedAction{RuleID: rule.ID(), Consequent: goalText})
		s.record(ctx, depth, goalText, goalKey, rule.ID(), EventPlanned, "")
		return nil
	}

	if err := behavior.Commands(ctx, resolved); err != nil {
		s.record(ctx, depth, goalText, goalKey, rule.ID(), EventCommandFailed, err.Error())
		return resolveErrf(ErrCodeCommandFailed, goalText, rule.ID(), err, "commands failed")
	}
	s.record(ctx, depth, goalText, goalKey, rule.ID(), EventCommandsRun, "")

	pass, err = behavior.Test(ctx, resolved)
	if err != nil {
		return resolveErrf(ErrCodeTestError, goalText, rule.ID(), err, "retest failed to evaluate")
	}
	if !pass {
		s.record(ctx, depth, goalText, goalKey, rule.ID(), EventRetestFailed, "")
		return resolveErrf(ErrCodeUnsatisfiable, goalText, rule.ID(), nil,
			"test still false after commands ran")
	}
	s.record(ctx, depth, goalText, goalKey, rule.ID(), EventSatisfied, "")
	return nil
}

// resolveForBehavior substitutes through the matched consequent and
// antecedents so behaviors see fully resolved values.
func (s *session) resolveForBehavior(ruleID string, goal term.Compound, ants []term.Term) (rules.Resolved, error) {
	rc, err := s.b.Resolve(goal)
	if err != nil {
		return rules.Resolved{}, err
	}
	ra := make([]term.Term, len(ants))
	for i, ant := range ants {
		v, err := s.b.Resolve(ant)
		if err != nil {
			return rules.Resolved{}, err
		}
		ra[i] = v
	}
	cons, _ := rc.(term.Compound)
	return rules.Resolved{RuleID: ruleID, Consequent: cons, Antecedents: ra}, nil
}
