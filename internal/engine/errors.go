package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes resolution failures.
type ErrorCode string

const (
	// ErrCodeRuleExhausted indicates no candidate rule matched and
	// survived for a goal. Retryable: an enclosing frame reacts by trying
	// its own next candidate.
	ErrCodeRuleExhausted ErrorCode = "RULE_EXHAUSTED"

	// ErrCodeCommandFailed indicates a rule's Commands returned an error.
	// Always fatal: Commands may already have produced side effects.
	ErrCodeCommandFailed ErrorCode = "COMMAND_FAILED"

	// ErrCodeTestError indicates a rule's Test itself failed to evaluate
	// (not that it returned false). Fatal: the world state is unknown.
	ErrCodeTestError ErrorCode = "TEST_ERROR"

	// ErrCodeUnsatisfiable indicates Test was still false after Commands
	// ran. Always fatal: the side effects cannot be undone, so no other
	// candidate may be tried for any ancestor frame.
	ErrCodeUnsatisfiable ErrorCode = "UNSATISFIABLE_AFTER_COMMANDS"

	// ErrCodeMissingBehavior indicates a rule matched whose type has no
	// registered Test/Commands behavior. Fatal configuration error.
	ErrCodeMissingBehavior ErrorCode = "MISSING_BEHAVIOR"

	// ErrCodeQuotaExceeded indicates the resolution exceeded its rule
	// attempt quota. Fatal.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCancelled indicates the context was cancelled. Fatal.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeInvalidQuery indicates the query was not a resolvable
	// compound predicate. Fatal.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
)

// ResolveError is the structured failure of a resolution step or of the
// whole query.
type ResolveError struct {
	Code    ErrorCode
	Message string
	Goal    string // canonical goal text
	RuleID  string // rule being attempted, when applicable
	Err     error  // wrapped cause
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	switch {
	case e.Goal != "" && e.RuleID != "":
		return fmt.Sprintf("%s: %s (goal=%s, rule=%s)", e.Code, e.Message, e.Goal, e.RuleID)
	case e.Goal != "":
		return fmt.Sprintf("%s: %s (goal=%s)", e.Code, e.Message, e.Goal)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the wrapped cause.
func (e *ResolveError) Unwrap() error { return e.Err }

// Retryable reports whether an enclosing frame may react to this failure
// by trying its next candidate rule.
func (e *ResolveError) Retryable() bool {
	return e.Code == ErrCodeRuleExhausted
}

// IsFatal reports whether err is a resolution failure that must abort the
// entire top-level query.
func IsFatal(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return !re.Retryable()
	}
	return err != nil
}

// CodeOf extracts the error code from a resolution failure.
// Returns ("", false) for other errors.
func CodeOf(err error) (ErrorCode, bool) {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// resolveErrf builds a ResolveError with a formatted message.
func resolveErrf(code ErrorCode, goal, ruleID string, cause error, format string, args ...any) *ResolveError {
	return &ResolveError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Goal:    goal,
		RuleID:  ruleID,
		Err:     cause,
	}
}
