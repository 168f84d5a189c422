package term

import (
	"errors"
	"fmt"
)

// FailureCode categorizes unification failures. All of these are local to
// matching and only drive backtracking; none is fatal by itself.
type FailureCode string

const (
	// FailMismatch indicates a structural mismatch: different atoms,
	// different functors or arities, or atom vs compound.
	FailMismatch FailureCode = "STRUCTURE_MISMATCH"

	// FailConstraint indicates a ground value was rejected by a variable's
	// constraint.
	FailConstraint FailureCode = "CONSTRAINT_REJECTED"

	// FailOccurs indicates a binding would make a variable contain itself.
	FailOccurs FailureCode = "OCCURS_CHECK"

	// FailCyclicChain indicates variable dereferencing did not terminate.
	// This should be unreachable while the occurs check holds; it exists so
	// a broken chain fails deterministically instead of looping.
	FailCyclicChain FailureCode = "CYCLIC_CHAIN"

	// FailUnderInstantiated indicates a rule antecedent needs a captured
	// sub-value whose parent variable was never grounded by the query.
	FailUnderInstantiated FailureCode = "UNDER_INSTANTIATED"
)

// UnifyError is the failure result of a unification step.
type UnifyError struct {
	Code    FailureCode
	Message string
}

// Error implements the error interface.
func (e *UnifyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// failf builds a UnifyError with a formatted message.
func failf(code FailureCode, format string, args ...any) *UnifyError {
	return &UnifyError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FailureCodeOf extracts the failure code from an error, handling wrapping.
// Returns ("", false) when err is not a unification failure.
func FailureCodeOf(err error) (FailureCode, bool) {
	var ue *UnifyError
	if errors.As(err, &ue) {
		return ue.Code, true
	}
	return "", false
}

// IsFailure reports whether err is a unification failure with the given code.
func IsFailure(err error, code FailureCode) bool {
	got, ok := FailureCodeOf(err)
	return ok && got == code
}
