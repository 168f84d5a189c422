// Package rules defines build rules and the immutable registry the resolver
// searches. A rule pairs one compound consequent with an ordered list of
// antecedents; its rule type (consequent name + arity) binds it to an
// externally supplied Test/Commands behavior. Rules never carry behavior
// themselves.
package rules

import (
	"context"
	"fmt"

	"github.com/hagoth/hagoth/internal/term"
)

// TypeKey identifies a rule type: all rules sharing a consequent name and
// arity share one Test/Commands behavior.
type TypeKey struct {
	Name  string
	Arity int
}

// String renders the key as name/arity.
func (k TypeKey) String() string {
	return fmt.Sprintf("%s/%d", k.Name, k.Arity)
}

// Resolved carries the fully resolved values of a satisfied match for
// behavior invocation: every argument is ground.
type Resolved struct {
	RuleID      string
	Consequent  term.Compound
	Antecedents []term.Term
}

// Behavior is the Test/Commands contract a ruleset collaborator supplies
// per rule type.
//
// Test reports whether the consequent already holds. Commands attempts to
// make it hold; an error from Commands is always fatal to the whole
// resolution because its side effects may be irreversible.
type Behavior interface {
	Test(ctx context.Context, r Resolved) (bool, error)
	Commands(ctx context.Context, r Resolved) error
}

// FactBehavior serves rule types used as pure logical facts: Test is always
// true, so Commands is never reached.
type FactBehavior struct{}

// Test always reports true.
func (FactBehavior) Test(context.Context, Resolved) (bool, error) { return true, nil }

// Commands is unreachable for fact types; it fails loudly if it ever runs.
func (FactBehavior) Commands(_ context.Context, r Resolved) error {
	return fmt.Errorf("fact rule %s has no commands", r.RuleID)
}

// Def is one structured rule definition as produced by a rule-syntax
// parser. The engine never consumes textual rule syntax; it consumes these.
type Def struct {
	// ID names the rule for traces and diagnostics. Optional; the registry
	// assigns positional IDs to unnamed rules.
	ID string

	Consequent  term.Compound
	Antecedents []term.Term
}

// Rule is one registered rule. Terms held here are templates: every
// resolution attempt instantiates them with fresh variables.
type Rule struct {
	id          string
	typeKey     TypeKey
	consequent  term.Compound
	antecedents []term.Term
	index       int // declaration position within the whole registry
}

// ID returns the rule's identifier.
func (r *Rule) ID() string { return r.id }

// Type returns the rule's type key.
func (r *Rule) Type() TypeKey { return r.typeKey }

// Consequent returns the template consequent.
func (r *Rule) Consequent() term.Compound { return r.consequent }

// Antecedents returns the template antecedents in declaration order.
func (r *Rule) Antecedents() []term.Term { return r.antecedents }

// Instantiate freshens the rule's variables (standardizing them apart from
// every other attempt) and returns the instantiated consequent and
// antecedents. Capture references are realized against the given bindings
// so the antecedent sees the same capture variable the consequent's
// constraint will bind.
func (r *Rule) Instantiate(b *term.Bindings) (term.Compound, []term.Term) {
	fresh := make(map[*term.Var]*term.Var)

	var freshVar func(v *term.Var) *term.Var
	var conv func(t term.Term) term.Term

	freshVar = func(v *term.Var) *term.Var {
		if nv, ok := fresh[v]; ok {
			return nv
		}
		nv := term.NewConstrainedVar(v.Name(), v.Constraint())
		fresh[v] = nv
		return nv
	}

	conv = func(t term.Term) term.Term {
		switch tt := t.(type) {
		case term.Atom:
			return tt
		case *term.Var:
			if parent, group, ok := tt.Capture(); ok {
				return b.CaptureVar(freshVar(parent), group)
			}
			return freshVar(tt)
		case term.Compound:
			args := make([]term.Term, len(tt.Args))
			for i, a := range tt.Args {
				args[i] = conv(a)
			}
			return term.Compound{Functor: tt.Functor, Args: args}
		}
		return t
	}

	cons := conv(r.consequent).(term.Compound)
	ants := make([]term.Term, len(r.antecedents))
	for i, a := range r.antecedents {
		ants[i] = conv(a)
	}
	return cons, ants
}
