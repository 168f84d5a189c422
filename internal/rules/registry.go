package rules

import (
	"fmt"

	"github.com/hagoth/hagoth/internal/term"
)

// Registry is the load-time-built, ordered collection of rules, grouped by
// rule type. It is immutable after construction and safe to share across
// resolutions; the resolver never mutates it.
//
// Rule order within a type is declaration order, and declaration order is
// the backtracking search order.
type Registry struct {
	rules  []*Rule
	byType map[TypeKey][]*Rule
}

// NewRegistry builds a registry from structured rule definitions,
// validating each one:
//   - the consequent functor must be non-empty
//   - rule IDs must be unique (unnamed rules get positional IDs)
//   - a capture reference in an antecedent must point at a variable that
//     appears in the consequent and at a group its constraint can produce
func NewRegistry(defs []Def) (*Registry, error) {
	reg := &Registry{
		byType: make(map[TypeKey][]*Rule),
	}
	seen := make(map[string]bool, len(defs))

	for i, def := range defs {
		if def.Consequent.Functor == "" {
			return nil, fmt.Errorf("rule %d: consequent functor is empty", i)
		}

		id := def.ID
		if id == "" {
			id = fmt.Sprintf("%s#%d", def.Consequent.Functor, i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate rule ID: %s", id)
		}
		seen[id] = true

		if err := validateCaptures(def); err != nil {
			return nil, fmt.Errorf("rule %s: %w", id, err)
		}

		r := &Rule{
			id:      id,
			typeKey: TypeKey{Name: def.Consequent.Functor, Arity: def.Consequent.Arity()},
			// Copy the antecedent slice so later mutation of the input
			// cannot reorder the search.
			consequent:  def.Consequent,
			antecedents: append([]term.Term(nil), def.Antecedents...),
			index:       i,
		}
		reg.rules = append(reg.rules, r)
		reg.byType[r.typeKey] = append(reg.byType[r.typeKey], r)
	}

	return reg, nil
}

// RulesFor returns the rules whose consequent has the given name and arity,
// in declaration order. The returned slice must not be mutated.
func (r *Registry) RulesFor(name string, arity int) []*Rule {
	return r.byType[TypeKey{Name: name, Arity: arity}]
}

// Rules returns all rules in declaration order.
func (r *Registry) Rules() []*Rule { return r.rules }

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }

// Types returns the distinct type keys, in first-declaration order.
func (r *Registry) Types() []TypeKey {
	var out []TypeKey
	seen := make(map[TypeKey]bool)
	for _, rule := range r.rules {
		if !seen[rule.typeKey] {
			seen[rule.typeKey] = true
			out = append(out, rule.typeKey)
		}
	}
	return out
}

// validateCaptures checks every capture reference in the antecedents
// against the consequent's variables.
func validateCaptures(def Def) error {
	consVars := make(map[*term.Var]bool)
	for _, v := range term.Vars(def.Consequent) {
		consVars[v] = true
	}

	for ai, ant := range def.Antecedents {
		for _, v := range term.Vars(ant) {
			parent, group, ok := v.Capture()
			if !ok {
				continue
			}
			if !consVars[parent] {
				return fmt.Errorf("antecedent %d: capture of _%s which does not appear in the consequent",
					ai, parent.Name())
			}
			c := parent.Constraint()
			if c == nil {
				return fmt.Errorf("antecedent %d: capture of unconstrained variable _%s",
					ai, parent.Name())
			}
			if group < 1 || group > c.Groups() {
				return fmt.Errorf("antecedent %d: capture group %d out of range for _%s (constraint %s has %d)",
					ai, group, parent.Name(), c, c.Groups())
			}
		}
	}
	return nil
}
