// Package term implements the value model of the Hagoth resolution engine:
// atoms, variables, compound predicates, the binding environment, and
// unification.
//
// TERM MODEL:
//
// Term is a sealed interface with exactly three implementations:
//   - Atom: an opaque ground value (e.g. a filename). Atoms are normalized
//     to Unicode NFC on construction so two spellings of the same name
//     compare equal.
//   - *Var: a variable. Identity is pointer identity; every variable also
//     carries a creation sequence number so var-var unification has a
//     deterministic direction. A variable may carry a Constraint and may be
//     a capture reference (a named sub-value of another variable).
//   - Compound: a functor plus ordered Term arguments, nested arbitrarily.
//
// BINDINGS AND THE TRAIL:
//
// Bindings maps variables to terms. All mutation goes through a trail so
// the resolver can checkpoint with Mark() and restore with Undo(). Undo
// pops trail entries in reverse order; nothing is ever copied. Memory is
// therefore bounded by trail length, not by search branching.
//
// UNIFICATION:
//
// Unify merges two terms under a Bindings. Binding a variable to a compound
// that (transitively) contains the variable is rejected with an occurs-check
// failure rather than building an infinite structure. Constraint checks on
// not-yet-ground targets are deferred and re-run at the moment a later
// binding grounds them.
package term
