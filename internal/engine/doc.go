// Package engine implements the Hagoth backtracking resolver.
//
// A top-level query is a compound predicate. The resolver selects candidate
// rules for the query's type (consequent name + arity) in declaration
// order, unifies, recursively resolves antecedents left to right, and then
// drives each matched rule through its Test/Commands contract:
//
//	MATCHING -> ANTECEDENTS -> TESTING -> COMMANDING -> RETEST
//
// ARCHITECTURE:
//
// Single-threaded depth-first search. All speculative work is bracketed by
// checkpoints on one shared binding trail; backtracking is an explicit
// Undo, never a copy, so memory is bounded by trail length rather than by
// the branching factor of the search.
//
// The retryable/fatal split is the central design decision. Failing to
// satisfy antecedents is always safely retryable: nothing irreversible has
// happened, so the next candidate rule is tried. A Commands error, or a
// Test that is still false after Commands ran, is never retried: external
// side effects have already been committed, so trying a different rule for
// the same target would be unsound. Fatal outcomes abort the entire
// top-level query, bypassing every remaining candidate anywhere in the
// search tree.
//
// Dry mode never invokes Commands. A matched rule whose Test is false is
// recorded as a planned action and treated as provisionally satisfied; the
// overall result is downgraded to inconclusive. Dry mode therefore can only
// assert that a target is already satisfied, never that it is satisfiable.
//
// DETERMINISM:
//
// Rules are tried in declaration order, antecedents strictly left to
// right. Every trace event is stamped with a per-run monotonic seq from
// the logical clock. Identical sub-queries reached via independent paths
// are re-resolved, not memoized: with side-effecting Commands in play, a
// cached "satisfied" from another path could hide an ordering the rule
// author relies on.
package engine
