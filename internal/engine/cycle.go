package engine

// pathGuard tracks the (rule, goal) frames on the current descent path.
// Re-entering the same pair while it is still being resolved means the rule
// has recursed into itself with an identical goal; that attempt can never
// terminate, so the guard fails it as retryable and the search moves to the
// next candidate.
//
// The guard is scoped to the active path, not the whole run: the same
// (rule, goal) pair reached again after the first frame completed is
// resolved normally (sub-queries are deliberately not memoized).
type pathGuard struct {
	active map[string]bool
}

func newPathGuard() *pathGuard {
	return &pathGuard{active: make(map[string]bool)}
}

// key combines rule ID and the goal's canonical hash.
func cycleKey(ruleID, goalKey string) string {
	return ruleID + ":" + goalKey
}

// enter marks a frame active. Returns false if the frame is already on the
// path (a cycle).
func (g *pathGuard) enter(key string) bool {
	if g.active[key] {
		return false
	}
	g.active[key] = true
	return true
}

// leave unmarks a frame when its resolution attempt finishes.
func (g *pathGuard) leave(key string) {
	delete(g.active, key)
}
