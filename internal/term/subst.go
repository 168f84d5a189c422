package term

// captureKey identifies one realized capture group of a variable.
type captureKey struct {
	parent *Var
	group  int
}

// trailOp distinguishes the kinds of undoable mutations.
type trailOp int

const (
	trailBind trailOp = iota + 1
	trailCapture
	trailPendingAdd
	trailPendingDone
)

// trailEntry is one undoable mutation. Undo pops entries in reverse order:
//   - trailBind: remove the binding for v
//   - trailCapture: forget the realized capture variable for key
//   - trailPendingAdd: pop v from the pending list
//   - trailPendingDone: re-activate v's pending constraint
type trailEntry struct {
	op  trailOp
	v   *Var
	key captureKey
}

// Mark is a checkpoint into the trail.
type Mark int

// Bindings is the substitution: the binding environment for one top-level
// resolution. It grows monotonically between checkpoints and is restored by
// Undo on backtrack. Not safe for concurrent use; the resolver is
// single-threaded by design.
type Bindings struct {
	bound    map[*Var]Term
	captures map[captureKey]*Var

	// pending lists constrained variables bound to a not-yet-ground term.
	// pendingSet marks which entries are still active; entries are never
	// removed from the slice so trail-based undo stays a simple pop.
	pending    []*Var
	pendingSet map[*Var]bool

	trail []trailEntry
}

// NewBindings creates an empty binding environment.
func NewBindings() *Bindings {
	return &Bindings{
		bound:      make(map[*Var]Term),
		captures:   make(map[captureKey]*Var),
		pendingSet: make(map[*Var]bool),
	}
}

// Len returns the number of live variable bindings.
func (b *Bindings) Len() int { return len(b.bound) }

// Mark returns a checkpoint covering everything bound so far.
func (b *Bindings) Mark() Mark { return Mark(len(b.trail)) }

// Undo restores the environment to the state at the checkpoint, undoing the
// bindings made since then in reverse order.
func (b *Bindings) Undo(m Mark) {
	for len(b.trail) > int(m) {
		e := b.trail[len(b.trail)-1]
		b.trail = b.trail[:len(b.trail)-1]
		switch e.op {
		case trailBind:
			delete(b.bound, e.v)
		case trailCapture:
			delete(b.captures, e.key)
		case trailPendingAdd:
			delete(b.pendingSet, e.v)
			b.pending = b.pending[:len(b.pending)-1]
		case trailPendingDone:
			b.pendingSet[e.v] = true
		}
	}
}

// set records a binding on the trail. Callers guarantee v is unbound.
func (b *Bindings) set(v *Var, t Term) {
	b.bound[v] = t
	b.trail = append(b.trail, trailEntry{op: trailBind, v: v})
}

// addPending registers a constrained variable whose value is not ground yet.
func (b *Bindings) addPending(v *Var) {
	if b.pendingSet[v] {
		return
	}
	b.pending = append(b.pending, v)
	b.pendingSet[v] = true
	b.trail = append(b.trail, trailEntry{op: trailPendingAdd, v: v})
}

// donePending deactivates a pending constraint after it has been applied.
func (b *Bindings) donePending(v *Var) {
	delete(b.pendingSet, v)
	b.trail = append(b.trail, trailEntry{op: trailPendingDone, v: v})
}

// CaptureVar returns the variable holding capture group `group` of parent,
// realizing it on first use. Realized capture variables behave as ordinary
// fresh variables for subsequent unification.
func (b *Bindings) CaptureVar(parent *Var, group int) *Var {
	key := captureKey{parent: parent, group: group}
	if cv, ok := b.captures[key]; ok {
		return cv
	}
	cv := newCaptureVar(parent, group)
	b.captures[key] = cv
	b.trail = append(b.trail, trailEntry{op: trailCapture, key: key})
	return cv
}

// CaptureValue returns the resolved value of capture group `group` of v,
// if the capture has been realized and bound.
func (b *Bindings) CaptureValue(v *Var, group int) (Term, bool) {
	cv, ok := b.captures[captureKey{parent: v, group: group}]
	if !ok {
		return nil, false
	}
	t, err := b.Walk(cv)
	if err != nil {
		return nil, false
	}
	if tv, stillVar := t.(*Var); stillVar && b.bound[tv] == nil {
		return nil, false
	}
	return t, true
}

// Walk follows variable bindings to the most-resolved representative: an
// atom, a compound, or an unbound variable. It never mutates the
// environment. Chain traversal is bounded by the number of live bindings;
// exceeding the bound means the chain is cyclic and is reported as a
// deterministic failure instead of looping.
func (b *Bindings) Walk(t Term) (Term, error) {
	limit := len(b.bound) + 1
	for steps := 0; ; steps++ {
		v, ok := t.(*Var)
		if !ok {
			return t, nil
		}
		next, bound := b.bound[v]
		if !bound {
			return v, nil
		}
		if steps >= limit {
			return nil, failf(FailCyclicChain, "binding chain for _%s does not terminate", v.name)
		}
		t = next
	}
}

// Resolve substitutes through t, producing the most-resolved form: every
// bound variable is replaced, compounds are rebuilt recursively. Unbound
// variables remain in place.
func (b *Bindings) Resolve(t Term) (Term, error) {
	w, err := b.Walk(t)
	if err != nil {
		return nil, err
	}
	c, ok := w.(Compound)
	if !ok {
		return w, nil
	}
	args := make([]Term, len(c.Args))
	for i, a := range c.Args {
		ra, err := b.Resolve(a)
		if err != nil {
			return nil, err
		}
		args[i] = ra
	}
	return Compound{Functor: c.Functor, Args: args}, nil
}

// Ground reports whether t contains no unbound variables under the current
// bindings.
func (b *Bindings) Ground(t Term) (bool, error) {
	w, err := b.Walk(t)
	if err != nil {
		return false, err
	}
	switch wt := w.(type) {
	case Atom:
		return true, nil
	case *Var:
		return false, nil
	case Compound:
		for _, a := range wt.Args {
			g, err := b.Ground(a)
			if err != nil || !g {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}
