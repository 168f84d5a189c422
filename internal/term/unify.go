package term

// Unify merges terms x and y under the given bindings. On success the
// bindings have been extended (and possibly capture groups realized); on
// failure a *UnifyError is returned and the bindings hold whatever partial
// progress was made - callers are expected to checkpoint with Mark() and
// restore with Undo() around speculative unifications.
func Unify(x, y Term, b *Bindings) error {
	xw, err := b.Walk(x)
	if err != nil {
		return err
	}
	yw, err := b.Walk(y)
	if err != nil {
		return err
	}

	switch xt := xw.(type) {
	case Atom:
		switch yt := yw.(type) {
		case Atom:
			if xt == yt {
				return nil
			}
			return failf(FailMismatch, "atom %q != %q", string(xt), string(yt))
		case *Var:
			return bindVar(yt, xt, b)
		case Compound:
			return failf(FailMismatch, "atom %q vs compound %s", string(xt), Format(yt))
		}

	case Compound:
		switch yt := yw.(type) {
		case Atom:
			return failf(FailMismatch, "compound %s vs atom %q", Format(xt), string(yt))
		case *Var:
			return bindVar(yt, xt, b)
		case Compound:
			if xt.Functor != yt.Functor || len(xt.Args) != len(yt.Args) {
				return failf(FailMismatch, "%s/%d != %s/%d",
					xt.Functor, len(xt.Args), yt.Functor, len(yt.Args))
			}
			// Left to right, short-circuiting, each step threading the
			// evolving bindings.
			for i := range xt.Args {
				if err := Unify(xt.Args[i], yt.Args[i], b); err != nil {
					return err
				}
			}
			return nil
		}

	case *Var:
		if yv, ok := yw.(*Var); ok {
			if xt == yv {
				return nil
			}
			// Deterministic union direction: the younger variable binds to
			// the older, so unifying the same pair twice is idempotent.
			if xt.seq > yv.seq {
				return bindVar(xt, yv, b)
			}
			return bindVar(yv, xt, b)
		}
		return bindVar(xt, yw, b)
	}
	return failf(FailMismatch, "unsupported term shapes")
}

// bindVar commits the binding v -> t after the occurs check, then runs any
// constraint work the binding enables.
func bindVar(v *Var, t Term, b *Bindings) error {
	occurs, err := occursIn(v, t, b)
	if err != nil {
		return err
	}
	if occurs {
		return failf(FailOccurs, "_%s would be bound to a term containing itself", v.name)
	}

	b.set(v, t)
	if v.constraint != nil {
		b.addPending(v)
	}
	return settle(b)
}

// occursIn walks t through the current bindings and reports whether v
// appears anywhere inside it. Walking the dereferenced structure at bind
// time guarantees termination regardless of sharing.
func occursIn(v *Var, t Term, b *Bindings) (bool, error) {
	w, err := b.Walk(t)
	if err != nil {
		return false, err
	}
	switch wt := w.(type) {
	case Atom:
		return false, nil
	case *Var:
		return wt == v, nil
	case Compound:
		for _, a := range wt.Args {
			found, err := occursIn(v, a, b)
			if err != nil || found {
				return found, err
			}
		}
		return false, nil
	}
	return false, nil
}

// settle applies every pending constraint whose variable has become ground.
// Accepted constraints realize their capture groups, which are unified with
// the captured values; those unifications can ground further pending
// constraints, so the sweep repeats until a fixpoint.
func settle(b *Bindings) error {
	for progress := true; progress; {
		progress = false
		// Index loop: capture unifications below may append new entries.
		for i := 0; i < len(b.pending); i++ {
			v := b.pending[i]
			if !b.pendingSet[v] {
				continue
			}
			value, err := b.Resolve(v)
			if err != nil {
				return err
			}
			ground, err := b.Ground(value)
			if err != nil {
				return err
			}
			if !ground {
				continue
			}

			// Deactivate before unifying captures so re-entrant settle
			// calls cannot apply the same constraint twice.
			b.donePending(v)
			caps, err := v.constraint.Apply(value)
			if err != nil {
				return failf(FailConstraint, "_%s: %v", v.name, err)
			}
			for _, c := range caps {
				cv := b.CaptureVar(v, c.Group)
				if err := Unify(cv, c.Value, b); err != nil {
					return err
				}
			}
			progress = true
		}
	}
	return nil
}
