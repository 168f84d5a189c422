package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnify_GroundAtoms(t *testing.T) {
	b := NewBindings()

	require.NoError(t, Unify(NewAtom("main.c"), NewAtom("main.c"), b))
	assert.Equal(t, 0, b.Len(), "ground unification must not grow the bindings")

	err := Unify(NewAtom("main.c"), NewAtom("main.h"), b)
	require.Error(t, err)
	assert.True(t, IsFailure(err, FailMismatch))
}

func TestUnify_GroundSymmetry(t *testing.T) {
	pairs := []struct {
		name string
		x, y Term
		ok   bool
	}{
		{"equal atoms", NewAtom("a"), NewAtom("a"), true},
		{"different atoms", NewAtom("a"), NewAtom("b"), false},
		{
			"equal compounds",
			NewCompound("f", NewAtom("a"), NewAtom("b")),
			NewCompound("f", NewAtom("a"), NewAtom("b")),
			true,
		},
		{
			"different functors",
			NewCompound("f", NewAtom("a")),
			NewCompound("g", NewAtom("a")),
			false,
		},
		{
			"different arities",
			NewCompound("f", NewAtom("a")),
			NewCompound("f", NewAtom("a"), NewAtom("b")),
			false,
		},
		{"atom vs compound", NewAtom("f"), NewCompound("f"), false},
	}

	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			errXY := Unify(tc.x, tc.y, NewBindings())
			errYX := Unify(tc.y, tc.x, NewBindings())
			if tc.ok {
				assert.NoError(t, errXY)
				assert.NoError(t, errYX)
			} else {
				assert.Error(t, errXY)
				assert.Error(t, errYX)
			}
		})
	}
}

func TestUnify_SelfUnifyGroundCompound(t *testing.T) {
	b := NewBindings()
	x := NewCompound("f", NewAtom("a"), NewCompound("g", NewAtom("b")))

	require.NoError(t, Unify(x, x, b))
	assert.Equal(t, 0, b.Len())
}

func TestUnify_VarBindsAtom(t *testing.T) {
	b := NewBindings()
	x := NewVar("X")

	require.NoError(t, Unify(x, NewAtom("main.o"), b))

	got, err := b.Walk(x)
	require.NoError(t, err)
	assert.Equal(t, NewAtom("main.o"), got)
}

func TestUnify_VarVarIsIdempotent(t *testing.T) {
	b := NewBindings()
	x := NewVar("X")
	y := NewVar("Y")

	require.NoError(t, Unify(x, y, b))
	grew := b.Len()
	require.NoError(t, Unify(y, x, b))
	assert.Equal(t, grew, b.Len(), "repeated unification of the same pair must be a no-op")

	// Grounding either side grounds both.
	require.NoError(t, Unify(x, NewAtom("v"), b))
	got, err := b.Resolve(y)
	require.NoError(t, err)
	assert.Equal(t, NewAtom("v"), got)
}

func TestUnify_OccursCheck(t *testing.T) {
	// Consequent pred1(X, pred2(X)) against query pred1(pred2(Y), Y):
	// X is bound to pred2(Y), then Y must equal pred2(X) = pred2(pred2(Y)).
	b := NewBindings()
	x := NewVar("X")
	y := NewVar("Y")
	cons := NewCompound("pred1", x, NewCompound("pred2", x))
	query := NewCompound("pred1", NewCompound("pred2", y), y)

	err := Unify(cons, query, b)
	require.Error(t, err)
	assert.True(t, IsFailure(err, FailOccurs), "got %v", err)
}

func TestUnify_ConflictingRebinding(t *testing.T) {
	// Consequent pred1(X, X) against query pred1(pred2(Y), Y): X is bound
	// to pred2(Y), then required to equal Y directly. Must fail in bounded
	// steps rather than building an infinite structure.
	b := NewBindings()
	x := NewVar("X")
	y := NewVar("Y")
	cons := NewCompound("pred1", x, x)
	query := NewCompound("pred1", NewCompound("pred2", y), y)

	err := Unify(cons, query, b)
	require.Error(t, err)
	var ue *UnifyError
	require.ErrorAs(t, err, &ue)
}

func TestUnify_ConsistentRebinding(t *testing.T) {
	// Consequent pred1(X, X) against query pred1(pred2(Y), pred2(Y)):
	// X binds to pred2(Y) twice, consistently.
	b := NewBindings()
	x := NewVar("X")
	y := NewVar("Y")
	cons := NewCompound("pred1", x, x)
	query := NewCompound("pred1", NewCompound("pred2", y), NewCompound("pred2", y))

	require.NoError(t, Unify(cons, query, b))

	got, err := b.Resolve(x)
	require.NoError(t, err)
	assert.Equal(t, NewCompound("pred2", y), got)
}

func TestUnify_CompoundShortCircuits(t *testing.T) {
	b := NewBindings()
	x := NewVar("X")
	// First argument fails; X must stay unbound on the trail only.
	mark := b.Mark()
	err := Unify(
		NewCompound("f", NewAtom("a"), x),
		NewCompound("f", NewAtom("b"), NewAtom("c")),
		b,
	)
	require.Error(t, err)
	b.Undo(mark)

	got, walkErr := b.Walk(x)
	require.NoError(t, walkErr)
	assert.Same(t, x, got)
}

func TestUnify_ConstraintAcceptsAndCaptures(t *testing.T) {
	b := NewBindings()
	v := NewConstrainedVar("Target", MustPattern("{name}.c"))

	require.NoError(t, Unify(v, NewAtom("main.c"), b))

	cap1, ok := b.CaptureValue(v, 1)
	require.True(t, ok, "capture group 1 should be realized")
	assert.Equal(t, NewAtom("main"), cap1)
}

func TestUnify_ConstraintRejects(t *testing.T) {
	b := NewBindings()
	v := NewConstrainedVar("Target", MustPattern("{name}.c"))

	err := Unify(v, NewAtom("main.h"), b)
	require.Error(t, err)
	assert.True(t, IsFailure(err, FailConstraint), "got %v", err)
}

func TestUnify_ConstraintDeferredUntilGround(t *testing.T) {
	b := NewBindings()
	v := NewConstrainedVar("Target", MustPattern("{name}.o"))
	w := NewVar("W")

	// Binding to an unbound variable must not apply the constraint yet.
	require.NoError(t, Unify(v, w, b))
	_, realized := b.CaptureValue(v, 1)
	assert.False(t, realized)

	// Grounding the chain applies the constraint at that moment.
	require.NoError(t, Unify(w, NewAtom("main.o"), b))
	cap1, ok := b.CaptureValue(v, 1)
	require.True(t, ok)
	assert.Equal(t, NewAtom("main"), cap1)
}

func TestUnify_DeferredConstraintRejectsOnGrounding(t *testing.T) {
	b := NewBindings()
	v := NewConstrainedVar("Target", MustPattern("{name}.o"))
	w := NewVar("W")

	require.NoError(t, Unify(v, w, b))
	err := Unify(w, NewAtom("main.c"), b)
	require.Error(t, err)
	assert.True(t, IsFailure(err, FailConstraint), "got %v", err)
}

func TestUnify_CaptureBehavesAsOrdinaryVariable(t *testing.T) {
	b := NewBindings()
	v := NewConstrainedVar("Target", MustPattern("{name}.o"))

	// Pre-constrain the capture before the parent is ground.
	cv := b.CaptureVar(v, 1)
	require.NoError(t, Unify(cv, NewAtom("main"), b))

	// Consistent parent value unifies.
	require.NoError(t, Unify(v, NewAtom("main.o"), b))

	// A conflicting capture fails.
	b2 := NewBindings()
	v2 := NewConstrainedVar("Target", MustPattern("{name}.o"))
	cv2 := b2.CaptureVar(v2, 1)
	require.NoError(t, Unify(cv2, NewAtom("other"), b2))
	err := Unify(v2, NewAtom("main.o"), b2)
	require.Error(t, err)
	assert.True(t, IsFailure(err, FailMismatch), "got %v", err)
}
