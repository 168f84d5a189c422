package term

import (
	"strconv"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"
)

// Term is a sealed interface over the three value shapes the engine
// manipulates. Only Atom, *Var, and Compound implement it.
type Term interface {
	isTerm() // Sealed - only these types implement it
}

// Atom is an opaque ground value. Always fully ground, never contains
// variables. Construct with NewAtom so the value is NFC-normalized.
type Atom string

func (Atom) isTerm() {}

// NewAtom creates an Atom with the value normalized to Unicode NFC.
// Filenames arriving from different sources can differ in composition form;
// normalizing here keeps atom equality structural.
func NewAtom(s string) Atom {
	return Atom(norm.NFC.String(s))
}

// Compound is a named predicate with ordered arguments.
type Compound struct {
	Functor string
	Args    []Term
}

func (Compound) isTerm() {}

// NewCompound builds a compound term.
func NewCompound(functor string, args ...Term) Compound {
	return Compound{Functor: functor, Args: args}
}

// Arity returns the number of arguments.
func (c Compound) Arity() int {
	return len(c.Args)
}

// varSeq hands out creation sequence numbers. The sequence gives var-var
// unification a deterministic direction: the younger variable always binds
// to the older one.
var varSeq atomic.Int64

// Var is a logic variable. Identity is pointer identity: two *Var values
// are the same variable only if they are the same pointer. Variables are
// freshened per rule instantiation, so identity is unique within one
// top-level resolution.
type Var struct {
	name       string
	seq        int64
	constraint Constraint

	// parent/group are set when this variable denotes a captured sub-value
	// of another variable (e.g. a regex capture group).
	parent *Var
	group  int
}

func (*Var) isTerm() {}

// NewVar creates an unconstrained variable with the given display name.
func NewVar(name string) *Var {
	return &Var{name: name, seq: varSeq.Add(1)}
}

// NewConstrainedVar creates a variable that only accepts values the
// constraint admits. A nil constraint is the same as NewVar.
func NewConstrainedVar(name string, c Constraint) *Var {
	return &Var{name: name, seq: varSeq.Add(1), constraint: c}
}

// newCaptureVar creates the variable that holds one capture group of a
// parent variable. Only Bindings.CaptureVar creates these, so each
// (parent, group) pair has at most one realization per resolution.
func newCaptureVar(parent *Var, group int) *Var {
	return &Var{
		name:   parent.name + "." + strconv.Itoa(group),
		seq:    varSeq.Add(1),
		parent: parent,
		group:  group,
	}
}

// NewCaptureRef creates a template reference to capture group `group` of
// parent. Rule definitions use these to mention a captured sub-value in an
// antecedent; instantiation swaps them for the realized capture variable of
// the freshened parent.
func NewCaptureRef(parent *Var, group int) *Var {
	return newCaptureVar(parent, group)
}

// Name returns the variable's display name.
func (v *Var) Name() string { return v.name }

// Constraint returns the variable's constraint, or nil.
func (v *Var) Constraint() Constraint { return v.constraint }

// Capture reports whether this variable is a capture reference, and if so
// which parent variable and group it refers to.
func (v *Var) Capture() (*Var, int, bool) {
	if v.parent == nil {
		return nil, 0, false
	}
	return v.parent, v.group, true
}

// Vars collects the distinct variables appearing in t, in first-occurrence
// order. Capture references count as variables in their own right.
func Vars(t Term) []*Var {
	var out []*Var
	seen := make(map[*Var]bool)
	var walk func(Term)
	walk = func(t Term) {
		switch tt := t.(type) {
		case *Var:
			if !seen[tt] {
				seen[tt] = true
				out = append(out, tt)
			}
		case Compound:
			for _, a := range tt.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}
