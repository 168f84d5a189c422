package term

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Format renders a term in its canonical text form:
//
//	atom            -> main.o
//	atom w/ specials-> "a b"
//	variable        -> _Name
//	compound        -> current(main.o, _X)
//
// Atoms are already NFC-normalized, so equal atoms always render equally.
// The form is used in traces, the journal, and cycle keys, so it must be
// deterministic.
func Format(t Term) string {
	var b strings.Builder
	writeTerm(&b, t)
	return b.String()
}

func writeTerm(b *strings.Builder, t Term) {
	switch tt := t.(type) {
	case Atom:
		writeAtom(b, string(tt))
	case *Var:
		b.WriteByte('_')
		b.WriteString(tt.name)
	case Compound:
		b.WriteString(tt.Functor)
		if len(tt.Args) == 0 {
			return
		}
		b.WriteByte('(')
		for i, a := range tt.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeTerm(b, a)
		}
		b.WriteByte(')')
	}
}

// writeAtom quotes atoms containing syntax characters so the canonical form
// round-trips unambiguously.
func writeAtom(b *strings.Builder, s string) {
	if s != "" && !strings.ContainsAny(s, "(), \"_") {
		b.WriteString(s)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(s, `"`, `\"`))
	b.WriteByte('"')
}

// CanonKey returns a short content hash of a term's canonical text.
// The resolver keys its recursion guard on it; the journal stores it so
// identical goals can be correlated across runs.
func CanonKey(t Term) string {
	sum := sha256.Sum256([]byte(Format(t)))
	return hex.EncodeToString(sum[:8])
}
