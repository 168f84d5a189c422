package cli

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hagoth/hagoth/internal/term"
)

// ParseQuery parses command-line query syntax into a compound goal:
//
//	current(prog)
//	current(X)
//	holds(pair(a, B))
//
// Names follow the Prolog convention: a token starting with an uppercase
// letter or underscore is a variable, anything else is an atom. One name is
// one variable throughout the query. Atoms may contain letters, digits, and
// the punctuation common in file names (. _ - / +).
func ParseQuery(input string) (term.Compound, error) {
	p := &queryParser{input: input, vars: make(map[string]*term.Var)}
	t, err := p.parseTerm()
	if err != nil {
		return term.Compound{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return term.Compound{}, p.errorf("unexpected %q after query", p.rest())
	}

	switch tt := t.(type) {
	case term.Compound:
		return tt, nil
	case term.Atom:
		// A bare atom query is a nullary predicate.
		return term.Compound{Functor: string(tt)}, nil
	default:
		return term.Compound{}, fmt.Errorf("query %q: a query must be a predicate, not a variable", input)
	}
}

type queryParser struct {
	input string
	pos   int
	vars  map[string]*term.Var
}

func (p *queryParser) parseTerm() (term.Term, error) {
	p.skipSpace()
	name := p.readName()
	if name == "" {
		return nil, p.errorf("expected a name at %q", p.rest())
	}

	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		if isVariableName(name) {
			return nil, p.errorf("variable %s cannot take arguments", name)
		}
		p.pos++ // consume '('
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return term.Compound{Functor: name, Args: args}, nil
	}

	if isVariableName(name) {
		v, ok := p.vars[name]
		if !ok {
			v = term.NewVar(name)
			p.vars[name] = v
		}
		return v, nil
	}
	return term.NewAtom(name), nil
}

func (p *queryParser) parseArgs() ([]term.Term, error) {
	var args []term.Term
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
		return args, nil
	}
	for {
		arg, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated argument list")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, p.errorf("expected ',' or ')' at %q", p.rest())
		}
	}
}

// readName consumes a run of name characters.
func (p *queryParser) readName() string {
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *queryParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *queryParser) rest() string {
	r := p.input[p.pos:]
	if len(r) > 20 {
		r = r[:20] + "..."
	}
	return r
}

func (p *queryParser) errorf(format string, args ...any) error {
	return fmt.Errorf("query %q: %s", p.input, fmt.Sprintf(format, args...))
}

func isNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case strings.IndexByte("._-/+", b) >= 0:
		return true
	}
	return false
}

func isVariableName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return r == '_' || unicode.IsUpper(r)
}
