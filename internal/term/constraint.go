package term

import (
	"fmt"
	"regexp"
	"strings"
)

// Capture is one sub-binding produced when a constraint accepts a value.
// Groups are numbered from 1, left to right.
type Capture struct {
	Group int
	Value Term
}

// Constraint is a pluggable acceptance predicate for a variable. Apply is
// called with a fully ground term; a nil error means the value is accepted
// and the returned captures become sub-bindings of the variable. A non-nil
// error rejects the value and fails the unification step that grounded it.
type Constraint interface {
	Apply(ground Term) ([]Capture, error)

	// Groups returns how many capture groups an accepted value produces.
	Groups() int

	// String renders the constraint for traces and error messages.
	String() string
}

// Regexp is a constraint that accepts atoms matching an anchored regular
// expression. Submatches become capture groups.
type Regexp struct {
	re *regexp.Regexp
}

// NewRegexp compiles a regular expression constraint. The expression is
// anchored on both ends if not already.
func NewRegexp(expr string) (*Regexp, error) {
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	if !strings.HasSuffix(expr, "$") {
		expr += "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile regexp constraint: %w", err)
	}
	return &Regexp{re: re}, nil
}

// Apply matches the atom against the expression. Non-atom values are
// rejected: patterns describe opaque values, not structure.
func (r *Regexp) Apply(ground Term) ([]Capture, error) {
	a, ok := ground.(Atom)
	if !ok {
		return nil, fmt.Errorf("regexp %s: value %s is not an atom", r.re, Format(ground))
	}
	m := r.re.FindStringSubmatch(string(a))
	if m == nil {
		return nil, fmt.Errorf("regexp %s: no match for %q", r.re, string(a))
	}
	caps := make([]Capture, 0, len(m)-1)
	for i := 1; i < len(m); i++ {
		caps = append(caps, Capture{Group: i, Value: NewAtom(m[i])})
	}
	return caps, nil
}

// Groups returns the number of capture groups in the expression.
func (r *Regexp) Groups() int { return r.re.NumSubexp() }

func (r *Regexp) String() string { return r.re.String() }

// Pattern is a substitution-string constraint in the "{name}.c" style:
// literal text with {name} placeholders, each matching a non-empty run of
// characters. Literal braces are escaped by doubling ("{{" and "}}").
// Placeholders become capture groups numbered left to right from 1.
//
// When a value admits more than one split between adjacent placeholders,
// the leftmost match under the compiled regexp wins. Matching is
// deterministic but does not enumerate alternatives.
type Pattern struct {
	source string
	names  []string
	re     *regexp.Regexp
}

// NewPattern parses and compiles a substitution pattern.
func NewPattern(pattern string) (*Pattern, error) {
	tokens, err := splitPattern(pattern)
	if err != nil {
		return nil, err
	}

	var names []string
	var expr strings.Builder
	expr.WriteString("^")
	prevVar := false
	for _, tok := range tokens {
		if tok.variable {
			if prevVar {
				return nil, fmt.Errorf("pattern %q: adjacent variables {%s} are ambiguous", pattern, tok.text)
			}
			names = append(names, tok.text)
			expr.WriteString("(.+?)")
			prevVar = true
			continue
		}
		expr.WriteString(regexp.QuoteMeta(tok.text))
		prevVar = false
	}
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &Pattern{source: pattern, names: names, re: re}, nil
}

// MustPattern is NewPattern that panics on error, for static patterns.
func MustPattern(pattern string) *Pattern {
	p, err := NewPattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Apply matches an atom against the pattern.
func (p *Pattern) Apply(ground Term) ([]Capture, error) {
	a, ok := ground.(Atom)
	if !ok {
		return nil, fmt.Errorf("pattern %q: value %s is not an atom", p.source, Format(ground))
	}
	m := p.re.FindStringSubmatch(string(a))
	if m == nil {
		return nil, fmt.Errorf("pattern %q: no match for %q", p.source, string(a))
	}
	caps := make([]Capture, 0, len(m)-1)
	for i := 1; i < len(m); i++ {
		caps = append(caps, Capture{Group: i, Value: NewAtom(m[i])})
	}
	return caps, nil
}

// Groups returns the number of placeholders in the pattern.
func (p *Pattern) Groups() int { return len(p.names) }

func (p *Pattern) String() string { return p.source }

// Names returns the placeholder names in capture-group order.
func (p *Pattern) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Match applies the pattern to a raw string and returns name -> matched
// text. Used by ruleset collaborators for command-template expansion.
func (p *Pattern) Match(value string) (map[string]string, bool) {
	m := p.re.FindStringSubmatch(value)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, len(p.names))
	for i, name := range p.names {
		out[name] = m[i+1]
	}
	return out, true
}

// patternToken is one literal run or one {name} placeholder.
type patternToken struct {
	text     string
	variable bool
}

// splitPattern tokenizes a substitution pattern. Doubled braces are literal.
func splitPattern(pattern string) ([]patternToken, error) {
	var tokens []patternToken
	var lit strings.Builder

	flushLit := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, patternToken{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(pattern); {
		switch pattern[i] {
		case '{':
			if i+1 < len(pattern) && pattern[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("pattern %q: unterminated variable", pattern)
			}
			name := pattern[i+1 : i+1+end]
			if name == "" {
				return nil, fmt.Errorf("pattern %q: empty variable name", pattern)
			}
			if strings.ContainsAny(name, "{}") {
				return nil, fmt.Errorf("pattern %q: invalid variable name %q", pattern, name)
			}
			flushLit()
			tokens = append(tokens, patternToken{text: name, variable: true})
			i += end + 2
		case '}':
			if i+1 < len(pattern) && pattern[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, fmt.Errorf("pattern %q: unmatched, unescaped '}'", pattern)
		default:
			lit.WriteByte(pattern[i])
			i++
		}
	}
	flushLit()
	return tokens, nil
}
