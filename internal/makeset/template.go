package makeset

import (
	"fmt"
	"strings"

	"github.com/hagoth/hagoth/internal/term"
)

// Template pairs a target pattern with a command line to rebuild matching
// targets. The command may reference {target}, {deps}, and the pattern's own
// named placeholders; literal braces are escaped by doubling.
type Template struct {
	pattern *term.Pattern
	command string
}

// NewTemplate compiles a command template.
func NewTemplate(pattern, command string) (Template, error) {
	p, err := term.NewPattern(pattern)
	if err != nil {
		return Template{}, fmt.Errorf("command template: %w", err)
	}
	return Template{pattern: p, command: command}, nil
}

// MustTemplate is NewTemplate that panics on error, for static tables.
func MustTemplate(pattern, command string) Template {
	t, err := NewTemplate(pattern, command)
	if err != nil {
		panic(err)
	}
	return t
}

// Pattern returns the template's target pattern source text.
func (t Template) Pattern() string { return t.pattern.String() }

// expand renders the command line for a concrete target. deps is the
// space-joined list of files the target's rule depends on.
func (t Template) expand(target, deps string) (string, error) {
	vars, ok := t.pattern.Match(target)
	if !ok {
		return "", fmt.Errorf("target %q does not match pattern %q", target, t.pattern)
	}
	vars["target"] = target
	vars["deps"] = deps

	var b strings.Builder
	tmpl := t.command
	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "{{"):
			b.WriteByte('{')
			i += 2
		case strings.HasPrefix(tmpl[i:], "}}"):
			b.WriteByte('}')
			i += 2
		case tmpl[i] == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("command %q: unterminated placeholder", tmpl)
			}
			name := tmpl[i+1 : i+end]
			val, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("command %q: unknown placeholder {%s}", tmpl, name)
			}
			b.WriteString(val)
			i += end + 1
		case tmpl[i] == '}':
			return "", fmt.Errorf("command %q: unmatched, unescaped '}'", tmpl)
		default:
			b.WriteByte(tmpl[i])
			i++
		}
	}
	return b.String(), nil
}
