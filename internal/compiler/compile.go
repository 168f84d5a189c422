// Package compiler turns CUE rule files into structured rule definitions
// and command templates. The engine never consumes textual rule syntax; this
// package is the boundary where syntax becomes rules.Def values.
//
// A rule file looks like:
//
//	rules: [
//		{
//			id: "link"
//			consequent: {pred: "current", args: ["prog"]}
//			antecedents: [
//				{pred: "current", args: ["main.o"]},
//				{pred: "current", args: ["util.o"]},
//			]
//		},
//		{
//			id: "compile"
//			consequent: {pred: "current", args: [{var: "Obj", pattern: "{name}.o"}]}
//			antecedents: [
//				{pred: "exists", args: [{capture: {var: "Obj", group: 1}}]},
//			]
//		},
//	]
//
//	commands: [
//		{pattern: "{name}.o", command: "cc -c {name}.c -o {target}"},
//		{pattern: "prog", command: "cc {deps} -o {target}"},
//	]
//
// Argument encodings: a bare string is an atom; {var: name} is a variable,
// optionally constrained by a pattern or regexp field on its first
// occurrence; {capture: {var: name, group: n}} references a capture group of
// a previously declared variable; {pred: name, args: [...]} nests a
// compound. Variable names are scoped to one rule.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/hagoth/hagoth/internal/makeset"
	"github.com/hagoth/hagoth/internal/rules"
	"github.com/hagoth/hagoth/internal/term"
)

// File is the compiled content of one rule file.
type File struct {
	Defs      []rules.Def
	Templates []makeset.Template
}

// Compile parses a CUE value holding a whole rule file.
// Uses the CUE SDK's Go API directly (not CLI subprocess):
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	file, err := compiler.Compile(v)
func Compile(v cue.Value) (*File, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	file := &File{}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if rulesVal.Exists() {
		iter, err := rulesVal.List()
		if err != nil {
			return nil, &CompileError{
				Field:   "rules",
				Message: "rules must be a list",
				Pos:     rulesVal.Pos(),
			}
		}
		for i := 0; iter.Next(); i++ {
			def, err := compileRule(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", i, err)
			}
			file.Defs = append(file.Defs, def)
		}
	}

	cmdsVal := v.LookupPath(cue.ParsePath("commands"))
	if cmdsVal.Exists() {
		iter, err := cmdsVal.List()
		if err != nil {
			return nil, &CompileError{
				Field:   "commands",
				Message: "commands must be a list",
				Pos:     cmdsVal.Pos(),
			}
		}
		for i := 0; iter.Next(); i++ {
			tmpl, err := compileTemplate(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("commands[%d]: %w", i, err)
			}
			file.Templates = append(file.Templates, tmpl)
		}
	}

	if len(file.Defs) == 0 {
		return nil, &CompileError{
			Field:   "rules",
			Message: "rule file declares no rules",
			Pos:     v.Pos(),
		}
	}

	return file, nil
}

// compileRule parses one rule struct. Variable names share one scope across
// the rule's consequent and antecedents.
func compileRule(v cue.Value) (rules.Def, error) {
	def := rules.Def{}
	scope := make(map[string]*term.Var)

	idVal := v.LookupPath(cue.ParsePath("id"))
	if idVal.Exists() {
		id, err := idVal.String()
		if err != nil {
			return def, &CompileError{
				Field:   "id",
				Message: "id must be a string",
				Pos:     idVal.Pos(),
			}
		}
		def.ID = id
	}

	consVal := v.LookupPath(cue.ParsePath("consequent"))
	if !consVal.Exists() {
		return def, &CompileError{
			Field:   "consequent",
			Message: "consequent is required",
			Pos:     v.Pos(),
		}
	}
	cons, err := compileTerm(consVal, scope)
	if err != nil {
		return def, err
	}
	consCompound, ok := cons.(term.Compound)
	if !ok {
		return def, &CompileError{
			Field:   "consequent",
			Message: "consequent must be a predicate ({pred, args})",
			Pos:     consVal.Pos(),
		}
	}
	def.Consequent = consCompound

	antsVal := v.LookupPath(cue.ParsePath("antecedents"))
	if antsVal.Exists() {
		iter, err := antsVal.List()
		if err != nil {
			return def, &CompileError{
				Field:   "antecedents",
				Message: "antecedents must be a list",
				Pos:     antsVal.Pos(),
			}
		}
		for iter.Next() {
			ant, err := compileTerm(iter.Value(), scope)
			if err != nil {
				return def, err
			}
			def.Antecedents = append(def.Antecedents, ant)
		}
	}

	return def, nil
}

// compileTerm parses one term encoding.
func compileTerm(v cue.Value, scope map[string]*term.Var) (term.Term, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return term.NewAtom(s), nil

	case cue.StructKind:
		if pv := v.LookupPath(cue.ParsePath("pred")); pv.Exists() {
			return compileCompound(v, pv, scope)
		}
		if cv := v.LookupPath(cue.ParsePath("capture")); cv.Exists() {
			return compileCapture(cv, scope)
		}
		if vv := v.LookupPath(cue.ParsePath("var")); vv.Exists() {
			return compileVar(v, vv, scope)
		}
		return nil, &CompileError{
			Field:   "term",
			Message: "term struct needs a pred, var, or capture field",
			Pos:     v.Pos(),
		}

	default:
		return nil, &CompileError{
			Field:   "term",
			Message: fmt.Sprintf("unsupported term kind %s (want string or struct)", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func compileCompound(v, predVal cue.Value, scope map[string]*term.Var) (term.Term, error) {
	functor, err := predVal.String()
	if err != nil {
		return nil, &CompileError{
			Field:   "pred",
			Message: "pred must be a string",
			Pos:     predVal.Pos(),
		}
	}

	var args []term.Term
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		iter, err := argsVal.List()
		if err != nil {
			return nil, &CompileError{
				Field:   "args",
				Message: "args must be a list",
				Pos:     argsVal.Pos(),
			}
		}
		for iter.Next() {
			arg, err := compileTerm(iter.Value(), scope)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
	}

	return term.Compound{Functor: functor, Args: args}, nil
}

func compileVar(v, nameVal cue.Value, scope map[string]*term.Var) (term.Term, error) {
	name, err := nameVal.String()
	if err != nil {
		return nil, &CompileError{
			Field:   "var",
			Message: "var must be a string",
			Pos:     nameVal.Pos(),
		}
	}

	constraint, err := compileConstraint(v)
	if err != nil {
		return nil, err
	}

	if existing, ok := scope[name]; ok {
		if constraint != nil {
			return nil, &CompileError{
				Field:   "var",
				Message: fmt.Sprintf("constraint for {%s} must appear on its first occurrence", name),
				Pos:     v.Pos(),
			}
		}
		return existing, nil
	}

	nv := term.NewConstrainedVar(name, constraint)
	scope[name] = nv
	return nv, nil
}

// compileConstraint reads an optional pattern or regexp field.
func compileConstraint(v cue.Value) (term.Constraint, error) {
	patVal := v.LookupPath(cue.ParsePath("pattern"))
	reVal := v.LookupPath(cue.ParsePath("regexp"))

	if patVal.Exists() && reVal.Exists() {
		return nil, &CompileError{
			Field:   "var",
			Message: "a variable takes a pattern or a regexp, not both",
			Pos:     v.Pos(),
		}
	}

	if patVal.Exists() {
		src, err := patVal.String()
		if err != nil {
			return nil, &CompileError{
				Field:   "pattern",
				Message: "pattern must be a string",
				Pos:     patVal.Pos(),
			}
		}
		p, err := term.NewPattern(src)
		if err != nil {
			return nil, &CompileError{
				Field:   "pattern",
				Message: err.Error(),
				Pos:     patVal.Pos(),
			}
		}
		return p, nil
	}

	if reVal.Exists() {
		src, err := reVal.String()
		if err != nil {
			return nil, &CompileError{
				Field:   "regexp",
				Message: "regexp must be a string",
				Pos:     reVal.Pos(),
			}
		}
		r, err := term.NewRegexp(src)
		if err != nil {
			return nil, &CompileError{
				Field:   "regexp",
				Message: err.Error(),
				Pos:     reVal.Pos(),
			}
		}
		return r, nil
	}

	return nil, nil
}

func compileCapture(cv cue.Value, scope map[string]*term.Var) (term.Term, error) {
	nameVal := cv.LookupPath(cue.ParsePath("var"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "capture",
			Message: "capture requires a var field",
			Pos:     cv.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, &CompileError{
			Field:   "capture.var",
			Message: "var must be a string",
			Pos:     nameVal.Pos(),
		}
	}

	parent, ok := scope[name]
	if !ok {
		return nil, &CompileError{
			Field:   "capture",
			Message: fmt.Sprintf("capture of {%s}, which is not declared earlier in the rule", name),
			Pos:     cv.Pos(),
		}
	}

	groupVal := cv.LookupPath(cue.ParsePath("group"))
	if !groupVal.Exists() {
		return nil, &CompileError{
			Field:   "capture",
			Message: "capture requires a group field",
			Pos:     cv.Pos(),
		}
	}
	group, err := groupVal.Int64()
	if err != nil {
		return nil, &CompileError{
			Field:   "capture.group",
			Message: "group must be an integer",
			Pos:     groupVal.Pos(),
		}
	}

	return term.NewCaptureRef(parent, int(group)), nil
}

// compileTemplate parses one {pattern, command} entry.
func compileTemplate(v cue.Value) (makeset.Template, error) {
	patVal := v.LookupPath(cue.ParsePath("pattern"))
	if !patVal.Exists() {
		return makeset.Template{}, &CompileError{
			Field:   "pattern",
			Message: "command entry requires a pattern field",
			Pos:     v.Pos(),
		}
	}
	pattern, err := patVal.String()
	if err != nil {
		return makeset.Template{}, &CompileError{
			Field:   "pattern",
			Message: "pattern must be a string",
			Pos:     patVal.Pos(),
		}
	}

	cmdVal := v.LookupPath(cue.ParsePath("command"))
	if !cmdVal.Exists() {
		return makeset.Template{}, &CompileError{
			Field:   "command",
			Message: "command entry requires a command field",
			Pos:     v.Pos(),
		}
	}
	command, err := cmdVal.String()
	if err != nil {
		return makeset.Template{}, &CompileError{
			Field:   "command",
			Message: "command must be a string",
			Pos:     cmdVal.Pos(),
		}
	}

	tmpl, err := makeset.NewTemplate(pattern, command)
	if err != nil {
		return makeset.Template{}, &CompileError{
			Field:   "command",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return tmpl, nil
}

// CompileError is a rule-file compilation failure with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return firstErr
}
