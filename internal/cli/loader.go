package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/hagoth/hagoth/internal/compiler"
	"github.com/hagoth/hagoth/internal/makeset"
	"github.com/hagoth/hagoth/internal/rules"
)

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the rules and command templates loaded from CUE files.
// Files contribute in sorted file-name order, so rule declaration order (and
// with it the search order) is stable across runs.
type LoadResult struct {
	Defs      []rules.Def
	Templates []makeset.Template
	FileCount int
}

// LoadError represents an error that occurred during rule loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRules loads rule files from a path: a single .cue file or a directory
// searched recursively.
func LoadRules(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules path: %v", err)}}
	}

	var files []string
	if info.IsDir() {
		files, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	} else {
		files = []string{path}
	}

	result := &LoadResult{FileCount: len(files)}
	cuectx := cuecontext.New()
	var errs []error

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", file, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		v := cuectx.CompileString(string(src), cue.Filename(file))
		if err := v.Err(); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building %s: %v", file, err)})
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		compiled, err := compiler.Compile(v)
		if err != nil {
			errs = append(errs, convertCompileError(err, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}

		result.Defs = append(result.Defs, compiled.Defs...)
		result.Templates = append(result.Templates, compiled.Templates...)
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", file, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric    = "E001" // generic/unknown error
	ErrCodeScanError  = "E002" // directory scan error
	ErrCodeNoFiles    = "E003" // no CUE files found
	ErrCodeLoadFailed = "E004" // file read failed
	ErrCodeNotFound   = "E005" // path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Rule compilation errors
	ErrCodeInvalidRule     = "E101" // malformed rule structure
	ErrCodeInvalidTerm     = "E102" // malformed term or constraint
	ErrCodeInvalidCommand  = "E103" // malformed command template
	ErrCodeInvalidRegistry = "E104" // registry validation failed
	ErrCodeInvalidQuery    = "E105" // unparseable query
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "rules", "id", "consequent", "antecedents":
		return ErrCodeInvalidRule
	case "term", "var", "capture", "capture.var", "capture.group", "pattern", "regexp", "pred", "args":
		return ErrCodeInvalidTerm
	case "commands", "command":
		return ErrCodeInvalidCommand
	default:
		return ErrCodeGeneric
	}
}
