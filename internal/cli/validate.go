package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hagoth/hagoth/internal/rules"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	RulesPath string
}

// ValidateReport summarizes a successful validation.
type ValidateReport struct {
	Files     int      `json:"files"`
	Rules     int      `json:"rules"`
	Types     []string `json:"types"`
	Templates int      `json:"templates"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check rule files without resolving anything",
		Long: `Load and validate rule files, reporting every error found.

Validation covers CUE syntax, rule structure, constraint patterns, capture
references, and registry rules (unique IDs, capture groups in range).

Examples:
  hagoth validate --rules ./rules
  hagoth validate --rules ./rules --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "path to CUE rule file or directory (required)")
	_ = cmd.MarkFlagRequired("rules")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	loaded, errs := LoadRules(opts.RulesPath, LoadModeCollectAll)
	if loaded == nil {
		return WrapExitError(ExitCommandError, "failed to load rules", errs[0])
	}

	// Registry construction validates what per-file compilation cannot see.
	if len(errs) == 0 {
		if _, err := rules.NewRegistry(loaded.Defs); err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeInvalidRegistry, Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		if opts.Format == "json" {
			details := make([]string, len(errs))
			for i, e := range errs {
				details[i] = e.Error()
			}
			if err := outputJSONError(cmd, validationCode(errs[0]), "validation failed", details); err != nil {
				return err
			}
		} else {
			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "error: %v\n", e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d error(s)\n", len(errs))
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	report := ValidateReport{
		Files:     loaded.FileCount,
		Rules:     len(loaded.Defs),
		Templates: len(loaded.Templates),
	}
	reg, _ := rules.NewRegistry(loaded.Defs)
	for _, key := range reg.Types() {
		report.Types = append(report.Types, key.String())
	}

	if opts.Format == "json" {
		return outputJSON(cmd, report)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "OK: %d rule(s) in %d file(s)\n", report.Rules, report.Files)
	fmt.Fprintf(w, "Rule types: %v\n", report.Types)
	fmt.Fprintf(w, "Command templates: %d\n", report.Templates)
	return nil
}

func validationCode(err error) string {
	if le, ok := err.(*LoadError); ok {
		return le.Code
	}
	return ErrCodeGeneric
}
