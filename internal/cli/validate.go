package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/queryspec"
	"github.com/roach88/specsql/internal/specschema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	specFlags
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                         `json:"valid"`
	Errors   []specschema.ValidationError `json:"errors,omitempty"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <spec>",
		Short: "Validate a query spec without compiling",
		Long: `Check a query spec against the query JSON Schema, then lint it.

Lint warnings flag references to tables the spec never declares (they are
registered implicitly at compile time) and through_table join_on pairs that
cannot be split between the bridge and target joins. Warnings do not fail
validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "query JSON Schema file (default: embedded schema)")

	return cmd
}

func runValidate(opts *ValidateOptions, specPath string, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	doc, err := ReadSpec(specPath, cmd.InOrStdin())
	if err != nil {
		return reportLoadError(formatter, err)
	}

	validator, err := opts.validator(env.cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeSchemaLoad, err.Error(), nil)
		return reportedExit(ExitCommandError, "loading schema")
	}

	formatter.VerboseLog("Validating %s", specPath)
	result := &ValidationResult{Valid: true}
	if errs := validator.Validate(doc); len(errs) > 0 {
		result.Valid = false
		result.Errors = errs
		return outputValidationErrors(formatter, result)
	}

	spec, err := queryspec.Parse(doc)
	if err != nil {
		result.Valid = false
		result.Errors = []specschema.ValidationError{{Path: "<root>", Message: err.Error()}}
		return outputValidationErrors(formatter, result)
	}

	result.Warnings = queryspec.Lint(spec).Warnings
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs a valid spec with any lint warnings.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s Spec is valid\n", passMark())
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "%s %s\n", warnMark(), w)
	}
	return nil
}

// outputValidationErrors outputs schema violations. Invalid specs exit 1.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeValidation,
			fmt.Sprintf("spec failed validation with %d error(s)", len(result.Errors)),
			result.Errors)
		return reportedExit(ExitFailure, "validation failed")
	}

	fmt.Fprintf(formatter.Writer, "%s Spec failed validation:\n", failMark())
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Path, e.Message)
	}
	return reportedExit(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
