package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	specFlags
	Output string // output file path
}

// CompilationResult is the compile command's payload.
type CompilationResult struct {
	SQL           string   `json:"sql"`
	Params        []any    `json:"params"`
	ParamStyle    string   `json:"param_style"`
	SpecHash      string   `json:"spec_hash"`
	StatementHash string   `json:"statement_hash"`
	Warnings      []string `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <spec>",
		Short: "Compile a query spec to parameterized SQL",
		Long: `Validate a query spec against the query JSON Schema and compile it
to one SELECT statement plus its ordered bind values.

The spec may be .json, .yaml or .yml, or "-" for stdin.

Examples:
  specsql compile query.json
  specsql compile query.yaml --param-style qmark --quote
  specsql compile query.json --format json -o query.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.specFlags.register(cmd, true)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the SQL text to this file")

	return cmd
}

func runCompile(opts *CompileOptions, specPath string, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	doc, err := ReadSpec(specPath, cmd.InOrStdin())
	if err != nil {
		return reportLoadError(formatter, err)
	}

	compilerOpts, err := opts.compilerOptions(cmd, env.cfg.Compiler, querysql.DefaultOptions().ParamStyle)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return reportedExit(ExitCommandError, "compiler options")
	}
	validator, err := opts.validator(env.cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeSchemaLoad, err.Error(), nil)
		return reportedExit(ExitCommandError, "loading schema")
	}
	formatter.VerboseLog("Compiling %s (param style %s, quote %t)", specPath, compilerOpts.ParamStyle, compilerOpts.QuoteIdentifiers)

	prepared, err := pipeline.Prepare(doc, validator, querysql.NewCompiler(compilerOpts))
	if err != nil {
		env.logger.Debug("spec rejected", "stage", pipeline.Stage(err), "kind", querysql.Kind(err), "error", err)
		return reportPrepareError(formatter, err)
	}

	result := &CompilationResult{
		SQL:           prepared.SQL.Text,
		Params:        prepared.SQL.Params,
		ParamStyle:    string(compilerOpts.ParamStyle),
		SpecHash:      prepared.SpecHash,
		StatementHash: prepared.StatementHash,
		Warnings:      prepared.Warnings,
	}
	if result.Params == nil {
		result.Params = []any{}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.SQL+"\n"), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return reportedExit(ExitCommandError, "writing output")
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs a successful compilation.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.SQL)
	params, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	fmt.Fprintf(formatter.Writer, "\nParams: %s\n", params)
	fmt.Fprintf(formatter.Writer, "%s\n", dim("statement "+fingerprint.Short(result.StatementHash)))

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "%s %s\n", warnMark(), w)
	}
	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "%s Wrote SQL to %s\n", passMark(), outputFile)
	}
	return nil
}
