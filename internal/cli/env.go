package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/config"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/queryspec"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/specschema"
)

// environment is the per-invocation state shared by commands.
type environment struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	formatter  *OutputFormatter
}

// newFormatter builds the OutputFormatter for cmd. Verbose logs go to stderr
// to avoid corrupting JSON.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadEnvironment loads configuration and sets up logging. Configuration
// problems are reported through the formatter and returned as command errors.
func loadEnvironment(opts *RootOptions, cmd *cobra.Command) (*environment, error) {
	formatter := newFormatter(opts, cmd)

	cfg, path, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, reportedExit(ExitCommandError, "loading config")
	}
	if path != "" {
		formatter.VerboseLog("Using config %s", path)
	}

	logger, err := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, reportedExit(ExitCommandError, "configuring logging")
	}

	return &environment{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		formatter:  formatter,
	}, nil
}

// newLogger builds the slog logger described by cfg. --verbose forces debug.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q (want text or json)", cfg.Format)
	}
}

// specFlags are the validation and compiler overrides shared by compile,
// validate and run.
type specFlags struct {
	ParamStyle   string
	Quote        bool
	NoValidate   bool
	Schema       string
	StrictTables bool
}

func (f *specFlags) register(cmd *cobra.Command, compiler bool) {
	cmd.Flags().BoolVar(&f.NoValidate, "no-validate", false, "skip JSON Schema validation")
	cmd.Flags().StringVar(&f.Schema, "schema", "", "query JSON Schema file (default: embedded schema)")
	if !compiler {
		return
	}
	cmd.Flags().StringVar(&f.ParamStyle, "param-style", "", "placeholder style (psycopg|qmark|named|dollar)")
	cmd.Flags().BoolVar(&f.Quote, "quote", false, "double-quote identifiers")
	cmd.Flags().BoolVar(&f.StrictTables, "strict-tables", false, "reject references to undeclared tables")
}

// compilerOptions merges config and flags. Flags win only when set.
func (f *specFlags) compilerOptions(cmd *cobra.Command, cfg config.CompilerConfig, fallback querysql.ParamStyle) (querysql.Options, error) {
	if cmd.Flags().Changed("param-style") {
		cfg.ParamStyle = f.ParamStyle
	}
	if cmd.Flags().Changed("quote") {
		cfg.QuoteIdentifiers = f.Quote
	}
	if cmd.Flags().Changed("strict-tables") {
		cfg.StrictTables = f.StrictTables
	}
	return cfg.Options(fallback)
}

// validator returns the schema validator, or nil when validation is off.
func (f *specFlags) validator(cfg *config.Config) (pipeline.Validator, error) {
	if f.NoValidate {
		return nil, nil
	}
	path := f.Schema
	if path == "" {
		path = cfg.SchemaPath
	}
	if path == "" {
		v, err := specschema.Default()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	v, err := specschema.Load(path)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// reportLoadError writes a ReadSpec failure and returns the exit error.
func reportLoadError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = f.Error(loadErr.Code, loadErr.Error(), nil)
		if loadErr.Code == ErrCodeMalformedSpec {
			return reportedExit(ExitFailure, "malformed spec")
		}
		return reportedExit(ExitCommandError, "reading spec")
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return reportedExit(ExitCommandError, "reading spec")
}

// reportPrepareError writes a pipeline.Prepare failure with the matching
// error code and returns the exit error.
func reportPrepareError(f *OutputFormatter, err error) error {
	var vf *pipeline.ValidationFailure
	switch {
	case errors.As(err, &vf):
		details := vf.Errors
		if f.Format != "json" {
			fmt.Fprintf(f.Writer, "%s Spec failed validation:\n", failMark())
			for _, e := range details {
				fmt.Fprintf(f.Writer, "  %s: %s\n", e.Path, e.Message)
			}
			return reportedExit(ExitFailure, "validation failed")
		}
		_ = f.Error(ErrCodeValidation, vf.Error(), details)
		return reportedExit(ExitFailure, "validation failed")
	case errors.Is(err, queryspec.ErrMalformed):
		_ = f.Error(ErrCodeMalformedSpec, err.Error(), nil)
		return reportedExit(ExitFailure, "malformed spec")
	case querysql.Kind(err) != "":
		var details any
		var ce *querysql.CompileError
		if errors.As(err, &ce) && ce.Path != "" {
			details = map[string]string{"kind": querysql.Kind(err), "path": ce.Path}
		}
		_ = f.Error(compileErrorCode(err), err.Error(), details)
		return reportedExit(ExitCompileError, "compile failed")
	default:
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return reportedExit(ExitCommandError, "preparing spec")
	}
}
