package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/audit"
	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	specFlags
	Timeout time.Duration
	NoAudit bool

	// Clock overrides time measurement (for testing).
	Clock func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <spec>",
		Short: "Compile a query spec and execute it",
		Long: `Validate and compile a query spec, execute it against the configured
database and print the rows.

Projected alias.column items are labelled "alias__column" so columns from
different tables never collide. The placeholder style follows the database
driver unless compiler.param_style or --param-style says otherwise.

When audit.enabled is set, every run is recorded in the audit log.

Example:
  specsql run query.json
  SPECSQL_DATABASE_URL=postgres://localhost/game specsql run query.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.specFlags.register(cmd, true)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "query timeout (default: server.query_timeout)")
	cmd.Flags().BoolVar(&opts.NoAudit, "no-audit", false, "do not record this run in the audit log")

	return cmd
}

func runQuery(opts *RunOptions, specPath string, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter
	logger := env.logger
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := ReadSpec(specPath, cmd.InOrStdin())
	if err != nil {
		return reportLoadError(formatter, err)
	}

	validator, err := opts.validator(env.cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeSchemaLoad, err.Error(), nil)
		return reportedExit(ExitCommandError, "loading schema")
	}

	logger.Debug("opening database", "driver", env.cfg.Database.Driver)
	r, err := runner.Open(ctx, env.cfg.Database, logger)
	if err != nil {
		_ = formatter.Error(ErrCodeConnect, err.Error(), nil)
		return reportedExit(ExitDatabaseError, "opening database")
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	compilerOpts, err := opts.compilerOptions(cmd, env.cfg.Compiler, r.ParamStyle())
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return reportedExit(ExitCommandError, "compiler options")
	}

	recorder := openRecorder(env, opts.NoAudit)
	if recorder != nil {
		defer recorder.Close()
	}

	start := now()
	prepared, err := pipeline.Prepare(doc, validator, querysql.NewCompiler(compilerOpts))
	if err != nil {
		logger.Info("spec rejected", "stage", pipeline.Stage(err), "kind", querysql.Kind(err), "error", err)
		recordRun(ctx, recorder, logger, audit.Entry{
			Status:   statusFor(err),
			Error:    err.Error(),
			Duration: now().Sub(start),
		})
		return reportPrepareError(formatter, err)
	}
	for _, w := range prepared.Warnings {
		logger.Warn("lint", "warning", w)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = env.cfg.Server.QueryTimeout
	}
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	formatter.VerboseLog("Executing %s", prepared.SQL.Text)
	result, err := r.Execute(execCtx, prepared.SQL)
	entry := audit.Entry{
		SpecHash:      prepared.SpecHash,
		StatementHash: prepared.StatementHash,
		SQL:           prepared.SQL.Text,
		Params:        prepared.SQL.Params,
		Duration:      now().Sub(start),
	}
	if err != nil {
		entry.Status = audit.StatusDatabaseError
		entry.Error = err.Error()
		recordRun(ctx, recorder, logger, entry)

		code := ErrCodeQuery
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		_ = formatter.Error(code, err.Error(), nil)
		return reportedExit(ExitDatabaseError, "query failed")
	}
	entry.Status = audit.StatusOK
	entry.RowCount = result.RowCount
	recorded := recordRun(ctx, recorder, logger, entry)

	logger.Info("query executed",
		"statement", fingerprint.Short(prepared.StatementHash),
		"rows", result.RowCount,
		"duration", entry.Duration)

	return outputRunSuccess(formatter, result, recorded.ID)
}

// openRecorder opens the audit log when enabled. Failures are logged and the
// run continues without auditing.
func openRecorder(env *environment, disabled bool) *audit.Store {
	if disabled || !env.cfg.Audit.Enabled {
		return nil
	}
	st, err := audit.Open(env.cfg.Audit.Path)
	if err != nil {
		env.logger.Warn("audit log unavailable", "path", env.cfg.Audit.Path, "error", err)
		return nil
	}
	return st
}

func recordRun(ctx context.Context, st *audit.Store, logger *slog.Logger, e audit.Entry) audit.Entry {
	if st == nil {
		return audit.Entry{}
	}
	e.Source = audit.SourceCLI
	recorded, err := st.Record(context.WithoutCancel(ctx), e)
	if err != nil {
		logger.Warn("audit record failed", "error", err)
		return audit.Entry{}
	}
	return recorded
}

func statusFor(err error) string {
	switch pipeline.Stage(err) {
	case pipeline.StageValidate, pipeline.StageParse:
		return audit.StatusValidationError
	default:
		return audit.StatusCompileError
	}
}

// outputRunSuccess prints rows as a table, or the result object in JSON.
func outputRunSuccess(formatter *OutputFormatter, result *runner.Result, auditID string) error {
	if formatter.Format == "json" {
		return formatter.SuccessWithTrace(result, auditID)
	}

	if len(result.Columns) > 0 {
		table := pterm.TableData{result.Columns}
		for _, row := range result.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatCell(v)
			}
			table = append(table, cells)
		}
		rendered, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
		if err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
		fmt.Fprintln(formatter.Writer, rendered)
	}

	noun := "rows"
	if result.RowCount == 1 {
		noun = "row"
	}
	fmt.Fprintf(formatter.Writer, "%s %d %s\n", passMark(), result.RowCount, noun)
	if auditID != "" {
		fmt.Fprintln(formatter.Writer, dim("audit "+auditID))
	}
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
