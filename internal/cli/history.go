package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/audit"
	"github.com/roach88/specsql/internal/fingerprint"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	Limit     int
	Statement string
	ID        string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audit log entries",
		Long: `List requests recorded in the audit log, newest first.

Examples:
  specsql history
  specsql history --limit 50 --format json
  specsql history --statement 3f9a1c2b7d4e
  specsql history --id 0192c3a4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "audit database path (default: audit.path)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries")
	cmd.Flags().StringVar(&opts.Statement, "statement", "", "only entries for this statement fingerprint")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show one entry")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter

	path := opts.Database
	if path == "" {
		path = env.cfg.Audit.Path
	}
	// audit.Open creates missing files; history never should.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("audit database not found: %s", path), nil)
		return reportedExit(ExitCommandError, "audit database not found")
	}

	st, err := audit.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeAudit, err.Error(), nil)
		return reportedExit(ExitCommandError, "opening audit log")
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.ID != "" {
		entry, err := st.Get(ctx, opts.ID)
		if errors.Is(err, audit.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("audit entry not found: %s", opts.ID), nil)
			return reportedExit(ExitCommandError, "entry not found")
		}
		if err != nil {
			_ = formatter.Error(ErrCodeAudit, err.Error(), nil)
			return reportedExit(ExitCommandError, "reading audit log")
		}
		if formatter.Format == "json" {
			return formatter.Success(entry)
		}
		printEntryDetail(formatter, entry)
		return nil
	}

	var entries []audit.Entry
	if opts.Statement != "" {
		entries, err = st.ByStatement(ctx, opts.Statement, opts.Limit)
	} else {
		entries, err = st.Recent(ctx, opts.Limit)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeAudit, err.Error(), nil)
		return reportedExit(ExitCommandError, "reading audit log")
	}

	if formatter.Format == "json" {
		if entries == nil {
			entries = []audit.Entry{}
		}
		return formatter.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No audit entries.")
		return nil
	}
	for _, e := range entries {
		printEntryLine(formatter, e)
	}
	return nil
}

func printEntryLine(formatter *OutputFormatter, e audit.Entry) {
	mark := passMark()
	if e.Status != audit.StatusOK {
		mark = failMark()
	}
	stmt := fingerprint.Short(e.StatementHash)
	if stmt == "" {
		stmt = "-"
	}
	fmt.Fprintf(formatter.Writer, "%s %5d  %s  %-16s %-12s %4d rows  %s  %s\n",
		mark,
		e.Seq,
		e.CreatedAt.Format(time.RFC3339),
		e.Status,
		stmt,
		e.RowCount,
		e.Duration.Round(time.Microsecond),
		dim(e.Source))
	if e.Error != "" {
		fmt.Fprintf(formatter.Writer, "         %s\n", e.Error)
	}
}

func printEntryDetail(formatter *OutputFormatter, e audit.Entry) {
	w := formatter.Writer
	fmt.Fprintf(w, "id:         %s\n", e.ID)
	fmt.Fprintf(w, "seq:        %d\n", e.Seq)
	fmt.Fprintf(w, "source:     %s\n", e.Source)
	if e.RequestID != "" {
		fmt.Fprintf(w, "request:    %s\n", e.RequestID)
	}
	fmt.Fprintf(w, "status:     %s\n", e.Status)
	fmt.Fprintf(w, "created:    %s\n", e.CreatedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "duration:   %s\n", e.Duration)
	fmt.Fprintf(w, "rows:       %d\n", e.RowCount)
	if e.StatementHash != "" {
		fmt.Fprintf(w, "statement:  %s\n", e.StatementHash)
	}
	if e.SpecHash != "" {
		fmt.Fprintf(w, "spec:       %s\n", e.SpecHash)
	}
	if e.Error != "" {
		fmt.Fprintf(w, "error:      %s\n", e.Error)
	}
	if e.SQL != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(e.SQL))
		fmt.Fprintf(w, "params:     %v\n", e.Params)
	}
}
