package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/introspect"
)

// IntrospectOptions holds flags for the introspect command.
type IntrospectOptions struct {
	*RootOptions
	Schemas []string
	Table   string
}

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IntrospectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Describe the tables and columns of a PostgreSQL database",
		Long: `Read table and column metadata from the PostgreSQL system catalogs:
column types, nullability, defaults and comments.

Use it to find the names a query spec can reference.

Examples:
  specsql introspect --format json
  specsql introspect --schema public --schema game --table npcs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntrospect(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Schemas, "schema", nil, "schemas to describe (default: database.schemas)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "describe a single table")

	return cmd
}

func runIntrospect(opts *IntrospectOptions, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter
	dbCfg := env.cfg.Database

	switch dbCfg.Driver {
	case "", "pgx", "postgres":
	default:
		_ = formatter.Error(ErrCodeConfig, fmt.Sprintf("introspect needs a PostgreSQL database, not %q", dbCfg.Driver), nil)
		return reportedExit(ExitCommandError, "unsupported driver")
	}

	dsn, err := dbCfg.DSN()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return reportedExit(ExitCommandError, "database config")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx := ctx
	if dbCfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, dbCfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := pgx.Connect(connectCtx, dsn)
	if err != nil {
		_ = formatter.Error(ErrCodeConnect, err.Error(), nil)
		return reportedExit(ExitDatabaseError, "connecting")
	}
	defer conn.Close(context.WithoutCancel(ctx))

	schemas := opts.Schemas
	if len(schemas) == 0 {
		schemas = dbCfg.Schemas
	}
	formatter.VerboseLog("Describing schemas %v", schemas)

	catalog, err := introspect.Describe(ctx, conn, schemas)
	if err != nil {
		_ = formatter.Error(ErrCodeIntrospect, err.Error(), nil)
		return reportedExit(ExitDatabaseError, "describing catalog")
	}

	if opts.Table != "" {
		table, ok := catalog.Table(opts.Table)
		if !ok {
			_ = formatter.Error(ErrCodeNotFound,
				fmt.Sprintf("table %q not found in schemas %v", opts.Table, catalog.Schemas),
				catalog.TableNames())
			return reportedExit(ExitCommandError, "table not found")
		}
		if formatter.Format == "json" {
			return formatter.Success(table)
		}
		printTable(formatter, table)
		return nil
	}

	if formatter.Format == "json" {
		return formatter.Success(catalog)
	}
	fmt.Fprintf(formatter.Writer, "%s %d table(s) in %v\n\n", passMark(), len(catalog.Tables), catalog.Schemas)
	for i := range catalog.Tables {
		printTable(formatter, &catalog.Tables[i])
	}
	return nil
}

func printTable(formatter *OutputFormatter, t *introspect.Table) {
	fmt.Fprintf(formatter.Writer, "%s.%s", t.Schema, t.Name)
	if t.Comment != nil {
		fmt.Fprintf(formatter.Writer, "  %s", dim("-- "+*t.Comment))
	}
	fmt.Fprintln(formatter.Writer)
	for _, c := range t.Columns {
		null := "not null"
		if c.IsNullable {
			null = "null"
		}
		fmt.Fprintf(formatter.Writer, "  %-24s %-28s %s", c.Name, c.DataType, null)
		if c.Default != nil {
			fmt.Fprintf(formatter.Writer, " default %s", *c.Default)
		}
		if c.Comment != nil {
			fmt.Fprintf(formatter.Writer, "  %s", dim("-- "+*c.Comment))
		}
		fmt.Fprintln(formatter.Writer)
	}
	fmt.Fprintln(formatter.Writer)
}
