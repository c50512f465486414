// Package runner executes compiled statements against a database/sql
// connection and shapes the result set for JSON responses.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/specsql/internal/config"
	"github.com/roach88/specsql/internal/querysql"
)

// Drivers lists the database/sql driver names Open accepts.
var Drivers = []string{"pgx", "postgres", "sqlite3", "mysql"}

// ErrUnsupportedDriver is returned for a driver name outside Drivers.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Result is one executed statement's outcome.
type Result struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
	// SQL is the labelled statement text actually sent to the database.
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// Runner executes compiled statements. It owns no compiler state and is safe
// for concurrent use.
type Runner struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// New wraps an already open database handle.
func New(db *sql.DB, driver string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{db: db, driver: driver, logger: logger}
}

// Open connects using cfg and verifies the connection with a ping bounded by
// cfg.ConnectTimeout.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Runner, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}
	if _, err := ParamStyleFor(driver); err != nil {
		return nil, err
	}
	cfg.Driver = driver

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if driver == "sqlite3" && dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	r := New(db, driver, logger)
	r.logger.Debug("database connected", "driver", driver)
	return r, nil
}

// ParamStyleFor returns the placeholder dialect a driver understands.
func ParamStyleFor(driver string) (querysql.ParamStyle, error) {
	switch driver {
	case "", "pgx", "postgres":
		return querysql.ParamDollar, nil
	case "sqlite3", "mysql":
		return querysql.ParamQmark, nil
	default:
		return "", fmt.Errorf("%w %q (expected one of %v)", ErrUnsupportedDriver, driver, Drivers)
	}
}

// ParamStyle returns the placeholder dialect of the runner's driver.
func (r *Runner) ParamStyle() querysql.ParamStyle {
	style, err := ParamStyleFor(r.driver)
	if err != nil {
		return querysql.ParamQmark
	}
	return style
}

// Driver returns the database/sql driver name.
func (r *Runner) Driver() string {
	return r.driver
}

// DB returns the underlying handle.
func (r *Runner) DB() *sql.DB {
	return r.db
}

// Ping verifies the database is reachable.
func (r *Runner) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying handle.
func (r *Runner) Close() error {
	return r.db.Close()
}

// Execute labels the statement's projections, runs it and reads every row.
// []byte column values are returned as strings.
func (r *Runner) Execute(ctx context.Context, stmt querysql.SQL) (*Result, error) {
	text, labels := LabelColumns(stmt.Text)
	params := stmt.Params
	if params == nil {
		params = []any{}
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, text, params...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	if len(columns) == 0 {
		columns = labels
	}

	out := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(out), err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	r.logger.Debug("query executed",
		"driver", r.driver,
		"rows", len(out),
		"duration", time.Since(start),
	)

	return &Result{
		Columns:  columns,
		Rows:     out,
		RowCount: len(out),
		SQL:      text,
		Params:   params,
	}, nil
}
