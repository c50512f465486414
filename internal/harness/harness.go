package harness

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/runner"
	"github.com/roach88/specsql/internal/specschema"
)

// Kind names for rejected specs that are not compile errors.
const (
	KindValidation = "validation"
	KindMalformed  = "malformed"
)

// Run executes a scenario and returns the result. The returned error is
// reserved for problems with the scenario itself (bad options, unreadable
// fixture); a spec the compiler rejects is a Result, not an error.
//
// Each fixture scenario runs in a fresh in-memory database for isolation.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for fixture execution.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	doc := scenario.SpecJSON
	if doc == nil {
		return nil, fmt.Errorf("scenario %q has no spec document", scenario.Name)
	}

	opts, err := scenario.Options.compilerOptions()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: options: %w", scenario.Name, err)
	}

	var v pipeline.Validator
	if !scenario.SkipValidation {
		schema, err := specschema.Default()
		if err != nil {
			return nil, fmt.Errorf("loading query schema: %w", err)
		}
		v = schema
	}

	result := NewResult()
	p, perr := pipeline.Prepare(doc, v, querysql.NewCompiler(opts))
	if perr != nil {
		kind, err := errorKind(perr)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
		result.ErrorKind = kind
		result.Error = perr.Error()
	} else {
		result.SQL = p.SQL.Text
		result.Params = p.SQL.Params
		result.StatementHash = p.StatementHash
		result.Warnings = p.Warnings
	}

	if perr == nil && scenario.Fixture != "" {
		if err := execute(ctx, scenario.Fixture, p.SQL, result); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}
	}

	checkExpect(result, scenario.Expect)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func errorKind(err error) (string, error) {
	switch pipeline.Stage(err) {
	case pipeline.StageValidate:
		return KindValidation, nil
	case pipeline.StageParse:
		return KindMalformed, nil
	case pipeline.StageCompile:
		return querysql.Kind(err), nil
	}
	return "", err
}

// execute seeds an in-memory SQLite database from fixture and runs stmt.
func execute(ctx context.Context, fixture string, stmt querysql.SQL, result *Result) error {
	seed, err := os.ReadFile(fixture)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, string(seed)); err != nil {
		return fmt.Errorf("failed to apply fixture %s: %w", fixture, err)
	}

	r := runner.New(db, "sqlite3", slog.New(slog.NewTextHandler(io.Discard, nil)))
	res, err := r.Execute(ctx, stmt)
	if err != nil {
		result.AddError(fmt.Sprintf("execute: %v", err))
		return nil
	}
	result.Columns = res.Columns
	result.Rows = res.Rows
	return nil
}

// checkExpect compares the result with the scenario's expectations.
func checkExpect(result *Result, expect Expect) {
	if expect.Error != "" {
		if result.ErrorKind == "" {
			result.AddError(fmt.Sprintf("expected error %q, compiled to %q", expect.Error, result.SQL))
		} else if result.ErrorKind != expect.Error {
			result.AddError(fmt.Sprintf("expected error %q, got %q: %s", expect.Error, result.ErrorKind, result.Error))
		}
		return
	}
	if result.ErrorKind != "" {
		result.AddError(fmt.Sprintf("unexpected %s error: %s", result.ErrorKind, result.Error))
		return
	}

	if expect.SQL != "" && strings.TrimSpace(expect.SQL) != result.SQL {
		result.AddError(fmt.Sprintf("sql mismatch\n  expected: %s\n  actual:   %s", strings.TrimSpace(expect.SQL), result.SQL))
	}
	if expect.Params != nil && !sameJSON(*expect.Params, result.Params) {
		result.AddError(fmt.Sprintf("params mismatch\n  expected: %s\n  actual:   %s", render(*expect.Params), render(result.Params)))
	}
	for _, w := range expect.Warnings {
		if !containsAny(result.Warnings, w) {
			result.AddError(fmt.Sprintf("expected a warning containing %q, got %q", w, result.Warnings))
		}
	}
	if len(expect.Columns) > 0 && !sameJSON(expect.Columns, result.Columns) {
		result.AddError(fmt.Sprintf("columns mismatch\n  expected: %s\n  actual:   %s", render(expect.Columns), render(result.Columns)))
	}
	if expect.Rows != nil && !sameJSON(expect.Rows, result.Rows) {
		result.AddError(fmt.Sprintf("rows mismatch\n  expected: %s\n  actual:   %s", render(expect.Rows), render(result.Rows)))
	}
}

// sameJSON compares values by canonical JSON, so YAML ints match int64
// bind values and 5 matches 5.0.
func sameJSON(expected, actual any) bool {
	a, errA := fingerprint.MarshalCanonical(expected)
	b, errB := fingerprint.MarshalCanonical(actual)
	return errA == nil && errB == nil && string(a) == string(b)
}

func render(v any) string {
	data, err := fingerprint.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func containsAny(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
