package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/specsql/internal/fingerprint"
)

// Status values recorded for each request.
const (
	StatusOK              = "ok"
	StatusValidationError = "validation_error"
	StatusCompileError    = "compile_error"
	StatusDatabaseError   = "database_error"
)

// Source values.
const (
	SourceCLI  = "cli"
	SourceHTTP = "http"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("audit entry not found")

// Entry is one audited request.
type Entry struct {
	Seq           int64         `json:"seq"`
	ID            string        `json:"id"`
	RequestID     string        `json:"request_id,omitempty"`
	Source        string        `json:"source"`
	SpecHash      string        `json:"spec_hash,omitempty"`
	StatementHash string        `json:"statement_hash,omitempty"`
	SQL           string        `json:"sql,omitempty"`
	Params        []any         `json:"params"`
	RowCount      int           `json:"row_count"`
	Duration      time.Duration `json:"duration_ns"`
	Status        string        `json:"status"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Record appends e and returns it with ID, Seq and CreatedAt filled in.
// A caller-supplied ID is kept.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Source == "" {
		return Entry{}, fmt.Errorf("record audit entry: source is required")
	}
	if e.Status == "" {
		return Entry{}, fmt.Errorf("record audit entry: status is required")
	}
	if e.ID == "" {
		e.ID = s.ids.NewID()
	}
	if e.Params == nil {
		e.Params = []any{}
	}
	e.CreatedAt = s.clock.Now().UTC()

	params, err := fingerprint.MarshalCanonical(e.Params)
	if err != nil {
		return Entry{}, fmt.Errorf("record audit entry: marshal params: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, request_id, source, spec_hash, statement_hash, sql_text, params, row_count, duration_us, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.RequestID,
		e.Source,
		e.SpecHash,
		e.StatementHash,
		e.SQL,
		string(params),
		e.RowCount,
		e.Duration.Microseconds(),
		e.Status,
		e.Error,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record audit entry: %w", err)
	}

	e.Seq, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("record audit entry: seq: %w", err)
	}
	e.Duration = time.Duration(e.Duration.Microseconds()) * time.Microsecond
	return e, nil
}

const selectColumns = `
	SELECT seq, id, request_id, source, spec_hash, statement_hash, sql_text, params,
	       row_count, duration_us, status, error, created_at
	FROM audit_log`

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("recent audit entries: limit must be positive, got %d", limit)
	}
	return s.query(ctx, selectColumns+` ORDER BY seq DESC LIMIT ?`, limit)
}

// ByStatement returns up to limit entries whose statement fingerprint starts
// with hash, newest first. A full fingerprint or its short form both work.
func (s *Store) ByStatement(ctx context.Context, hash string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("audit entries by statement: limit must be positive, got %d", limit)
	}
	if hash == "" {
		return nil, fmt.Errorf("audit entries by statement: hash is required")
	}
	return s.query(ctx, selectColumns+` WHERE substr(statement_hash, 1, ?) = ? ORDER BY seq DESC LIMIT ?`,
		len(hash), hash, limit)
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	entries, err := s.query(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries[0], nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e          Entry
		params     string
		durationUS int64
		createdAt  string
	)
	err := rows.Scan(&e.Seq, &e.ID, &e.RequestID, &e.Source, &e.SpecHash, &e.StatementHash,
		&e.SQL, &params, &e.RowCount, &durationUS, &e.Status, &e.Error, &createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(params)))
	dec.UseNumber()
	if err := dec.Decode(&e.Params); err != nil {
		return Entry{}, fmt.Errorf("unmarshal params of %s: %w", e.ID, err)
	}
	if e.Params == nil {
		e.Params = []any{}
	}

	e.Duration = time.Duration(durationUS) * time.Microsecond
	e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at of %s: %w", e.ID, err)
	}
	return e, nil
}
