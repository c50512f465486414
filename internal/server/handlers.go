package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/specsql/internal/audit"
	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/runner"
	"github.com/roach88/specsql/internal/specschema"
)

// errorBody is the failure envelope of every route.
type errorBody struct {
	OK      bool                         `json:"ok"`
	Error   string                       `json:"error"`
	Kind    string                       `json:"kind,omitempty"`
	Details string                       `json:"details,omitempty"`
	Errors  []specschema.ValidationError `json:"errors,omitempty"`
}

type queryBody struct {
	OK       bool     `json:"ok"`
	RowCount int      `json:"row_count"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	SQL      string   `json:"sql"`
	Params   []any    `json:"params"`
}

type compileBody struct {
	OK          bool     `json:"ok"`
	SQL         string   `json:"sql"`
	Params      []any    `json:"params"`
	Fingerprint string   `json:"fingerprint"`
	Warnings    []string `json:"warnings"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// readBody returns the request body. An empty body reads as "{}" so it
// fails schema validation like any other incomplete spec.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Kind:  "body_too_large",
			})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "reading request body: " + err.Error(), Kind: "bad_request"})
		return nil, false
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	return data, true
}

// prepare runs the shared pipeline and writes the 400 response on failure.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request, doc []byte) (*pipeline.Prepared, error) {
	p, err := pipeline.Prepare(doc, s.validator, s.compiler)
	if err == nil {
		return p, nil
	}

	logger := s.logger.With("request_id", RequestID(r.Context()), "path", r.URL.Path)
	var vf *pipeline.ValidationFailure
	switch {
	case errors.As(err, &vf):
		logger.Info("spec rejected", "kind", "validation", "errors", len(vf.Errors))
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "ValidationError: " + vf.Errors[0].Message,
			Kind:    "validation",
			Details: vf.Details(),
			Errors:  vf.Errors,
		})
	case pipeline.Stage(err) == pipeline.StageParse:
		logger.Info("spec rejected", "kind", "malformed", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "malformed"})
	case pipeline.Stage(err) == pipeline.StageCompile:
		logger.Info("spec rejected", "kind", "compile", "error_kind", querysql.Kind(err), "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: querysql.Kind(err)})
	default:
		logger.Error("prepare failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
	return nil, err
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readBody(w, r)
	if !ok {
		return
	}
	p, err := s.prepare(w, r, doc)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, compileBody{
		OK:          true,
		SQL:         p.SQL.Text,
		Params:      p.SQL.Params,
		Fingerprint: p.StatementHash,
		Warnings:    p.Warnings,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.exec == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "no database configured", Kind: "unavailable"})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	entry := audit.Entry{Source: audit.SourceHTTP, RequestID: RequestID(ctx)}

	doc, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if fp, err := fingerprint.Spec(doc); err == nil {
		entry.SpecHash = fp
	}

	p, err := s.prepare(w, r, doc)
	if err != nil {
		entry.Status = audit.StatusCompileError
		if pipeline.Stage(err) == pipeline.StageValidate || pipeline.Stage(err) == pipeline.StageParse {
			entry.Status = audit.StatusValidationError
		}
		entry.Error = err.Error()
		s.record(ctx, entry, start)
		return
	}
	entry.StatementHash = p.StatementHash
	entry.SQL = p.SQL.Text
	entry.Params = p.SQL.Params

	logger := s.logger.With("request_id", entry.RequestID, "statement", fingerprint.Short(p.StatementHash))

	res, hit := s.cached(ctx, logger, p.StatementHash)
	if !hit {
		res, err = s.exec.Execute(ctx, p.SQL)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			logger.Error("query failed", "kind", "database", "error", err)
			writeJSON(w, status, errorBody{Error: err.Error(), Kind: "database"})

			entry.Status = audit.StatusDatabaseError
			entry.Error = err.Error()
			s.record(ctx, entry, start)
			return
		}
		s.store(ctx, logger, p.StatementHash, res)
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	}
	writeJSON(w, http.StatusOK, queryBody{
		OK:       true,
		RowCount: res.RowCount,
		Columns:  res.Columns,
		Rows:     res.Rows,
		SQL:      res.SQL,
		Params:   p.SQL.Params,
	})

	entry.Status = audit.StatusOK
	entry.SQL = res.SQL
	entry.RowCount = res.RowCount
	s.record(ctx, entry, start)
}

// cached looks key up. Cache failures are logged and treated as misses.
func (s *Server) cached(ctx context.Context, logger *slog.Logger, key string) (*runner.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	res, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", "error", err)
		return nil, false
	}
	return res, ok
}

func (s *Server) store(ctx context.Context, logger *slog.Logger, key string, res *runner.Result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, res); err != nil {
		logger.Warn("cache set failed", "error", err)
	}
}

// record writes the audit entry. Failures are logged and never change the
// response.
func (s *Server) record(ctx context.Context, e audit.Entry, start time.Time) {
	if s.audit == nil {
		return
	}
	e.Duration = time.Since(start)
	// The request context may already be past its deadline.
	if _, err := s.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("audit record failed", "request_id", e.RequestID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.exec.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Kind: "database"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
