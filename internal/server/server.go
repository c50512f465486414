// Package server exposes the compiler and runner over HTTP.
//
// Routes:
//
//	POST /query    validate, compile, execute and return rows
//	POST /compile  validate and compile only
//	GET  /healthz  liveness, plus a database ping when one is configured
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/specsql/internal/audit"
	"github.com/roach88/specsql/internal/pipeline"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/resultcache"
	"github.com/roach88/specsql/internal/runner"
)

// Executor runs compiled statements.
type Executor interface {
	Execute(ctx context.Context, stmt querysql.SQL) (*runner.Result, error)
}

// Pinger is implemented by executors that can report database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) (audit.Entry, error)
}

// Options wires a Server. Compiler is required; every other collaborator is
// optional.
type Options struct {
	Compiler  *querysql.Compiler
	Validator pipeline.Validator
	Executor  Executor
	Cache     resultcache.Cache
	Audit     Recorder
	Logger    *slog.Logger

	// QueryTimeout bounds compile plus execute per request. Zero disables it.
	QueryTimeout time.Duration
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// NewRequestID generates ids for requests without X-Request-ID.
	NewRequestID func() string

	// BasicAuth protects /query and /compile when its Username is set.
	BasicAuth BasicAuth
}

// BasicAuth holds the single credential pair accepted by the server.
type BasicAuth struct {
	Username string
	Password string
}

// Enabled reports whether credentials are configured.
func (a BasicAuth) Enabled() bool { return a.Username != "" }

// Server is the HTTP front end. It is safe for concurrent use.
type Server struct {
	compiler  *querysql.Compiler
	validator pipeline.Validator
	exec      Executor
	cache     resultcache.Cache
	audit     Recorder
	logger    *slog.Logger
	timeout   time.Duration
	maxBody   int64
	newID     func() string
	auth      BasicAuth
}

// New validates opts and returns a Server.
func New(opts Options) (*Server, error) {
	if opts.Compiler == nil {
		return nil, errors.New("server: compiler is required")
	}
	s := &Server{
		compiler:  opts.Compiler,
		validator: opts.Validator,
		exec:      opts.Executor,
		cache:     opts.Cache,
		audit:     opts.Audit,
		logger:    opts.Logger,
		timeout:   opts.QueryTimeout,
		maxBody:   opts.MaxBodyBytes,
		newID:     opts.NewRequestID,
		auth:      opts.BasicAuth,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// Handler returns the routed handler wrapped in request-id and access-log
// middleware. /healthz is never behind basic auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /query", s.withBasicAuth(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /compile", s.withBasicAuth(http.HandlerFunc(s.handleCompile)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(s.withAccessLog(mux))
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
