package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/specsql/internal/config"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/resultcache"
	"github.com/roach88/specsql/internal/runner"
	"github.com/roach88/specsql/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	specFlags
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler and runner over HTTP",
		Long: `Start the HTTP front end.

Routes:
  POST /query    validate, compile, execute and return rows
  POST /compile  validate and compile only
  GET  /healthz  liveness, plus a database ping when one is configured

Without database settings only /compile is usable; /query answers 503.
The Redis result cache and the audit log are enabled from config.
Setting server.basic_auth.username (or SPECSQL_SERVER_BASIC_AUTH_USERNAME)
puts /query and /compile behind HTTP Basic auth; /healthz stays open.

Example:
  specsql serve --addr :8080
  SPECSQL_CACHE_ENABLED=true specsql serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	opts.specFlags.register(cmd, false)
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	env, err := loadEnvironment(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	formatter := env.formatter
	logger := env.logger
	cfg := env.cfg

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	validator, err := opts.validator(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeSchemaLoad, err.Error(), nil)
		return reportedExit(ExitCommandError, "loading schema")
	}

	serverOpts := server.Options{
		Validator:    validator,
		Logger:       logger,
		QueryTimeout: cfg.Server.QueryTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		BasicAuth: server.BasicAuth{
			Username: cfg.Server.BasicAuth.Username,
			Password: cfg.Server.BasicAuth.Password,
		},
	}
	if !serverOpts.BasicAuth.Enabled() {
		logger.Warn("basic auth is not configured; /query and /compile are open")
	}

	style := querysql.DefaultOptions().ParamStyle
	if databaseConfigured(cfg.Database) {
		r, err := runner.Open(ctx, cfg.Database, logger)
		if err != nil {
			_ = formatter.Error(ErrCodeConnect, err.Error(), nil)
			return reportedExit(ExitDatabaseError, "opening database")
		}
		defer func() {
			if closeErr := r.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		serverOpts.Executor = r
		style = r.ParamStyle()
	} else {
		logger.Warn("no database configured; /query is disabled")
	}

	compilerOpts, err := cfg.Compiler.Options(style)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return reportedExit(ExitCommandError, "compiler options")
	}
	serverOpts.Compiler = querysql.NewCompiler(compilerOpts)

	if cfg.Cache.Enabled {
		cache, client, err := resultcache.Dial(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("result cache unavailable", "addr", cfg.Cache.Addr, "error", err)
		} else {
			defer client.Close()
			serverOpts.Cache = cache
			logger.Info("result cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	if recorder := openRecorder(env, false); recorder != nil {
		defer recorder.Close()
		serverOpts.Audit = recorder
		logger.Info("audit log enabled", "path", cfg.Audit.Path)
	}

	srv, err := server.New(serverOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuring server", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if err := server.ListenAndServe(ctx, addr, srv.Handler(), logger); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return reportedExit(ExitCommandError, "serving")
	}

	logger.Info("server stopped gracefully")
	return nil
}

// databaseConfigured reports whether cfg names a database to connect to.
func databaseConfigured(cfg config.DatabaseConfig) bool {
	return cfg.URL != "" || cfg.Host != "" || (cfg.Driver == "sqlite3" && cfg.Name != "")
}
