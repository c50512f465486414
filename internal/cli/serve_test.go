package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specsql/internal/config"
)

func TestDatabaseConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want bool
	}{
		{"empty", config.DatabaseConfig{Driver: "pgx"}, false},
		{"url", config.DatabaseConfig{Driver: "pgx", URL: "postgres://localhost/game"}, true},
		{"host", config.DatabaseConfig{Driver: "mysql", Host: "db"}, true},
		{"sqlite file", config.DatabaseConfig{Driver: "sqlite3", Name: "game.db"}, true},
		{"postgres name only", config.DatabaseConfig{Driver: "pgx", Name: "game"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, databaseConfigured(tt.cfg))
		})
	}
}

// serveUntil runs serve on an ephemeral port until ctx is done.
func serveUntil(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"serve", "--addr", "127.0.0.1:0"}, args...))
	cmd.SetContext(ctx)
	return stdout.String(), cmd.Execute()
}

func TestServeStopsWhenContextDone(t *testing.T) {
	cfg := writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := serveUntil(t, ctx, "--config", cfg)
	require.NoError(t, err)
}

func TestServeWithSQLiteAndAudit(t *testing.T) {
	cfg, auditPath := sqliteConfig(t, true)

	// The database ping needs a live context, so stop the server later.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := serveUntil(t, ctx, "--config", cfg)
	require.NoError(t, err)
	assert.FileExists(t, auditPath)
}

func TestServeBadSchema(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := serveUntil(t, context.Background(), "--config", cfg, "--schema", "/nonexistent/schema.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeConnectFailure(t *testing.T) {
	cfg := writeConfig(t, "database:\n  driver: oracle\n  url: oracle://nowhere\nlog:\n  level: error\n")

	_, err := serveUntil(t, context.Background(), "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitDatabaseError, GetExitCode(err))
}
