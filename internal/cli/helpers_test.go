package cli

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specsql/internal/testutil"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const npcSpec = `{
  "source_table": "npcs",
  "fields": ["id", "name"],
  "filter": {"field": "npcs.level", "operator": ">", "value": 10},
  "order_by": [{"field": "npcs.name"}]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeConfig writes a specsql.yaml so tests never pick up a config file
// from the working tree.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	if body == "" {
		body = "log:\n  level: error\n"
	}
	return writeFile(t, t.TempDir(), "specsql.yaml", body)
}

// seededSQLite creates a file database holding the NPC fixture.
func seededSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, testutil.Seed(context.Background(), db))
	return path
}

// sqliteConfig points the database at a seeded fixture and the audit log at
// a fresh file. It returns the config path and the audit database path.
func sqliteConfig(t *testing.T, auditEnabled bool) (string, string) {
	t.Helper()
	dbPath := seededSQLite(t)
	auditPath := filepath.Join(t.TempDir(), "audit.db")
	enabled := "false"
	if auditEnabled {
		enabled = "true"
	}
	cfg := strings.Join([]string{
		"database:",
		"  driver: sqlite3",
		"  name: " + dbPath,
		"audit:",
		"  enabled: " + enabled,
		"  path: " + auditPath,
		"log:",
		"  level: error",
		"",
	}, "\n")
	return writeConfig(t, cfg), auditPath
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
