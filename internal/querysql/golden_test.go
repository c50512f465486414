package querysql

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specsql/internal/queryspec"
)

// goldenSpecs compiles every testdata/specs/*.json file with dollar
// placeholders.
func goldenSpecs(t *testing.T) map[string]SQL {
	t.Helper()

	files, err := filepath.Glob(filepath.Join("testdata", "specs", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	opts := DefaultOptions()
	opts.ParamStyle = ParamDollar
	compiler := NewCompiler(opts)

	out := make(map[string]SQL, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		spec, err := queryspec.Parse(data)
		require.NoError(t, err, f)
		sql, err := compiler.Compile(spec)
		require.NoError(t, err, f)
		out[strings.TrimSuffix(filepath.Base(f), ".json")] = sql
	}
	return out
}

func TestCompile_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for name, sql := range goldenSpecs(t) {
		t.Run(name, func(t *testing.T) {
			params, err := json.Marshal(sql.Params)
			require.NoError(t, err)
			g.Assert(t, name, []byte(sql.Text+"\n"+string(params)+"\n"))
		})
	}
}

// Compiled dollar-style statements must parse as PostgreSQL.
func TestCompile_ParsesAsPostgres(t *testing.T) {
	for name, sql := range goldenSpecs(t) {
		t.Run(name, func(t *testing.T) {
			_, err := pg_query.Parse(sql.Text)
			require.NoError(t, err, sql.Text)
		})
	}
}
