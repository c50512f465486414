package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileText(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "npcs.json", npcSpec)

	out, _, err := execute(t, "compile", spec, "--config", cfg)
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT npcs.id, npcs.name FROM npcs npcs WHERE npcs.level > %s ORDER BY npcs.name ASC")
	assert.Contains(t, out, "Params: [10]")
	assert.Contains(t, out, "statement ")
}

func TestCompileJSON(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "npcs.json", npcSpec)

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--format", "json", "--param-style", "dollar", "--quote")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t,
		`SELECT "npcs"."id", "npcs"."name" FROM "npcs" "npcs" WHERE "npcs"."level" > $1 ORDER BY "npcs"."name" ASC`,
		resp.Data.SQL)
	assert.Equal(t, []any{float64(10)}, resp.Data.Params)
	assert.Equal(t, "dollar", resp.Data.ParamStyle)
	assert.Len(t, resp.Data.StatementHash, 64)
	assert.Len(t, resp.Data.SpecHash, 64)
}

func TestCompileConfigParamStyle(t *testing.T) {
	cfg := writeConfig(t, "compiler:\n  param_style: named\nlog:\n  level: error\n")
	spec := writeFile(t, t.TempDir(), "npcs.json", npcSpec)

	out, _, err := execute(t, "compile", spec, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "npcs.level > :p1")

	// The flag wins over the config file.
	out, _, err = execute(t, "compile", spec, "--config", cfg, "--param-style", "qmark")
	require.NoError(t, err)
	assert.Contains(t, out, "npcs.level > ?")
}

func TestCompileYAMLSpec(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "npcs.yaml", `
source_table: npcs
fields: [id, name]
filter:
  logic: or
  conditions:
    - {field: npcs.name, operator: like, value: "D%"}
    - {field: npcs.guild_id, operator: is, value: null}
`)

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--param-style", "qmark")
	require.NoError(t, err)
	assert.Contains(t, out, "WHERE (npcs.name LIKE ? OR npcs.guild_id IS NULL)")
	assert.Contains(t, out, `Params: ["D%"]`)
}

func TestCompileStdin(t *testing.T) {
	cfg := writeConfig(t, "")
	cmd := NewRootCommand()
	out := &strings.Builder{}
	cmd.SetOut(out)
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader(npcSpec))
	cmd.SetArgs([]string{"compile", "-", "--config", cfg})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "FROM npcs npcs")
}

func TestCompileOutputToFile(t *testing.T) {
	cfg := writeConfig(t, "")
	dir := t.TempDir()
	spec := writeFile(t, dir, "npcs.json", npcSpec)
	target := filepath.Join(dir, "npcs.sql")

	out, _, err := execute(t, "compile", spec, "--config", cfg, "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote SQL to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "SELECT npcs.id, npcs.name FROM npcs npcs WHERE npcs.level > %s ORDER BY npcs.name ASC\n", string(data))
}

func TestCompileLintWarnings(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "ghost.json",
		`{"source_table": "npcs", "fields": ["id"], "filter": {"field": "ghosts.level", "operator": "=", "value": 1}}`)

	out, _, err := execute(t, "compile", spec, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "WHERE ghosts.level = %s")
	assert.Contains(t, out, "! ")
	assert.Contains(t, out, "ghosts")

	_, _, err = execute(t, "compile", spec, "--config", cfg, "--strict-tables")
	require.Error(t, err)
	assert.Equal(t, ExitCompileError, GetExitCode(err))
}

func TestCompileValidationFailure(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "bad.json", `{"fields": ["id"]}`)

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}

func TestCompileErrorExitCode(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "op.json",
		`{"source_table": "npcs", "fields": ["id"], "filter": {"field": "npcs.level", "operator": "between", "value": 1}}`)

	// The schema rejects the operator first.
	_, _, err := execute(t, "compile", spec, "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--no-validate", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCompileError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnsupportedOperator, resp.Error.Code)
}

func TestCompileFractionalLimit(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "limit.json",
		`{"source_table": "npcs", "fields": ["id"], "limit": 10.5}`)

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--no-validate", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCompileError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidLimit, resp.Error.Code)
}

func TestCompileIdentifierRejected(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "inject.json",
		`{"source_table": "npcs; DROP TABLE npcs", "fields": ["id"]}`)

	out, _, err := execute(t, "compile", spec, "--config", cfg, "--no-validate")
	require.Error(t, err)
	assert.Equal(t, ExitCompileError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeIdentifier+"]")
	assert.NotContains(t, out, "SELECT")
}

func TestCompileMissingFile(t *testing.T) {
	cfg := writeConfig(t, "")

	out, _, err := execute(t, "compile", filepath.Join(t.TempDir(), "missing.json"), "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileBadConfig(t *testing.T) {
	spec := writeFile(t, t.TempDir(), "npcs.json", npcSpec)

	_, _, err := execute(t, "compile", spec, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cfg := writeConfig(t, "compiler:\n  param_style: pyformat\n")
	out, _, err := execute(t, "compile", spec, "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConfig)
}

func TestMapKindToErrorCode(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"identifier", ErrCodeIdentifier},
		{"ambiguous_target", ErrCodeAmbiguousTarget},
		{"missing_join_condition", ErrCodeMissingJoinCondition},
		{"depth_exceeded", ErrCodeDepthExceeded},
		{"too_many_joins", ErrCodeTooManyJoins},
		{"no_columns_selected", ErrCodeNoColumnsSelected},
		{"unsupported_operator", ErrCodeUnsupportedOperator},
		{"invalid_is_value", ErrCodeInvalidIsValue},
		{"in_list_too_large", ErrCodeInListTooLarge},
		{"invalid_logic", ErrCodeInvalidLogic},
		{"invalid_limit", ErrCodeInvalidLimit},
		{"invalid_offset", ErrCodeInvalidOffset},
		{"invalid_spec", ErrCodeInvalidSpec},
		{"", ErrCodeGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapKindToErrorCode(tt.kind), tt.kind)
	}
}

func TestCompileYAMLJoinOnOrder(t *testing.T) {
	cfg := writeConfig(t, "")
	spec := writeFile(t, t.TempDir(), "items.yaml", `
source_table: npcs
fields:
  - child_table: npc_items
    join_on:
      npcs.realm: npc_items.realm
      npcs.id: npc_items.npc_id
    fields: [quantity]
`)

	out, _, err := execute(t, "compile", spec, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "JOIN npc_items npc_items ON npcs.realm = npc_items.realm AND npcs.id = npc_items.npc_id")
}
