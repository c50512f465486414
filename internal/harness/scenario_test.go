package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_InlineSpecKeepsKeyOrder(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: order
description: "join_on order survives YAML conversion"
spec:
  source_table: npcs
  fields:
    - through_table: npc_factions
      join_on:
        npc_factions.faction_id: factions.id
        npcs.id: npc_factions.npc_id
      fields: [name]
  limit: 3
  filter: {field: npcs.level, operator: ">", value: 1.5}
expect:
  error: identifier
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"source_table": "npcs",
		"fields": [{"through_table": "npc_factions", "join_on": {"npc_factions.faction_id": "factions.id", "npcs.id": "npc_factions.npc_id"}, "fields": ["name"]}],
		"limit": 3,
		"filter": {"field": "npcs.level", "operator": ">", "value": 1.5}
	}`, string(s.SpecJSON))
	assert.Contains(t, string(s.SpecJSON), `{"npc_factions.faction_id":"factions.id","npcs.id":"npc_factions.npc_id"}`)
}

func TestLoadScenario_SpecFileAndFixtureAreRelative(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "fixture_inventory.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "specs", "inventory.json"), s.SpecFile)
	assert.Equal(t, filepath.Join("testdata", "fixtures", "npcs.sql"), s.Fixture)
	assert.Contains(t, string(s.SpecJSON), `"source_table": "npcs"`)
}

func TestLoadScenario_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "spec.json", `{"source_table": "npcs", "fields": ["id"]}`)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "name: x\ndescription: y\nspecs: []\n", "failed to parse YAML"},
		{"missing name", "description: y\nspec: {source_table: npcs}\nexpect: {error: validation}\n", "name is required"},
		{"missing description", "name: x\nspec: {source_table: npcs}\nexpect: {error: validation}\n", "description is required"},
		{"no spec", "name: x\ndescription: y\nexpect: {error: validation}\n", "exactly one of spec and spec_file"},
		{"both specs", "name: x\ndescription: y\nspec: {source_table: npcs}\nspec_file: spec.json\nexpect: {error: validation}\n", "exactly one of spec and spec_file"},
		{"spec not mapping", "name: x\ndescription: y\nspec: [1]\nexpect: {error: validation}\n", "spec must be a mapping"},
		{"missing spec file", "name: x\ndescription: y\nspec_file: nope.json\nexpect: {error: validation}\n", "spec file not found"},
		{"no expectations", "name: x\ndescription: y\nspec_file: spec.json\n", "expect or assertions is required"},
		{"error with sql", "name: x\ndescription: y\nspec_file: spec.json\nexpect: {error: identifier, sql: SELECT}\n", "cannot be combined"},
		{"bad style", "name: x\ndescription: y\nspec_file: spec.json\noptions: {param_style: pyformat}\nexpect: {sql: x}\n", "options"},
		{"rows without fixture", "name: x\ndescription: y\nspec_file: spec.json\nexpect: {rows: [[1]]}\n", "require a fixture"},
		{"fixture needs qmark", "name: x\ndescription: y\nspec_file: spec.json\nfixture: spec.json\nexpect: {sql: x}\n", "param_style qmark"},
		{"unknown assertion", "name: x\ndescription: y\nspec_file: spec.json\nassertions: [{type: sql_matches}]\n", "unknown assertion type"},
		{"assertion without count", "name: x\ndescription: y\nspec_file: spec.json\nassertions: [{type: param_count}]\n", "count is required"},
		{"row_count without fixture", "name: x\ndescription: y\nspec_file: spec.json\nassertions: [{type: row_count, count: 1}]\n", "requires a fixture"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, dir, "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"bridge",
		"depth_exceeded",
		"direct_join",
		"empty_in",
		"fixture_inventory",
		"identifier_rejected",
		"lazy_registration",
		"quoted_named",
		"strict_tables",
		"validation_error",
	}, names)
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	content := "name: same\ndescription: y\nspec: {source_table: npcs}\nexpect: {error: validation}\n"
	writeScenario(t, dir, "a.yaml", content)
	writeScenario(t, dir, "b.yml", content)

	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, `scenario name "same" already used`)
}
