package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadErrorCode(t *testing.T, err error) string {
	t.Helper()
	var le *LoadError
	require.True(t, errors.As(err, &le), "expected *LoadError, got %T", err)
	return le.Code
}

func TestReadSpecJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "npcs.json", npcSpec)

	data, err := ReadSpec(path, nil)
	require.NoError(t, err)
	assert.JSONEq(t, npcSpec, string(data))
}

func TestReadSpecYAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml", ".YAML"} {
		t.Run(ext, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "npcs"+ext, "source_table: npcs\nfields: [id, name]\nlimit: 5\n")

			data, err := ReadSpec(path, nil)
			require.NoError(t, err)
			assert.JSONEq(t, `{"source_table":"npcs","fields":["id","name"],"limit":5}`, string(data))
		})
	}
}

func TestReadSpecStdin(t *testing.T) {
	data, err := ReadSpec("-", strings.NewReader(npcSpec))
	require.NoError(t, err)
	assert.Equal(t, npcSpec, string(data))

	data, err = ReadSpec("-", strings.NewReader("source_table: npcs\nfields: [id]\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"source_table":"npcs","fields":["id"]}`, string(data))
}

func TestReadSpecEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "  \n")

	data, err := ReadSpec(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = ReadSpec("-", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestReadSpecErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadSpec(writeFile(t, dir, "npcs.txt", npcSpec), nil)
	assert.Equal(t, ErrCodeUnsupportedFile, loadErrorCode(t, err))

	_, err = ReadSpec(filepath.Join(dir, "missing.json"), nil)
	assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, err))
	assert.Contains(t, err.Error(), "missing.json")

	_, err = ReadSpec(writeFile(t, dir, "bad.yaml", "fields: [id\n"), nil)
	assert.Equal(t, ErrCodeMalformedSpec, loadErrorCode(t, err))
}

func TestReadSpecYAMLKeepsJoinOnOrder(t *testing.T) {
	path := writeFile(t, t.TempDir(), "items.yaml", `
source_table: npcs
fields:
  - child_table: npc_items
    join_on:
      npcs.realm: npc_items.realm
      npcs.id: npc_items.npc_id
    fields: [quantity]
`)

	data, err := ReadSpec(path, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"npcs.realm":"npc_items.realm","npcs.id":"npc_items.npc_id"}`)
}
