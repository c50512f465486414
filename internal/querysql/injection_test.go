package querysql

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specsql/internal/ident"
)

// positions places a name in every slot that reaches SQL text.
var positions = map[string]func(name string) string{
	"source_table": func(n string) string {
		return fmt.Sprintf(`{"source_table": %s, "fields": ["id"]}`, quoteJSON(n))
	},
	"column": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": [%s]}`, quoteJSON(n))
	},
	"child_table": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": [{"child_table": %s, "join_on": {"npcs.id": "x.npc_id"}, "fields": ["id"]}]}`, quoteJSON(n))
	},
	"as": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": [{"child_table": "items", "as": %s, "join_on": {"npcs.id": "items.npc_id"}, "fields": ["id"]}]}`, quoteJSON(n))
	},
	"through_table": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": [{"through_table": %s, "as": "f", "join_on": {"npcs.id": "f.npc_id"}, "fields": ["id"]}]}`, quoteJSON(n))
	},
	"join_on column": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": [{"child_table": "items", "join_on": {"npcs.id": %s}, "fields": ["id"]}]}`, quoteJSON("items."+n))
	},
	"filter column": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": ["id"], "filter": {"field": %s, "operator": "=", "value": 1}}`, quoteJSON("npcs."+n))
	},
	"order table": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": ["id"], "order_by": [{"table": %s, "column": "id"}]}`, quoteJSON(n))
	},
	"order column": func(n string) string {
		return fmt.Sprintf(`{"source_table": "npcs", "fields": ["id"], "order_by": [{"table": "npcs", "column": %s}]}`, quoteJSON(n))
	},
}

func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func hostileNames() []string {
	names := []string{
		`"); DROP TABLE x; --`,
		"id; DELETE FROM npcs",
		"id--",
		"1id",
		" id",
		"id ",
		`i"d`,
		"i'd",
		"i.d",
		"id/*",
		"ïd",
		"id\x00",
	}

	const alphabet = "abcXYZ_019 ;'\"-()*/.\\\t\n=%$?:"
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(12)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		names = append(names, b.String())
	}
	return names
}

func TestCompile_RejectsHostileIdentifiers(t *testing.T) {
	compiler := NewCompiler(DefaultOptions())

	for where, build := range positions {
		t.Run(where, func(t *testing.T) {
			for _, name := range hostileNames() {
				if ident.Valid(name) {
					continue
				}
				doc := build(name)
				sql, err := compileWith(t, compiler.Options(), doc)
				require.Error(t, err, "accepted %q in %s", name, where)
				assert.ErrorIs(t, err, ErrIdentifier, "name %q", name)
				assert.Empty(t, sql.Text)
			}
		})
	}
}

func TestCompile_ValidRandomIdentifiersPassThrough(t *testing.T) {
	for _, name := range hostileNames() {
		if !ident.Valid(name) {
			continue
		}
		sql, err := compileWith(t, DefaultOptions(), positions["column"](name))
		require.NoError(t, err)
		assert.Equal(t, "SELECT npcs."+name+" FROM npcs npcs", sql.Text)
	}
}
