// Package testutil holds shared helpers for specsql tests: deterministic
// clocks and ids, the NPC fixture database and a PostgreSQL container.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// FixtureDDL creates the NPC game schema. It is valid for both SQLite and
// PostgreSQL.
var FixtureDDL = []string{
	`CREATE TABLE npcs (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		level INTEGER NOT NULL,
		guild_id INTEGER
	)`,
	`CREATE TABLE items_catalog (
		id INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		rarity TEXT NOT NULL
	)`,
	`CREATE TABLE npc_items (
		npc_id INTEGER NOT NULL REFERENCES npcs(id),
		item_id INTEGER NOT NULL REFERENCES items_catalog(id),
		quantity INTEGER NOT NULL
	)`,
	`CREATE TABLE factions (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE npc_factions (
		npc_id INTEGER NOT NULL REFERENCES npcs(id),
		faction_id INTEGER NOT NULL REFERENCES factions(id)
	)`,
}

// FixtureRows seeds the schema created by FixtureDDL.
var FixtureRows = []string{
	`INSERT INTO npcs (id, name, level, guild_id) VALUES
		(1, 'Elminster', 20, NULL),
		(2, 'Drizzt', 16, 1),
		(3, 'Goblin Scout', 2, NULL)`,
	`INSERT INTO items_catalog (id, label, rarity) VALUES
		(10, 'Staff of Power', 'legendary'),
		(11, 'Scimitar', 'rare'),
		(12, 'Rusty Dagger', 'common')`,
	`INSERT INTO npc_items (npc_id, item_id, quantity) VALUES
		(1, 10, 1),
		(2, 11, 2),
		(3, 12, 5)`,
	`INSERT INTO factions (id, name) VALUES
		(100, 'Harpers'),
		(101, 'Zhentarim')`,
	`INSERT INTO npc_factions (npc_id, faction_id) VALUES
		(1, 100),
		(2, 100),
		(3, 101)`,
}

// Seed runs FixtureDDL and FixtureRows against db.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, stmt := range append(append([]string{}, FixtureDDL...), FixtureRows...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// OpenFixtureSQLite opens an in-memory SQLite database seeded with the NPC
// fixture. It is closed when the test ends.
func OpenFixtureSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Seed(context.Background(), db))
	return db
}
