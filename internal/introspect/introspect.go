// Package introspect describes the tables and columns of a PostgreSQL
// database from the system catalogs.
package introspect

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgx.Conn and *pgxpool.Pool that Describe needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Catalog is the description of every ordinary or partitioned table in the
// requested schemas.
type Catalog struct {
	Engine  string   `json:"engine"`
	Schemas []string `json:"schemas"`
	Tables  []Table  `json:"tables"`
}

// Table is one table with its columns in ordinal order.
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Comment *string  `json:"comment"`
	Columns []Column `json:"columns"`
}

// Column describes one live (not dropped) column.
type Column struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	IsNullable bool    `json:"is_nullable"`
	Default    *string `json:"default"`
	Comment    *string `json:"comment"`
}

const tablesSQL = `
SELECT
    n.nspname,
    c.relname,
    obj_description(c.oid, 'pg_class')
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND n.nspname = ANY($1)
ORDER BY n.nspname, c.relname`

const columnsSQL = `
SELECT
    n.nspname,
    c.relname,
    a.attname,
    pg_catalog.format_type(a.atttypid, a.atttypmod),
    NOT a.attnotnull,
    pg_get_expr(ad.adbin, ad.adrelid),
    col_description(a.attrelid, a.attnum),
    a.attnum
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
WHERE a.attnum > 0
  AND NOT a.attisdropped
  AND c.relkind IN ('r', 'p')
  AND n.nspname = ANY($1)
ORDER BY n.nspname, c.relname, a.attnum`

type tableKey struct {
	schema, name string
}

// Describe reads the catalog for schemas. An empty schema list means
// "public". Tables are sorted by schema then name and columns by ordinal
// position, so the output is deterministic.
func Describe(ctx context.Context, q Querier, schemas []string) (*Catalog, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}

	tables := make(map[tableKey]*Table)

	rows, err := q.Query(ctx, tablesSQL, schemas)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name, &t.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		t.Columns = []Column{}
		tables[tableKey{t.Schema, t.Name}] = &t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	type ordered struct {
		Column
		pos int16
	}
	positions := make(map[tableKey][]ordered)

	rows, err = q.Query(ctx, columnsSQL, schemas)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	for rows.Next() {
		var (
			key tableKey
			col ordered
		)
		if err := rows.Scan(&key.schema, &key.name, &col.Name, &col.DataType,
			&col.IsNullable, &col.Default, &col.Comment, &col.pos); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		// A table created between the two queries shows up here only.
		if _, ok := tables[key]; !ok {
			tables[key] = &Table{Schema: key.schema, Name: key.name, Columns: []Column{}}
		}
		positions[key] = append(positions[key], col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	cat := &Catalog{Engine: "postgres", Schemas: schemas, Tables: make([]Table, 0, len(tables))}
	for key, t := range tables {
		cols := positions[key]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].pos < cols[j].pos })
		for _, c := range cols {
			t.Columns = append(t.Columns, c.Column)
		}
		cat.Tables = append(cat.Tables, *t)
	}
	sort.Slice(cat.Tables, func(i, j int) bool {
		a, b := cat.Tables[i], cat.Tables[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		return a.Name < b.Name
	})
	return cat, nil
}

// TableNames returns "schema.name" for every table, in catalog order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Schema + "." + t.Name
	}
	return names
}

// Table returns the named table in any described schema, searching schemas
// in the order they were requested.
func (c *Catalog) Table(name string) (*Table, bool) {
	for _, schema := range c.Schemas {
		for i := range c.Tables {
			if c.Tables[i].Schema == schema && c.Tables[i].Name == name {
				return &c.Tables[i], true
			}
		}
	}
	return nil, false
}
