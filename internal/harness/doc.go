// Package harness runs conformance scenarios against the query compiler.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: npc_inventory
//	description: "Direct join with IN filter"
//	options:
//	  param_style: dollar
//	spec:
//	  source_table: npcs
//	  fields: [id, name]
//	  filter: {field: npcs.level, operator: ">=", value: 5}
//	expect:
//	  sql: "SELECT npcs.id, npcs.name FROM npcs npcs WHERE npcs.level >= $1"
//	  params: [5]
//	assertions:
//	  - type: param_count
//	    count: 1
//
// The spec may instead be read from spec_file, relative to the scenario.
// Mapping key order inside spec is preserved, so join_on pairs keep their
// declaration order.
//
// expect.error names the failure kind: "validation", "malformed" or one of
// the querysql.Kind values such as "depth_exceeded".
//
// A scenario with a fixture (a SQL file, relative to the scenario) also
// executes the compiled statement against an in-memory SQLite database
// seeded by the fixture, and may check expect.columns and expect.rows.
// Fixture scenarios must use param_style qmark.
//
// # Assertion Types
//
//   - sql_contains / sql_not_contains: substring checks on the SQL text
//   - param_count: number of bind values
//   - join_count: number of JOIN clauses
//   - warning_contains: some lint warning contains text
//   - row_count: number of rows returned from the fixture
//
// # Golden Files
//
// RunWithGolden snapshots sql, params and error kind under
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
