// Package audit keeps a SQLite-backed, append-only log of executed queries.
//
// Each entry records the request id, the spec and statement fingerprints,
// the compiled SQL with its bind values, the outcome and the elapsed time.
// Entries are ordered by seq, an autoincrementing logical clock; created_at
// is informational only.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - user_version tracks incremental migrations
//
// Bind values are stored as canonical JSON so identical requests produce
// identical rows apart from id, seq, duration and created_at.
package audit
