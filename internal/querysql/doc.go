// Package querysql compiles a queryspec.QuerySpec into one parameterized
// SELECT statement.
//
// The compiler is pure: it performs no I/O and keeps all mutable state
// (alias registry, parameter list, join counter) in a compileState created
// per Compile call. A *Compiler is immutable and safe for concurrent use.
//
// Every table, alias and column name is checked by package ident before it
// is written into SQL text. Values are never interpolated; they are bound
// through placeholders in one of the ParamStyle dialects.
//
// Statement shape:
//
//	SELECT <columns> FROM <source> <alias> <joins> [WHERE ...] [ORDER BY ...] [LIMIT p] [OFFSET p]
package querysql
