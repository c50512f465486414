package querysql

import (
	"strconv"
	"strings"
)

// aliasRegistry maps table names and aliases to the alias used in SQL.
//
// The first registration of a table wins. Aliases also map to themselves so
// a reference may use either the table name or its alias.
type aliasRegistry struct {
	byName map[string]string
	used   map[string]bool
	next   map[string]int
}

func newAliasRegistry() *aliasRegistry {
	return &aliasRegistry{
		byName: make(map[string]string),
		used:   make(map[string]bool),
		next:   make(map[string]int),
	}
}

// register returns the alias for table, assigning one on first sight.
// A non-empty desired alias is used verbatim; otherwise the alias is the
// last dot segment of the table name, suffixed _2, _3, ... when taken.
func (r *aliasRegistry) register(table, desired string) string {
	if alias, ok := r.byName[table]; ok {
		return alias
	}
	alias := desired
	if alias == "" {
		alias = r.derive(table)
	}
	r.byName[table] = alias
	r.byName[alias] = alias
	r.used[alias] = true
	return alias
}

// registerAs is register for an explicit alias. It reports false when the
// alias already names a different table or alias.
func (r *aliasRegistry) registerAs(table, alias string) (string, bool) {
	if prev, ok := r.byName[table]; ok {
		return prev, true
	}
	if alias != "" && alias != table {
		if _, taken := r.byName[alias]; taken {
			return "", false
		}
	}
	return r.register(table, alias), true
}

func (r *aliasRegistry) derive(table string) string {
	base := table
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		base = table[i+1:]
	}
	if !r.used[base] {
		return base
	}
	n := r.next[base]
	if n < 2 {
		n = 2
	}
	for r.used[base+"_"+strconv.Itoa(n)] {
		n++
	}
	r.next[base] = n + 1
	return base + "_" + strconv.Itoa(n)
}

// lookup returns the alias registered for a table name or alias.
func (r *aliasRegistry) lookup(name string) (string, bool) {
	alias, ok := r.byName[name]
	return alias, ok
}
