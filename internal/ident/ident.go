// Package ident validates and quotes SQL identifiers.
//
// Every table, alias and column name that reaches emitted SQL text passes
// through Check first. Nothing else in the module interpolates names.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned (wrapped) for any name that is not a plain identifier.
var ErrInvalid = errors.New("invalid identifier")

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Check reports whether name is a plain identifier: a letter or underscore
// followed by letters, digits or underscores.
func Check(name string) error {
	if !identRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalid, name)
	}
	return nil
}

// Valid is Check as a predicate.
func Valid(name string) bool {
	return identRE.MatchString(name)
}

// Resolver checks identifiers and optionally wraps them in double quotes
// (PostgreSQL style).
type Resolver struct {
	Quote bool
}

// Table checks and renders a table name or table alias.
func (r Resolver) Table(name string) (string, error) {
	if err := Check(name); err != nil {
		return "", err
	}
	return r.quote(name), nil
}

// Column checks and renders a column name.
func (r Resolver) Column(name string) (string, error) {
	if err := Check(name); err != nil {
		return "", err
	}
	return r.quote(name), nil
}

// Qualified checks and renders "table.column".
func (r Resolver) Qualified(table, column string) (string, error) {
	t, err := r.Table(table)
	if err != nil {
		return "", err
	}
	c, err := r.Column(column)
	if err != nil {
		return "", err
	}
	return t + "." + c, nil
}

// Split parses a "head.column" reference and checks both halves.
func Split(path string) (head, column string, err error) {
	parts := strings.Split(path, ".")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: reference must be 'table.column': %q", ErrInvalid, path)
	}
	if err := Check(parts[0]); err != nil {
		return "", "", err
	}
	if err := Check(parts[1]); err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// quote is only reached with names that already passed Check, so the name
// can never contain a double quote.
func (r Resolver) quote(name string) string {
	if r.Quote {
		return `"` + name + `"`
	}
	return name
}
