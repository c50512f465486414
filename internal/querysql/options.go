package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamStyle selects the bind-parameter placeholder dialect.
type ParamStyle string

const (
	// ParamPsycopg emits %s for every parameter.
	ParamPsycopg ParamStyle = "psycopg"
	// ParamQmark emits ? for every parameter.
	ParamQmark ParamStyle = "qmark"
	// ParamNamed emits :p1, :p2, ...
	ParamNamed ParamStyle = "named"
	// ParamDollar emits $1, $2, ... (PostgreSQL wire protocol, pgx, lib/pq).
	ParamDollar ParamStyle = "dollar"
)

// ParamStyles lists every supported dialect.
var ParamStyles = []ParamStyle{ParamPsycopg, ParamQmark, ParamNamed, ParamDollar}

// ParseParamStyle accepts a dialect name case-insensitively.
func ParseParamStyle(s string) (ParamStyle, error) {
	style := ParamStyle(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ParamStyles {
		if style == known {
			return style, nil
		}
	}
	return "", fmt.Errorf("unsupported parameter style %q (want psycopg, qmark, named or dollar)", s)
}

// Options configures a Compiler. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	ParamStyle       ParamStyle
	QuoteIdentifiers bool

	// Guardrails.
	MaxDepth int
	MaxJoins int
	MaxIn    int
	MaxLimit int64

	// StrictTables rejects references to tables that were never declared
	// by source_table or a relationship instead of registering them
	// implicitly.
	StrictTables bool
}

// DefaultOptions returns psycopg placeholders, no quoting and the standard
// guardrails (depth 3, 16 joins, 1000 IN values, LIMIT 1000).
func DefaultOptions() Options {
	return Options{
		ParamStyle: ParamPsycopg,
		MaxDepth:   3,
		MaxJoins:   16,
		MaxIn:      1000,
		MaxLimit:   1000,
	}
}

// Validate checks option values.
func (o Options) Validate() error {
	if _, err := ParseParamStyle(string(o.ParamStyle)); err != nil {
		return err
	}
	if o.MaxDepth < 1 {
		return fmt.Errorf("max depth must be >= 1, got %d", o.MaxDepth)
	}
	if o.MaxJoins < 1 {
		return fmt.Errorf("max joins must be >= 1, got %d", o.MaxJoins)
	}
	if o.MaxIn < 1 {
		return fmt.Errorf("max IN size must be >= 1, got %d", o.MaxIn)
	}
	if o.MaxLimit < 1 {
		return fmt.Errorf("max limit must be >= 1, got %d", o.MaxLimit)
	}
	return nil
}

// params accumulates bound values in placeholder emission order.
type params struct {
	style  ParamStyle
	values []any
}

// bind appends v and returns its placeholder.
func (p *params) bind(v any) string {
	p.values = append(p.values, v)
	switch p.style {
	case ParamQmark:
		return "?"
	case ParamNamed:
		return ":p" + strconv.Itoa(len(p.values))
	case ParamDollar:
		return "$" + strconv.Itoa(len(p.values))
	default:
		return "%s"
	}
}
