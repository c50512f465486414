package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/specsql/internal/ident"
	"github.com/roach88/specsql/internal/queryspec"
)

// SQL is a compiled statement and its bound values in placeholder order.
type SQL struct {
	Text   string `json:"text"`
	Params []any  `json:"params"`
}

// Compiler turns query specs into SQL. It holds only options and may be
// shared between goroutines.
type Compiler struct {
	opts Options
}

// NewCompiler creates a Compiler. Options are checked on each Compile call.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Options returns the compiler's options.
func (c *Compiler) Options() Options {
	return c.opts
}

// Compile compiles spec with the default options.
func Compile(spec *queryspec.QuerySpec) (SQL, error) {
	return NewCompiler(DefaultOptions()).Compile(spec)
}

// Compile converts spec into one SELECT statement.
//
// Failures are returned as *CompileError wrapping one of the package
// sentinels; no partial SQL is ever returned.
func (c *Compiler) Compile(spec *queryspec.QuerySpec) (SQL, error) {
	if err := c.opts.Validate(); err != nil {
		return SQL{}, fmt.Errorf("compiler options: %w", err)
	}
	if spec == nil {
		return SQL{}, newError(ErrInvalidSpec, "", "nil spec")
	}

	st := &compileState{
		opts:    c.opts,
		idr:     ident.Resolver{Quote: c.opts.QuoteIdentifiers},
		params:  &params{style: c.opts.ParamStyle},
		aliases: newAliasRegistry(),
	}
	text, err := st.compile(spec)
	if err != nil {
		return SQL{}, err
	}

	values := st.params.values
	if values == nil {
		values = []any{}
	}
	return SQL{Text: text, Params: values}, nil
}

// compileState is the per-call compiler context. It is created by Compile,
// threaded through every recursive step and discarded afterwards.
type compileState struct {
	opts    Options
	idr     ident.Resolver
	params  *params
	aliases *aliasRegistry

	source    string
	baseAlias string

	selects   []string
	joins     []string
	joinCount int
}

func (st *compileState) compile(spec *queryspec.QuerySpec) (string, error) {
	if err := ident.Check(spec.SourceTable); err != nil {
		return "", wrapIdent(err, "source_table")
	}
	st.source = spec.SourceTable
	st.baseAlias = st.aliases.register(spec.SourceTable, "")

	if err := st.compileFields(spec.Fields, st.baseAlias, 1, "fields"); err != nil {
		return "", err
	}
	if len(st.selects) == 0 {
		return "", newError(ErrNoColumnsSelected, "fields", "refusing to emit SELECT *")
	}

	var where string
	if spec.Filter != nil {
		clause, err := st.compileFilter(spec.Filter, "filter")
		if err != nil {
			return "", err
		}
		where = " WHERE " + clause
	}

	order, err := st.compileOrder(spec.OrderBy)
	if err != nil {
		return "", err
	}

	tail, err := st.compilePagination(spec.Limit, spec.Offset)
	if err != nil {
		return "", err
	}

	from, err := st.tableWithAlias(st.source, st.baseAlias)
	if err != nil {
		return "", wrapIdent(err, "source_table")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(st.selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from)
	for _, j := range st.joins {
		b.WriteString(j)
	}
	b.WriteString(where)
	b.WriteString(order)
	b.WriteString(tail)
	return b.String(), nil
}

// compileFields projects plain columns against alias and recurses into
// relationships.
func (st *compileState) compileFields(fields queryspec.Fields, alias string, depth int, path string) error {
	for i, f := range fields {
		p := fmt.Sprintf("%s[%d]", path, i)
		switch entry := f.(type) {
		case queryspec.Column:
			col, err := st.idr.Qualified(alias, entry.Name)
			if err != nil {
				return wrapIdent(err, p)
			}
			st.selects = append(st.selects, col)
		case *queryspec.Relationship:
			if entry == nil {
				return newError(ErrInvalidSpec, p, "null relationship")
			}
			if err := st.compileRelationship(entry, alias, depth, p); err != nil {
				return err
			}
		default:
			return newError(ErrInvalidSpec, p, "unsupported field entry %T", f)
		}
	}
	return nil
}

// resolve renders a "table_or_alias.column" reference as "alias.column".
// Unknown heads are registered under their own name unless StrictTables is
// set.
func (st *compileState) resolve(ref, path string) (string, error) {
	head, col, err := ident.Split(ref)
	if err != nil {
		return "", wrapIdent(err, path)
	}
	alias, ok := st.aliases.lookup(head)
	if !ok {
		if st.opts.StrictTables {
			return "", newError(ErrIdentifier, path, "%q references undeclared table %q", ref, head)
		}
		alias = st.aliases.register(head, "")
	}
	out, err := st.idr.Qualified(alias, col)
	if err != nil {
		return "", wrapIdent(err, path)
	}
	return out, nil
}

func (st *compileState) tableWithAlias(table, alias string) (string, error) {
	t, err := st.idr.Table(table)
	if err != nil {
		return "", err
	}
	a, err := st.idr.Table(alias)
	if err != nil {
		return "", err
	}
	return t + " " + a, nil
}

func (st *compileState) compileOrder(order []queryspec.OrderSpec) (string, error) {
	if len(order) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(order))
	for i, o := range order {
		path := fmt.Sprintf("order_by[%d]", i)

		ref := o.Field
		if ref == "" {
			if o.Table == "" || o.Column == "" {
				return "", newError(ErrInvalidSpec, path, "order_by requires either field or both table and column")
			}
			if err := ident.Check(o.Table); err != nil {
				return "", wrapIdent(err, path+".table")
			}
			if err := ident.Check(o.Column); err != nil {
				return "", wrapIdent(err, path+".column")
			}
			ref = o.Table + "." + o.Column
		}

		dir := strings.ToUpper(o.Direction)
		if dir == "" {
			dir = "ASC"
		}
		if dir != "ASC" && dir != "DESC" {
			return "", newError(ErrInvalidSpec, path+".direction", "direction must be asc or desc, got %q", o.Direction)
		}

		col, err := st.resolve(ref, path)
		if err != nil {
			return "", err
		}
		parts = append(parts, col+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// compilePagination validates and binds LIMIT then OFFSET. OFFSET is emitted
// even without LIMIT.
func (st *compileState) compilePagination(limit, offset *queryspec.Bound) (string, error) {
	var tail string
	if limit != nil {
		n, err := limit.Int64()
		if err != nil {
			return "", newError(ErrInvalidLimit, "limit", "must be an integer, got %s", limit)
		}
		if n < 1 || n > st.opts.MaxLimit {
			return "", newError(ErrInvalidLimit, "limit", "must be between 1 and %d, got %d", st.opts.MaxLimit, n)
		}
		tail += " LIMIT " + st.params.bind(n)
	}
	if offset != nil {
		n, err := offset.Int64()
		if err != nil {
			return "", newError(ErrInvalidOffset, "offset", "must be an integer, got %s", offset)
		}
		if n < 0 {
			return "", newError(ErrInvalidOffset, "offset", "must be non-negative, got %d", n)
		}
		tail += " OFFSET " + st.params.bind(n)
	}
	return tail, nil
}
