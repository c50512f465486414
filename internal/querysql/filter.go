package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/specsql/internal/queryspec"
)

func (st *compileState) compileFilter(node queryspec.FilterNode, path string) (string, error) {
	switch n := node.(type) {
	case queryspec.Condition:
		return st.compileCondition(n, path)
	case *queryspec.Combinator:
		if n == nil {
			return "", newError(ErrInvalidSpec, path, "null filter node")
		}
		return st.compileCombinator(n, path)
	default:
		return "", newError(ErrInvalidSpec, path, "unsupported filter node %T", node)
	}
}

// compileCombinator joins its children with AND or OR inside parentheses.
func (st *compileState) compileCombinator(c *queryspec.Combinator, path string) (string, error) {
	logic := strings.ToUpper(c.Logic)
	if logic != "AND" && logic != "OR" {
		return "", newError(ErrInvalidLogic, path+".logic", "logic must be AND or OR, got %q", c.Logic)
	}
	if len(c.Conditions) == 0 {
		return "", newError(ErrInvalidSpec, path+".conditions", "combinator has no conditions")
	}

	parts := make([]string, 0, len(c.Conditions))
	for i, child := range c.Conditions {
		part, err := st.compileFilter(child, fmt.Sprintf("%s.conditions[%d]", path, i))
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " "+logic+" ") + ")", nil
}

func (st *compileState) compileCondition(c queryspec.Condition, path string) (string, error) {
	field, err := st.resolve(c.Field, path+".field")
	if err != nil {
		return "", err
	}

	switch c.Operator {
	case "=", "!=", ">", "<", ">=", "<=":
		return field + " " + c.Operator + " " + st.params.bind(c.Value), nil
	case "like":
		return field + " LIKE " + st.params.bind(c.Value), nil
	case "ilike":
		return "LOWER(" + field + ") LIKE LOWER(" + st.params.bind(c.Value) + ")", nil
	case "in":
		values, ok := c.Value.([]any)
		if !ok {
			return "", newError(ErrInvalidSpec, path+".value", "in requires an array value")
		}
		// An empty IN never matches.
		if len(values) == 0 {
			return "1=0", nil
		}
		if len(values) > st.opts.MaxIn {
			return "", newError(ErrInListTooLarge, path+".value", "%d values exceed maximum %d", len(values), st.opts.MaxIn)
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = st.params.bind(v)
		}
		return field + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	case "is":
		if c.Value == nil {
			return field + " IS NULL", nil
		}
		if s, ok := c.Value.(string); ok && strings.EqualFold(s, "not null") {
			return field + " IS NOT NULL", nil
		}
		return "", newError(ErrInvalidIsValue, path+".value", "got %v", c.Value)
	default:
		return "", newError(ErrUnsupportedOperator, path+".operator", "%q", c.Operator)
	}
}
