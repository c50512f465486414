package queryspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a document cannot be represented as a QuerySpec.
var ErrMalformed = errors.New("malformed query spec")

// Parse decodes a JSON query spec.
//
// Numbers inside filter values keep their integer-ness: integral values decode
// to int64, everything else to float64.
func Parse(data []byte) (*QuerySpec, error) {
	var spec QuerySpec
	if err := json.Unmarshal(data, &spec); err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &spec, nil
}

// UnmarshalJSON decodes the spec, dispatching the filter tree by shape.
func (q *QuerySpec) UnmarshalJSON(data []byte) error {
	type plain QuerySpec
	var aux struct {
		plain
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = QuerySpec(aux.plain)

	if isNull(aux.Filter) {
		return nil
	}
	node, err := decodeFilter(aux.Filter, "filter")
	if err != nil {
		return err
	}
	q.Filter = node
	return nil
}

// UnmarshalJSON decodes a list whose items are column names or relationship objects.
func (f *Fields) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: fields must be an array", ErrMalformed)
	}

	out := make(Fields, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			return fmt.Errorf("%w: fields[%d]: empty entry", ErrMalformed, i)
		}
		switch item[0] {
		case '"':
			var name string
			if err := json.Unmarshal(item, &name); err != nil {
				return fmt.Errorf("%w: fields[%d]: %v", ErrMalformed, i, err)
			}
			out = append(out, Column{Name: name})
		case '{':
			var rel Relationship
			if err := json.Unmarshal(item, &rel); err != nil {
				if errors.Is(err, ErrMalformed) {
					return err
				}
				return fmt.Errorf("%w: fields[%d]: %v", ErrMalformed, i, err)
			}
			out = append(out, &rel)
		default:
			return fmt.Errorf("%w: fields[%d]: unsupported field entry", ErrMalformed, i)
		}
	}
	*f = out
	return nil
}

// UnmarshalJSON decodes a join_on object, keeping key order.
func (j *JoinOn) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*j = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: join_on: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: join_on must be an object", ErrMalformed)
	}

	var pairs JoinOn
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: join_on: %v", ErrMalformed, err)
		}
		left, _ := keyTok.(string)

		var right string
		if err := dec.Decode(&right); err != nil {
			return fmt.Errorf("%w: join_on[%q] must be a string", ErrMalformed, left)
		}
		pairs = append(pairs, JoinPair{Left: left, Right: right})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: join_on: %v", ErrMalformed, err)
	}

	*j = pairs
	return nil
}

// decodeFilter treats an object carrying both "logic" and "conditions" as a
// combinator and anything else as a leaf condition.
func decodeFilter(raw json.RawMessage, path string) (FilterNode, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: %s must be an object", ErrMalformed, path)
	}

	logicRaw, hasLogic := obj["logic"]
	condsRaw, hasConds := obj["conditions"]
	if hasLogic && hasConds {
		var logic string
		if err := json.Unmarshal(logicRaw, &logic); err != nil {
			return nil, fmt.Errorf("%w: %s.logic must be a string", ErrMalformed, path)
		}
		var children []json.RawMessage
		if err := json.Unmarshal(condsRaw, &children); err != nil {
			return nil, fmt.Errorf("%w: %s.conditions must be an array", ErrMalformed, path)
		}

		comb := &Combinator{Logic: logic, Conditions: make([]FilterNode, 0, len(children))}
		for i, child := range children {
			node, err := decodeFilter(child, fmt.Sprintf("%s.conditions[%d]", path, i))
			if err != nil {
				return nil, err
			}
			comb.Conditions = append(comb.Conditions, node)
		}
		return comb, nil
	}

	var cond Condition
	if err := unmarshalString(obj, "field", &cond.Field); err != nil {
		return nil, fmt.Errorf("%w: %s.field must be a string", ErrMalformed, path)
	}
	if err := unmarshalString(obj, "operator", &cond.Operator); err != nil {
		return nil, fmt.Errorf("%w: %s.operator must be a string", ErrMalformed, path)
	}
	value, err := decodeValue(obj["value"])
	if err != nil {
		return nil, fmt.Errorf("%w: %s.value: %v", ErrMalformed, path, err)
	}
	cond.Value = value
	return cond, nil
}

func unmarshalString(obj map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// decodeValue decodes a filter value with int64/float64 numbers.
func decodeValue(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case []any:
		for i := range val {
			val[i] = normalizeNumbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumbers(val[k])
		}
		return val
	default:
		return v
	}
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
