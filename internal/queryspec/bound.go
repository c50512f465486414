package queryspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Bound is a LIMIT or OFFSET value kept as written, so that a non-integer
// such as 10.5 or "10" reaches the compiler and fails there as an invalid
// bound rather than as a malformed document.
type Bound struct {
	raw json.RawMessage
}

// NewBound returns a Bound holding n.
func NewBound(n int64) *Bound {
	return &Bound{raw: json.RawMessage(strconv.FormatInt(n, 10))}
}

// Int64 returns the value when it is a JSON integer that fits in int64.
func (b Bound) Int64() (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(b.raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%s is not a number", b.raw)
	}
	return n.Int64()
}

// String returns the value as written.
func (b Bound) String() string { return string(b.raw) }

// UnmarshalJSON keeps any JSON value.
func (b *Bound) UnmarshalJSON(data []byte) error {
	b.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON writes the value back unchanged.
func (b Bound) MarshalJSON() ([]byte, error) {
	if len(b.raw) == 0 {
		return []byte("null"), nil
	}
	return b.raw, nil
}
