// Package fingerprint computes stable content hashes for query specs and
// compiled statements.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/specsql/internal/querysql"
)

// Domain prefixes. The version suffix allows a future algorithm change.
const (
	DomainStatement = "specsql/statement/v1"
	DomainSpec      = "specsql/spec/v1"
)

// hashWithDomain returns hex(SHA256(domain || 0x00 || data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Statement fingerprints compiled SQL text together with its bound values.
// Two statements share a fingerprint only when they would return the same
// rows from the same database state.
func Statement(sql querysql.SQL) (string, error) {
	params := make([]any, len(sql.Params))
	copy(params, sql.Params)

	canonical, err := MarshalCanonical(map[string]any{
		"text":   sql.Text,
		"params": params,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint statement: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}

// Spec fingerprints a raw JSON spec document independent of whitespace and
// object key order.
func Spec(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("fingerprint spec: %w", err)
	}
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint spec: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// Short returns the first 12 hex characters, for log lines.
func Short(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
