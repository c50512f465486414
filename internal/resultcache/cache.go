// Package resultcache caches executed result sets keyed by the fingerprint
// of the compiled statement.
package resultcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/specsql/internal/fingerprint"
	"github.com/roach88/specsql/internal/querysql"
	"github.com/roach88/specsql/internal/runner"
)

// Cache stores result sets. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*runner.Result, bool, error)
	Set(ctx context.Context, key string, res *runner.Result) error
}

// Key returns the cache key of a compiled statement. Two statements share
// a key exactly when their text and bind values are canonically equal.
func Key(stmt querysql.SQL) (string, error) {
	fp, err := fingerprint.Statement(stmt)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	return fp, nil
}

func encode(res *runner.Result) ([]byte, error) {
	return json.Marshal(res)
}

// decode keeps numbers as json.Number so integers survive the round trip.
func decode(data []byte) (*runner.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var res runner.Result
	if err := dec.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Memory is an in-process Cache with a fixed TTL. The zero TTL means
// entries never expire.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemory returns an empty Memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (*runner.Result, bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	res, err := decode(e.data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return res, true, nil
}

func (m *Memory) Set(_ context.Context, key string, res *runner.Result) error {
	data, err := encode(res)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
