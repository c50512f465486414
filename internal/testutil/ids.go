package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates UUID-shaped ids 00000000-0000-0000-0000-000000000001,
// ...002 and so on, so audit rows and request ids are stable in tests.
type SequentialIDs struct {
	mu sync.Mutex
	n  int64
}

// NewID returns the next id.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}
