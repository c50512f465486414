package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic clock for tests. Every call to Now advances
// it by Step.
//
// Thread-safety: all methods are safe for concurrent use.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewStepClock starts at start and advances one second per call.
func NewStepClock(start time.Time) *StepClock {
	return &StepClock{now: start, Step: time.Second}
}

// Now returns the current time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Peek returns the next value of Now without advancing.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
