// Package testutil provides deterministic stand-ins for the clock and
// ID generator so runs under test produce stable ledger rows and golden
// output.
package testutil

import (
	"sync"
	"time"
)

// FixedClock returns a fixed base time advanced by one step per call.
// Safe for concurrent use.
type FixedClock struct {
	mu    sync.Mutex
	base  time.Time
	step  time.Duration
	calls int
}

// NewFixedClock creates a clock whose first Now returns base and whose
// every later call advances by step.
func NewFixedClock(base time.Time, step time.Duration) *FixedClock {
	return &FixedClock{base: base, step: step}
}

// Now returns the next timestamp in the fixed sequence.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.base.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return now
}

// Reset rewinds the clock to its base time.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}

// FixedGenerator returns predetermined run IDs in order. Safe for
// concurrent use.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID. It panics once all IDs
// have been consumed.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
