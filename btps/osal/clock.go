package osal

import (
	"sync/atomic"
	"time"
)

// Clock is a millisecond tick source.
type Clock interface {
	Now() uint32
}

// SystemClock counts milliseconds from its creation using the monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns elapsed milliseconds truncated to 32 bits.
func (c *SystemClock) Now() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock is a tick source moved only by Advance and Set. Safe for
// concurrent use.
type ManualClock struct {
	ticks atomic.Uint32
}

// NewManualClock returns a clock reading start.
func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.ticks.Store(start)
	return c
}

// Now returns the current tick value.
func (c *ManualClock) Now() uint32 { return c.ticks.Load() }

// Advance moves the clock forward by d ticks, wrapping at 2^32.
func (c *ManualClock) Advance(d uint32) { c.ticks.Add(d) }

// Set jumps the clock to t.
func (c *ManualClock) Set(t uint32) { c.ticks.Store(t) }
