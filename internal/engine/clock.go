package engine

import "sync/atomic"

// Clock is the per-run monotonic logical clock. Every trace and journal
// event is stamped with a strictly increasing seq from it, so a run's
// event order is explicit and replayable without wall-clock comparisons.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
