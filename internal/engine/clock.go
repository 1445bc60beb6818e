package engine

import "sync/atomic"

// Clock is the engine's monotonic logical clock.
//
// Every accepted command is stamped with a strictly increasing seq from this
// clock. Seq values may have gaps (a command whose persistence failed still
// consumed one) but never repeat or go backwards.
//
// Thread-safety: Clock is safe for concurrent use, although only the Run
// goroutine advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
// Used on startup to continue from the store's highest seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// advanceTo moves the clock forward to at least seq. It never moves it back.
func (c *Clock) advanceTo(seq int64) {
	for {
		cur := c.seq.Load()
		if cur >= seq || c.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
