package engine

import "sync/atomic"

// SeqSource hands out journal sequence numbers.
// Implemented by Clock and by testutil.DeterministicClock.
type SeqSource interface {
	Next() int64
}

// Clock is the engine's monotonic logical clock.
//
// Every processed event is stamped with a strictly increasing seq. Journal
// ordering relies on it, never on wall time.
//
// Thread-safety: safe for concurrent use (atomic operations), though only the
// Run loop calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, e.g. to continue an
// existing journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
