package engine

import "sync/atomic"

// Clock hands out subscription tokens. Tokens start at 1 and only grow, so
// a token identifies one subscription for the reconciler's lifetime and
// zero never matches a real one.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first token is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next issues a fresh token.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last token issued, or 0.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
