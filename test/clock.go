package test

import "sync/atomic"

// Clock is a settable clock for tests, in unix seconds
type Clock struct {
	now atomic.Uint64
}

// NewClock returns a Clock set at the given time
func NewClock(now uint64) *Clock {
	c := &Clock{}
	c.now.Store(now)
	return c
}

// Now returns the current time of the Clock
func (c *Clock) Now() uint64 {
	return c.now.Load()
}

// Set moves the Clock to the given time
func (c *Clock) Set(now uint64) {
	c.now.Store(now)
}

// Advance moves the Clock forward by the given number of seconds
func (c *Clock) Advance(seconds uint64) {
	c.now.Add(seconds)
}
