// Package clock provides a zero-based monotonic millisecond clock, the
// timebase every delay computation in keyveil is expressed in.
package clock

import "time"

// Clock returns milliseconds elapsed since the Clock was created.
// Subsequent calls to Now are monotonically non-decreasing.
type Clock struct {
	start time.Time
}

// New creates a Clock whose t0 is the current instant.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns milliseconds since the clock was created.
func (c *Clock) Now() int64 {
	return time.Since(c.start).Milliseconds()
}
