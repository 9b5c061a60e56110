// Package kframe holds the K-frame time base: a monotonic frame counter
// advanced by start-of-K-frame notifications, and a frame-indexed delay
// queue. Neither type is safe for concurrent use; both belong to the
// router thread.
package kframe

// Clock is a monotonic K-frame counter. It only moves forward, and only
// when a valid SOKF notification advances it.
type Clock struct {
	frame uint64
}

// Current returns the current frame number.
func (c *Clock) Current() uint64 { return c.frame }

// Advance moves to the next frame and returns it.
func (c *Clock) Advance() uint64 {
	c.frame++
	return c.frame
}
