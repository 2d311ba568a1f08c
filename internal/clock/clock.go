// SPDX-License-Identifier: MIT
// Package clock provides the elapsed-time source that drives all procedural
// motion, independent of audio.
package clock

import (
	"sync"
	"time"
)

// Clock reports seconds since the animation started. Elapsed never
// decreases.
type Clock interface {
	Elapsed() float64
}

// Wall is a Clock backed by the monotonic system clock.
type Wall struct {
	start time.Time
}

// New starts a wall clock at zero.
func New() *Wall {
	return &Wall{start: time.Now()}
}

// Elapsed returns seconds since New.
func (c *Wall) Elapsed() float64 {
	return time.Since(c.start).Seconds()
}

// Manual is a Clock advanced explicitly, used for fixed-step rendering and
// tests.
type Manual struct {
	mu sync.Mutex
	t  float64
}

// NewManual returns a manual clock at t seconds.
func NewManual(t float64) *Manual {
	return &Manual{t: max(t, 0)}
}

// Elapsed returns the current time.
func (c *Manual) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by dt seconds. Negative steps are ignored.
func (c *Manual) Advance(dt float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dt > 0 {
		c.t += dt
	}
	return c.t
}

// Step returns a frame-duration step in seconds for fps frames per second.
func Step(fps int) float64 {
	if fps <= 0 {
		return 0
	}
	return 1 / float64(fps)
}
