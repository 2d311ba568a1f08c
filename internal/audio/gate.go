// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a noise gate: blocks whose peak amplitude does not exceed the
// threshold are treated as silence. It is safe to reconfigure while the
// audio callback is reading it.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // Absolute amplitude threshold (0-2147483647)
}

// NewGate returns a gate with the threshold given as a fraction of full scale.
func NewGate(enabled bool, threshold float64) *Gate {
	g := &Gate{}
	g.enabled.Store(enabled)
	g.SetThreshold(threshold)
	return g
}

func (g *Gate) Enable()  { g.enabled.Store(true) }
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(int32(threshold * float64(math.MaxInt32)))
}

// Threshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt32)
}

// Open reports whether block passes the gate. A disabled gate is always open.
func (g *Gate) Open(block []int32) bool {
	if !g.enabled.Load() {
		return true
	}
	return peakAmplitude(block) > g.threshold.Load()
}

// peakAmplitude finds the largest absolute sample without branching in the
// loop. math.MinInt32 has no positive counterpart and reads as negative.
func peakAmplitude(block []int32) int32 {
	var maxAmplitude int32
	for i := range block {
		sample := block[i]
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
