// SPDX-License-Identifier: MIT
package visual

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// HSL is a color with every channel in [0, 1]. Hue wraps.
type HSL struct {
	H, S, L float64
}

// RGB is a linear renderer color.
type RGB struct {
	R float32 `json:"r" msgpack:"r"`
	G float32 `json:"g" msgpack:"g"`
	B float32 `json:"b" msgpack:"b"`
}

// Normalize wraps the hue into [0, 1) and clamps saturation and lightness.
func (c HSL) Normalize() HSL {
	h := c.H - math.Floor(c.H)
	if math.IsNaN(h) || math.IsInf(c.H, 0) {
		h = 0
	}
	return HSL{H: h, S: clamp01(c.S), L: clamp01(c.L)}
}

// RGB converts through go-colorful, which takes hue in degrees.
func (c HSL) RGB() RGB {
	n := c.Normalize()
	col := colorful.Hsl(n.H*360, n.S, n.L).Clamped()
	return RGB{R: float32(col.R), G: float32(col.G), B: float32(col.B)}
}

// Scale multiplies every channel, used for emissive tints.
func (c RGB) Scale(f float64) RGB {
	return RGB{R: float32(float64(c.R) * f), G: float32(float64(c.G) * f), B: float32(float64(c.B) * f)}
}

// LerpHSL moves a toward b by t. Hue takes the short way round the wheel.
func LerpHSL(a, b HSL, t float64) HSL {
	t = clamp01(t)
	dh := b.H - a.H
	dh -= math.Round(dh)
	return HSL{
		H: a.H + dh*t,
		S: a.S + (b.S-a.S)*t,
		L: a.L + (b.L-a.L)*t,
	}.Normalize()
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
