// SPDX-License-Identifier: MIT
package visual

import (
	"fmt"
	"math"
	"strings"

	"ambience/internal/spectrum"
)

// BarLayout arranges bars on a ring or along a line.
type BarLayout int

const (
	Ring BarLayout = iota
	Line
)

func (l BarLayout) String() string {
	if l == Line {
		return "line"
	}
	return "ring"
}

// ParseBarLayout accepts "ring" or "line".
func ParseBarLayout(s string) (BarLayout, error) {
	switch strings.ToLower(s) {
	case "ring":
		return Ring, nil
	case "line":
		return Line, nil
	default:
		return Ring, fmt.Errorf("unknown bar layout %q", s)
	}
}

// Bar counts. Rings always have RingBars.
const (
	RingBars        = 64
	DesktopLineBars = 64
	MobileLineBars  = 40
)

// BarConfig describes a bar field.
type BarConfig struct {
	Count        int
	Layout       BarLayout
	Radius       float64 // Ring radius.
	Width        float64 // Line length.
	MinHeight    float64
	HeightScale  float64
	Smoothing    float64 // Height easing factor per frame, shared by every bar.
	MaxStep      float64 // Largest height change in one frame.
	PositionLerp float64
	ColorLerp    float64
}

// DefaultBarConfig returns the constants for a layout on a tier.
func DefaultBarConfig(layout BarLayout, tier Tier) BarConfig {
	cfg := BarConfig{
		Count:        RingBars,
		Layout:       layout,
		Radius:       2,
		Width:        8,
		MinHeight:    0.1,
		HeightScale:  15,
		Smoothing:    0.3,
		MaxStep:      1.5,
		PositionLerp: 0.25,
		ColorLerp:    0.3,
	}
	if layout == Line {
		cfg.Count = DesktopLineBars
		if tier == Mobile {
			cfg.Count = MobileLineBars
			cfg.Width = 5
		}
	}
	return cfg
}

// Validate reports a config the field cannot honor.
func (c BarConfig) Validate() error {
	switch {
	case c.Count <= 0:
		return fmt.Errorf("bar count must be positive, got %d", c.Count)
	case !(c.Smoothing > 0 && c.Smoothing <= 1):
		return fmt.Errorf("bar smoothing must be within (0, 1], got %v", c.Smoothing)
	case !(c.MaxStep > 0):
		return fmt.Errorf("bar max step must be positive, got %v", c.MaxStep)
	case c.MinHeight < 0:
		return fmt.Errorf("bar min height must not be negative, got %v", c.MinHeight)
	}
	return nil
}

// Bar is the rendered state of one bar.
type Bar struct {
	Height    float64 `json:"height" msgpack:"height"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	Z         float64 `json:"z" msgpack:"z"`
	Color     RGB     `json:"color" msgpack:"color"`
	Emissive  RGB     `json:"emissive" msgpack:"emissive"`
	Metalness float64 `json:"metalness" msgpack:"metalness"`
	Roughness float64 `json:"roughness" msgpack:"roughness"`
}

// BarBase is the fixed placement of a bar.
type BarBase struct {
	Angle  float64 `json:"angle" msgpack:"angle"`
	Offset float64 `json:"offset" msgpack:"offset"`
}

// BarField animates M bars. Bases are fixed at construction.
type BarField struct {
	cfg   BarConfig
	bases []BarBase

	height   []float64
	x, z     []float64
	y        []float64
	color    []HSL
	emissive []float64 // Emissive factor applied to the color.
	metal    []float64
	rough    []float64
}

// NewBarField places cfg.Count bars.
func NewBarField(cfg BarConfig) (*BarField, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := cfg.Count
	f := &BarField{
		cfg:      cfg,
		bases:    make([]BarBase, m),
		height:   make([]float64, m),
		x:        make([]float64, m),
		y:        make([]float64, m),
		z:        make([]float64, m),
		color:    make([]HSL, m),
		emissive: make([]float64, m),
		metal:    make([]float64, m),
		rough:    make([]float64, m),
	}
	for i := range m {
		theta := 2 * math.Pi * float64(i) / float64(m)
		f.bases[i] = BarBase{Angle: theta}
		if cfg.Layout == Line {
			f.bases[i].Offset = -cfg.Width/2 + cfg.Width*(float64(i)+0.5)/float64(m)
			f.x[i] = f.bases[i].Offset
		} else {
			f.x[i] = math.Sin(theta) * cfg.Radius
			f.z[i] = math.Cos(theta) * cfg.Radius
		}
		f.height[i] = cfg.MinHeight
		f.color[i] = HSL{H: 0.7, S: 0.8, L: 0.7}
		f.emissive[i] = 0.3
		f.metal[i] = 0.6
		f.rough[i] = 0.2
	}
	return f, nil
}

// Config returns the field's configuration.
func (f *BarField) Config() BarConfig { return f.cfg }

// Len returns the bar count.
func (f *BarField) Len() int { return len(f.height) }

// Bases returns the fixed bar placements.
func (f *BarField) Bases() []BarBase {
	return append([]BarBase(nil), f.bases...)
}

// Height returns the rendered height of bar i.
func (f *BarField) Height(i int) float64 { return f.height[i] }

// IdleHeight is the idle target height of bar i at time t.
func (f *BarField) IdleHeight(i int, t float64) float64 {
	theta := f.bases[i].Angle
	h := math.Sin(8*theta+3*t)*0.6 + 0.7 + math.Cos(4*theta+2*t)*0.4
	return math.Max(f.cfg.MinHeight, h)
}

// ActiveHeight is the active target height of bar i for intensity in [0, 1].
func (f *BarField) ActiveHeight(intensity float64) float64 {
	return math.Max(f.cfg.MinHeight, intensity*f.cfg.HeightScale)
}

// Update advances every bar to time t.
func (f *BarField) Update(t float64, buf *spectrum.Buffer, active bool) {
	m := float64(len(f.height))
	for i := range f.height {
		theta := f.bases[i].Angle
		fi := float64(i)

		var target, radius, goalZ float64
		var goal HSL
		if active {
			in := buf.Level(i)
			target = f.ActiveHeight(in)
			radius = f.cfg.Radius + 2.5*in
			goalZ = 0.6 * in * math.Sin(3*t+0.3*fi)
			f.y[i] = math.Sin(3*t+0.3*fi) * 0.5 * in
			goal = HSL{H: fi/m*0.5 + 0.2*t, S: 0.5 + 0.5*in, L: 0.5 + 0.5*in}
			f.emissive[i] = lerp(f.emissive[i], 0.5, f.cfg.ColorLerp)
			f.metal[i] = 0.5 + 0.5*in
			f.rough[i] = math.Max(0.1, 0.5-0.4*in)
		} else {
			target = f.IdleHeight(i, t)
			radius = f.cfg.Radius + 0.8*math.Sin(0.8*t)
			goalZ = 0.3 * math.Sin(0.8*t+theta)
			f.y[i] = math.Sin(5*theta+1.5*t) * 0.4
			goal = HSL{H: fi/m*0.3 + 0.1*t, S: 0.8, L: 0.7}
			f.emissive[i] = lerp(f.emissive[i], 0.3, f.cfg.ColorLerp)
			f.metal[i] = 0.6
			f.rough[i] = 0.2
		}

		step := f.cfg.Smoothing * (target - f.height[i])
		f.height[i] += clamp(step, -f.cfg.MaxStep, f.cfg.MaxStep)

		if f.cfg.Layout == Line {
			f.x[i] = f.bases[i].Offset
			f.z[i] = lerp(f.z[i], goalZ, f.cfg.PositionLerp)
		} else {
			f.x[i] = lerp(f.x[i], math.Sin(theta)*radius, f.cfg.PositionLerp)
			f.z[i] = lerp(f.z[i], math.Cos(theta)*radius, f.cfg.PositionLerp)
		}
		f.color[i] = LerpHSL(f.color[i], goal, f.cfg.ColorLerp)
	}
}

// Bars returns a fresh copy of the rendered bars.
func (f *BarField) Bars() []Bar {
	out := make([]Bar, len(f.height))
	for i := range out {
		rgb := f.color[i].RGB()
		out[i] = Bar{
			Height:    f.height[i],
			X:         f.x[i],
			Y:         f.y[i],
			Z:         f.z[i],
			Color:     rgb,
			Emissive:  rgb.Scale(f.emissive[i]),
			Metalness: f.metal[i],
			Roughness: f.rough[i],
		}
	}
	return out
}
