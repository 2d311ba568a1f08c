// SPDX-License-Identifier: MIT
package visual

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"ambience/internal/spectrum"

	"gonum.org/v1/gonum/spatial/r3"
)

// ResponseCurve holds the idle and audio-reactive motion constants of a
// particle field.
type ResponseCurve struct {
	IntensityCap float64 // Upper bound of a particle's audio intensity.
	WaveAmp      float64 // Amplitude of the idle wave terms.
	OrbitRadius  float64 // Radius of the idle orbit around the rest position.
	OrbitSpeed   float64 // Orbit angular speed, rad/s.
	ActiveScale  float64 // Position scale while active.
	SizeBoost    float64 // Size gain per unit intensity.
	HueShift     float64 // Hue gain per unit intensity.
	LightBoost   float64 // Lightness gain per unit intensity.
	GlobalLift   float64 // Lightness gain per unit field-wide intensity.
	Saturation   float64
	Lightness    float64
	ColorLerp    float64 // Per-frame easing toward the target color.

	PointerReach    float64 // World units per NDC unit on the field plane.
	PointerStrength float64
	MaxPull         float64 // Upper bound of one frame's pointer pull.
}

// ParticleConfig describes a particle field. Use DefaultParticleConfig for
// a coherent constant set per distribution.
type ParticleConfig struct {
	Count        int
	Distribution Distribution
	HueMin       float64
	HueMax       float64
	SizeMin      float64
	SizeMax      float64
	MaxRadius    float64 // Containment radius around each particle's centre.
	Curve        ResponseCurve
	Seed         uint64
}

// Particle counts per tier.
const (
	DesktopParticles = 2000
	MobileParticles  = 1000
)

// DefaultParticleConfig returns the constant set for a distribution.
func DefaultParticleConfig(d Distribution, tier Tier) ParticleConfig {
	cfg := ParticleConfig{
		Count:        DesktopParticles,
		Distribution: d,
		HueMin:       0.75,
		HueMax:       0.85,
		SizeMin:      0.5,
		SizeMax:      1.0,
		MaxRadius:    7,
		Seed:         1,
		Curve: ResponseCurve{
			IntensityCap:    0.85,
			WaveAmp:         0.3,
			OrbitRadius:     0.15,
			OrbitSpeed:      0.4,
			ActiveScale:     1.2,
			SizeBoost:       2,
			HueShift:        0.25,
			LightBoost:      0.4,
			GlobalLift:      0.1,
			Saturation:      0.8,
			Lightness:       0.6,
			ColorLerp:       0.15,
			PointerReach:    5,
			PointerStrength: 2,
			MaxPull:         1.5,
		},
	}
	if tier == Mobile {
		cfg.Count = MobileParticles
	}

	switch d {
	case Shell:
		cfg.Curve.OrbitRadius = 0.35
		cfg.Curve.OrbitSpeed = 0.6
	case Cluster:
		cfg.MaxRadius = 2.5
		cfg.Curve.WaveAmp = 0.15
		cfg.Curve.OrbitRadius = 0.1
		cfg.Curve.PointerStrength = 1
		cfg.Curve.MaxPull = 0.5
	case Curtain:
		cfg.MaxRadius = 9
		cfg.Curve.OrbitRadius = 0.05
		cfg.Curve.WaveAmp = 0.4
	}
	return cfg
}

// Validate reports a config the field cannot honor.
func (c ParticleConfig) Validate() error {
	var errs []error
	if c.Count <= 0 {
		errs = append(errs, fmt.Errorf("particle count must be positive, got %d", c.Count))
	}
	if !(c.MaxRadius > 0) || math.IsInf(c.MaxRadius, 0) {
		errs = append(errs, fmt.Errorf("max radius must be positive and finite, got %v", c.MaxRadius))
	}
	if c.HueMin > c.HueMax {
		errs = append(errs, fmt.Errorf("hue range [%v, %v] is inverted", c.HueMin, c.HueMax))
	}
	if c.SizeMin < 0 || c.SizeMin > c.SizeMax {
		errs = append(errs, fmt.Errorf("size range [%v, %v] is invalid", c.SizeMin, c.SizeMax))
	}
	if c.Curve.MaxPull >= c.MaxRadius {
		errs = append(errs, fmt.Errorf("max pull %v must stay below max radius %v", c.Curve.MaxPull, c.MaxRadius))
	}
	if c.Curve.IntensityCap < 0 || c.Curve.IntensityCap > 1 {
		errs = append(errs, fmt.Errorf("intensity cap must be within [0, 1], got %v", c.Curve.IntensityCap))
	}
	return errors.Join(errs...)
}

// Pointer is a normalized device coordinate in [-1, 1]², present only
// while the pointer is over the scene.
type Pointer struct {
	X, Y   float64
	Active bool
}

// ParticleData is the render buffer of a field: xyz positions, rgb colors
// and sizes, flattened per particle.
type ParticleData struct {
	Positions []float32 `json:"positions" msgpack:"positions"`
	Colors    []float32 `json:"colors" msgpack:"colors"`
	Sizes     []float32 `json:"sizes" msgpack:"sizes"`
}

// ParticleField animates a fixed set of particles. All particles are
// created by NewParticleField and live as long as the field.
type ParticleField struct {
	cfg ParticleConfig

	rest     []r3.Vec
	centre   []r3.Vec
	baseSize []float64
	baseHue  []float64
	phase    []float64

	pos   []r3.Vec
	color []HSL
	size  []float64
}

// NewParticleField builds the rest attributes from cfg's distribution and
// seed. The same config always yields the same field.
func NewParticleField(cfg ParticleConfig) (*ParticleField, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Count
	f := &ParticleField{
		cfg:      cfg,
		rest:     make([]r3.Vec, n),
		centre:   make([]r3.Vec, n),
		baseSize: make([]float64, n),
		baseHue:  make([]float64, n),
		phase:    make([]float64, n),
		pos:      make([]r3.Vec, n),
		color:    make([]HSL, n),
		size:     make([]float64, n),
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	for i := range n {
		f.rest[i], f.centre[i] = cfg.Distribution.restPosition(i, rng)
		f.baseHue[i] = cfg.HueMin + rng.Float64()*(cfg.HueMax-cfg.HueMin)
		f.baseSize[i] = cfg.SizeMin + rng.Float64()*(cfg.SizeMax-cfg.SizeMin)
		f.phase[i] = math.Mod(float64(i)*goldenAngle, 2*math.Pi)

		f.pos[i] = f.contain(i, f.rest[i])
		f.color[i] = HSL{H: f.baseHue[i], S: cfg.Curve.Saturation, L: cfg.Curve.Lightness}
		f.size[i] = f.baseSize[i]
	}

	logger.Debugf("particle field: %d particles, %s, max radius %.2f", n, cfg.Distribution, cfg.MaxRadius)
	return f, nil
}

// Config returns the field's configuration.
func (f *ParticleField) Config() ParticleConfig { return f.cfg }

// Len returns the particle count.
func (f *ParticleField) Len() int { return len(f.pos) }

// Position returns the rendered position of particle i.
func (f *ParticleField) Position(i int) r3.Vec { return f.pos[i] }

// Centre returns the point particle i is contained around.
func (f *ParticleField) Centre(i int) r3.Vec { return f.centre[i] }

// Size returns the rendered size of particle i.
func (f *ParticleField) Size(i int) float64 { return f.size[i] }

// Color returns the rendered color of particle i.
func (f *ParticleField) Color(i int) HSL { return f.color[i] }

// Intensity returns particle i's capped audio intensity for buf.
func (f *ParticleField) Intensity(i int, buf *spectrum.Buffer, active bool) float64 {
	if !active {
		return 0
	}
	return clamp(buf.Level(i), 0, f.cfg.Curve.IntensityCap)
}

// Update advances every particle to time t.
func (f *ParticleField) Update(t float64, buf *spectrum.Buffer, active bool, ptr Pointer) {
	c := f.cfg.Curve

	breathe := (math.Sin(0.5*t)*0.5+0.5)*0.3 + 0.7
	scale := breathe
	var avg float64
	if active {
		scale *= c.ActiveScale
		avg = math.Min(buf.Mean(0, buf.Len()), c.IntensityCap)
	}

	var target r3.Vec
	if ptr.Active {
		target = r3.Vec{X: c.PointerReach * clamp(ptr.X, -1, 1), Y: c.PointerReach * clamp(ptr.Y, -1, 1)}
	}

	for i := range f.pos {
		a := f.Intensity(i, buf, active)
		d := 2 * a
		p0, centre, phi := f.rest[i], f.centre[i], f.phase[i]

		wave := r3.Vec{
			X: math.Sin(0.7*t + p0.X),
			Y: math.Cos(0.8*t + p0.Y),
			Z: math.Sin(0.9*t + p0.Z),
		}
		orbitAngle := c.OrbitSpeed*t + phi
		orbit := r3.Vec{X: math.Cos(orbitAngle), Y: math.Sin(orbitAngle)}

		p := r3.Add(centre, r3.Scale(scale*(1+d/2), r3.Sub(p0, centre)))
		p = r3.Add(p, r3.Scale(c.WaveAmp*(1+d), wave))
		p = r3.Add(p, r3.Scale(c.OrbitRadius, orbit))

		if ptr.Active {
			p = r3.Add(p, pointerPull(p, target, c.PointerStrength, c.MaxPull))
		}
		f.pos[i] = f.contain(i, p)

		f.size[i] = f.baseSize[i] * (1 + c.SizeBoost*a) * (1 + 0.1*math.Sin(2*t+phi))

		goal := HSL{
			H: f.baseHue[i] + 0.03*math.Sin(0.2*t+phi) + c.HueShift*a,
			S: c.Saturation,
			L: c.Lightness + c.LightBoost*a + c.GlobalLift*avg,
		}
		f.color[i] = LerpHSL(f.color[i], goal, c.ColorLerp)
	}
}

// pointerPull moves p toward target, harder when closer, never further
// than maxPull in one frame.
func pointerPull(p, target r3.Vec, strength, maxPull float64) r3.Vec {
	dir := r3.Sub(target, p)
	dist := r3.Norm(dir)
	if !(dist > 1e-9) || math.IsInf(dist, 0) {
		return r3.Vec{}
	}
	pull := math.Min(dist, math.Min(strength/(1+dist), maxPull))
	return r3.Scale(pull/dist, dir)
}

// contain rescales p onto the containment sphere of particle i when it
// lies outside it. A non-finite p collapses to the centre.
func (f *ParticleField) contain(i int, p r3.Vec) r3.Vec {
	centre := f.centre[i]
	off := r3.Sub(p, centre)
	dist := r3.Norm(off)
	switch {
	case math.IsNaN(dist) || math.IsInf(dist, 0):
		return centre
	case dist > f.cfg.MaxRadius:
		return r3.Add(centre, r3.Scale(f.cfg.MaxRadius/dist, off))
	default:
		return p
	}
}

// Data returns a fresh copy of the render buffers.
func (f *ParticleField) Data() ParticleData {
	var d ParticleData
	f.DataInto(&d)
	return d
}

// DataInto fills d, reusing its slices when they are large enough.
func (f *ParticleField) DataInto(d *ParticleData) {
	n := len(f.pos)
	d.Positions = grow(d.Positions, 3*n)
	d.Colors = grow(d.Colors, 3*n)
	d.Sizes = grow(d.Sizes, n)
	for i, p := range f.pos {
		d.Positions[3*i] = float32(p.X)
		d.Positions[3*i+1] = float32(p.Y)
		d.Positions[3*i+2] = float32(p.Z)
		rgb := f.color[i].RGB()
		d.Colors[3*i] = rgb.R
		d.Colors[3*i+1] = rgb.G
		d.Colors[3*i+2] = rgb.B
		d.Sizes[i] = float32(f.size[i])
	}
}

func grow(s []float32, n int) []float32 {
	if cap(s) < n {
		return make([]float32, n)
	}
	return s[:n]
}
