// SPDX-License-Identifier: MIT
package visual

import (
	"math"

	"ambience/internal/spectrum"

	"github.com/charmbracelet/harmonica"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh sizes per tier.
const (
	DesktopMeshSize = 1.2
	MobileMeshSize  = 0.8
)

// Idle and active distortion bounds. Active values are always above the
// idle maxima.
const (
	idleDistortionMax = 0.25
	idleSpeed         = 2.0
	activeDistortion  = 0.4
	activeSpeed       = 4.0
)

// MeshConfig describes the morphing mesh.
type MeshConfig struct {
	Size            float64
	FPS             int     // Update rate the spring is tuned for.
	SpringFrequency float64 // Angular frequency of the scale spring.
	SpringDamping   float64 // 1 is critically damped.
}

// DefaultMeshConfig returns the mesh constants for a tier.
func DefaultMeshConfig(tier Tier) MeshConfig {
	cfg := MeshConfig{Size: DesktopMeshSize, FPS: 60, SpringFrequency: 6, SpringDamping: 1}
	if tier == Mobile {
		cfg.Size = MobileMeshSize
	}
	return cfg
}

// MeshState is the rendered state of the mesh.
type MeshState struct {
	Scale      r3.Vec  `json:"scale" msgpack:"scale"`
	Rotation   r3.Vec  `json:"rotation" msgpack:"rotation"`
	PositionY  float64 `json:"position_y" msgpack:"position_y"`
	Distortion float64 `json:"distortion" msgpack:"distortion"`
	Speed      float64 `json:"speed" msgpack:"speed"`
	Intensity  float64 `json:"intensity" msgpack:"intensity"`
}

// MorphingMesh is the single body that shows the system is listening.
type MorphingMesh struct {
	cfg    MeshConfig
	spring harmonica.Spring
	vel    r3.Vec
	state  MeshState
}

// NewMorphingMesh returns a mesh at rest at its base size.
func NewMorphingMesh(cfg MeshConfig) *MorphingMesh {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	if cfg.Size <= 0 {
		cfg.Size = DesktopMeshSize
	}
	return &MorphingMesh{
		cfg:    cfg,
		spring: harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.SpringFrequency, cfg.SpringDamping),
		state: MeshState{
			Scale:      r3.Vec{X: cfg.Size, Y: cfg.Size, Z: cfg.Size},
			Distortion: 0.2,
			Speed:      idleSpeed,
		},
	}
}

// MidBandIntensity averages bins [len/4, 3len/4), skipping the noisy or
// silent extremes.
func MidBandIntensity(buf *spectrum.Buffer) float64 {
	n := buf.Len()
	return buf.Mean(n/4, 3*n/4)
}

// Update advances the mesh to time t.
func (m *MorphingMesh) Update(t float64, buf *spectrum.Buffer, active bool) {
	size := m.cfg.Size
	var target r3.Vec
	s := &m.state

	if active {
		a := MidBandIntensity(buf)
		target = r3.Vec{X: size * (1 + 0.2*a), Y: size * (1 + 0.3*a), Z: size * (1 + 0.2*a)}
		s.Rotation = r3.Vec{X: 0.1 * math.Sin(0.5*t), Y: 0.2*t + 0.5*a*math.Sin(0.5*t)}
		s.PositionY = 0.1*math.Sin(t) + 0.2*a
		s.Distortion = activeDistortion + 0.3*a
		s.Speed = activeSpeed + 2*a
		s.Intensity = a
	} else {
		breath := 1 + 0.05*math.Sin(0.5*t)
		target = r3.Vec{X: size * breath, Y: size * breath, Z: size * breath}
		s.Rotation = r3.Vec{Y: 0.1 * t}
		s.PositionY = 0.1 * math.Sin(0.5*t)
		s.Distortion = 0.2 + 0.05*math.Sin(0.5*t)
		s.Speed = idleSpeed
		s.Intensity = 0
	}

	s.Scale.X, m.vel.X = m.spring.Update(s.Scale.X, m.vel.X, target.X)
	s.Scale.Y, m.vel.Y = m.spring.Update(s.Scale.Y, m.vel.Y, target.Y)
	s.Scale.Z, m.vel.Z = m.spring.Update(s.Scale.Z, m.vel.Z, target.Z)
}

// State returns the rendered state.
func (m *MorphingMesh) State() MeshState { return m.state }

// Config returns the mesh configuration.
func (m *MorphingMesh) Config() MeshConfig { return m.cfg }
