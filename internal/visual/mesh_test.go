// SPDX-License-Identifier: MIT
package visual

import (
	"math"
	"testing"

	"ambience/internal/spectrum"
)

func TestMeshActiveDistortsMore(t *testing.T) {
	silence := spectrum.Zero(spectrum.DefaultBins)
	for k := range 200 {
		tm := float64(k) * 0.173

		idle := NewMorphingMesh(DefaultMeshConfig(Desktop))
		idle.Update(tm, silence, false)
		active := NewMorphingMesh(DefaultMeshConfig(Desktop))
		active.Update(tm, silence, true)

		is, as := idle.State(), active.State()
		if is.Distortion > idleDistortionMax {
			t.Fatalf("t=%.2f idle distortion %v above %v", tm, is.Distortion, idleDistortionMax)
		}
		if !(as.Distortion > is.Distortion) || !(as.Speed > is.Speed) {
			t.Fatalf("t=%.2f active %+v not above idle %+v", tm, as, is)
		}
	}
}

func TestMidBandIntensity(t *testing.T) {
	edges := make([]uint8, 128)
	for i := range 32 {
		edges[i] = 255
		edges[127-i] = 255
	}
	tests := []struct {
		desc string
		buf  *spectrum.Buffer
		want float64
	}{
		{"Extremes ignored", spectrum.NewBuffer(edges, 1), 0},
		{"Full", filled(128, 255), 1},
		{"Half", filled(64, 51), 0.2},
		{"Empty", spectrum.Zero(0), 0},
		{"Nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := MidBandIntensity(tt.buf); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MidBandIntensity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMeshSpringSettles(t *testing.T) {
	m := NewMorphingMesh(DefaultMeshConfig(Mobile))
	size := MobileMeshSize
	full := filled(128, 255)

	prevY := m.State().Scale.Y
	for k := range 300 {
		m.Update(float64(k)*frameDt, full, true)
		y := m.State().Scale.Y
		if y > size*1.3+1e-6 {
			t.Fatalf("critically damped spring overshot: %v", y)
		}
		if y < prevY-1e-9 {
			t.Fatalf("scale moved away from target at frame %d", k)
		}
		prevY = y
	}

	s := m.State()
	if math.Abs(s.Scale.Y-size*1.3) > 1e-3 || math.Abs(s.Scale.X-size*1.2) > 1e-3 {
		t.Errorf("scale %v did not settle on (%.2f, %.2f)", s.Scale, size*1.2, size*1.3)
	}
	if s.Intensity != 1 {
		t.Errorf("intensity = %v, want 1", s.Intensity)
	}
}

func TestMeshIdleBreathing(t *testing.T) {
	m := NewMorphingMesh(DefaultMeshConfig(Desktop))
	m.Update(math.Pi, filled(128, 255), false)
	s := m.State()
	if s.Speed != idleSpeed || s.Intensity != 0 {
		t.Errorf("idle state %+v reacts to audio", s)
	}
	if want := 0.1 * math.Pi; math.Abs(s.Rotation.Y-want) > 1e-12 {
		t.Errorf("idle rotation %v, want %v", s.Rotation.Y, want)
	}
}

func TestDefaultMeshConfig(t *testing.T) {
	if got := DefaultMeshConfig(Desktop).Size; got != DesktopMeshSize {
		t.Errorf("desktop size %v", got)
	}
	if got := DefaultMeshConfig(Mobile).Size; got != MobileMeshSize {
		t.Errorf("mobile size %v", got)
	}
	m := NewMorphingMesh(MeshConfig{})
	if m.Config().FPS != 60 || m.Config().Size != DesktopMeshSize {
		t.Errorf("zero config not defaulted: %+v", m.Config())
	}
}
