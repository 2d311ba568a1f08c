// SPDX-License-Identifier: MIT
package scene

import (
	"fmt"
	"strings"

	"ambience/internal/analysis"
	"ambience/internal/visual"
)

// Camera is the fixed viewpoint of the scene.
type Camera struct {
	Position [3]float64 `json:"position" msgpack:"position"`
	FOV      float64    `json:"fov" msgpack:"fov"`
}

// Light is one scene light. Ambient lights have no position.
type Light struct {
	Kind      string     `json:"kind" msgpack:"kind"`
	Position  [3]float64 `json:"position" msgpack:"position"`
	Intensity float64    `json:"intensity" msgpack:"intensity"`
	Color     string     `json:"color" msgpack:"color"`
}

// Layout is everything about the scene that does not change per frame.
type Layout struct {
	Tier          string           `json:"tier" msgpack:"tier"`
	Camera        Camera           `json:"camera" msgpack:"camera"`
	Lights        []Light          `json:"lights" msgpack:"lights"`
	Particles     int              `json:"particles" msgpack:"particles"`
	Distribution  string           `json:"distribution" msgpack:"distribution"`
	MaxRadius     float64          `json:"max_radius" msgpack:"max_radius"`
	RingBars      []visual.BarBase `json:"ring_bars" msgpack:"ring_bars"`
	RingRadius    float64          `json:"ring_radius" msgpack:"ring_radius"`
	LineBars      []visual.BarBase `json:"line_bars,omitempty" msgpack:"line_bars,omitempty"`
	MeshSize      float64          `json:"mesh_size" msgpack:"mesh_size"`
	FrequencyBins int              `json:"frequency_bins" msgpack:"frequency_bins"`
}

// Config selects the components of a scene. Tier is resolved before the
// scene is built and never changes afterwards.
type Config struct {
	Tier       visual.Tier
	Particles  visual.ParticleConfig
	Ring       visual.BarConfig
	Line       *visual.BarConfig // Optional linear bar field.
	Mesh       visual.MeshConfig
	Bands      []analysis.FrequencyBand
	SampleRate float64 // Used to place band edges on bins.
	FFTSize    int
}

// DefaultConfig returns the scene for a tier and particle distribution.
func DefaultConfig(tier visual.Tier, d visual.Distribution) Config {
	return Config{
		Tier:       tier,
		Particles:  visual.DefaultParticleConfig(d, tier),
		Ring:       visual.DefaultBarConfig(visual.Ring, tier),
		Mesh:       visual.DefaultMeshConfig(tier),
		Bands:      analysis.DefaultBands,
		SampleRate: 44100,
		FFTSize:    256,
	}
}

// ResolveTier turns the configured tier ("auto", "desktop" or "mobile") and
// the client viewport width into a tier. Auto uses the width breakpoint.
func ResolveTier(setting string, viewportWidth int) (visual.Tier, error) {
	if setting == "" || strings.EqualFold(setting, "auto") {
		return visual.TierForWidth(viewportWidth), nil
	}
	tier, err := visual.ParseTier(setting)
	if err != nil {
		return visual.Desktop, fmt.Errorf("scene tier: %w", err)
	}
	return tier, nil
}

// cameraFor frames the scene wider on constrained screens.
func cameraFor(tier visual.Tier) Camera {
	if tier == visual.Mobile {
		return Camera{Position: [3]float64{0, 2.5, 8}, FOV: 70}
	}
	return Camera{Position: [3]float64{0, 2, 6}, FOV: 60}
}

func defaultLights() []Light {
	return []Light{
		{Kind: "ambient", Intensity: 0.4, Color: "#ffffff"},
		{Kind: "point", Position: [3]float64{0, 5, 0}, Intensity: 1, Color: "#ffffff"},
		{Kind: "point", Position: [3]float64{5, 0, 5}, Intensity: 0.8, Color: "#9b87f5"},
	}
}
