// SPDX-License-Identifier: MIT
package scene

import (
	"fmt"

	"ambience/internal/analysis"
	"ambience/internal/visual"
)

// Frame is one rendered snapshot. It owns its slices and is never
// modified after Tick returns it.
type Frame struct {
	Seq       uint64               `json:"seq" msgpack:"seq"`
	Time      float64              `json:"time" msgpack:"time"`
	State     State                `json:"state" msgpack:"state"`
	BufferSeq uint64               `json:"buffer_seq" msgpack:"buffer_seq"`
	Particles visual.ParticleData  `json:"particles" msgpack:"particles"`
	Ring      []visual.Bar         `json:"ring" msgpack:"ring"`
	Line      []visual.Bar         `json:"line,omitempty" msgpack:"line,omitempty"`
	Mesh      visual.MeshState     `json:"mesh" msgpack:"mesh"`
	Bands     []analysis.BandLevel `json:"bands,omitempty" msgpack:"bands,omitempty"`
}

// Summary is a compact description of a frame for logs and terminals.
type Summary struct {
	Seq        uint64
	State      State
	Particles  int
	MeanHeight float64
	PeakBar    int
	Distortion float64
}

// Summarize reduces f to a Summary.
func (f *Frame) Summarize() Summary {
	s := Summary{
		Seq:        f.Seq,
		State:      f.State,
		Particles:  len(f.Particles.Sizes),
		PeakBar:    -1,
		Distortion: f.Mesh.Distortion,
	}
	peak := -1.0
	for i, b := range f.Ring {
		s.MeanHeight += b.Height
		if b.Height > peak {
			peak, s.PeakBar = b.Height, i
		}
	}
	if n := len(f.Ring); n > 0 {
		s.MeanHeight /= float64(n)
	}
	return s
}

func (f *Frame) String() string {
	s := f.Summarize()
	return fmt.Sprintf("frame %d %s: %d particles, mean bar %.2f, peak bar %d, distortion %.2f",
		s.Seq, s.State, s.Particles, s.MeanHeight, s.PeakBar, s.Distortion)
}
