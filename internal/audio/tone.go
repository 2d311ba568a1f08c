// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"math"

	"ambience/pkg/utils"
)

// ToneBackend synthesizes a sine whose loudness swells and fades every
// couple of seconds, a stand-in for a voice when no microphone is present.
type ToneBackend struct {
	Frequency float64 // Hz; 440 when zero.
	Amplitude float64 // Peak, 0-1 of full scale; 0.5 when zero.
	SwellHz   float64 // Envelope rate; 0.5 when zero.
}

var _ Backend = (*ToneBackend)(nil)

func (b *ToneBackend) Name() string { return "tone" }

// Open never fails unless ctx is already done.
func (b *ToneBackend) Open(ctx context.Context, cfg StreamConfig, sink Sink) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	freq := b.Frequency
	if freq <= 0 {
		freq = 440
	}
	amp := b.Amplitude
	if amp <= 0 {
		amp = 0.5
	}
	swell := b.SwellHz
	if swell <= 0 {
		swell = 0.5
	}

	channels := max(cfg.Channels, 1)
	mono := make([]int32, cfg.FramesPerBuffer)
	var phase, elapsed float64
	blockSeconds := float64(cfg.FramesPerBuffer) / cfg.SampleRate

	fill := func(block []int32) {
		env := 0.55 + 0.45*math.Sin(2*math.Pi*swell*elapsed)
		phase = utils.SineInto(mono, cfg.SampleRate, freq, amp*env, phase)
		elapsed += blockSeconds
		for f, v := range mono {
			for c := range channels {
				block[f*channels+c] = v
			}
		}
	}
	return newPacedStream(cfg, sink, fill), nil
}
