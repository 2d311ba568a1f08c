// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

var errEmptyFile = errors.New("wav file has no samples")

// WAVBackend plays a WAV file in real time as if it were a microphone.
// The whole file is decoded on Open and looped when Loop is set; otherwise
// silence follows the last sample.
type WAVBackend struct {
	Path string
	Loop bool
}

var _ Backend = (*WAVBackend)(nil)

func (b *WAVBackend) Name() string { return "wav" }

// Open decodes the file into mono int32 PCM.
func (b *WAVBackend) Open(ctx context.Context, cfg StreamConfig, sink Sink) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	samples, rate, err := decodeWAV(b.Path)
	if err != nil {
		return nil, err
	}
	if float64(rate) != cfg.SampleRate {
		logger.Warnf("%s is %d Hz, playing at %.0f Hz", b.Path, rate, cfg.SampleRate)
	}
	logger.Infof("opening %s (%d samples, loop %v)", b.Path, len(samples), b.Loop)

	channels := max(cfg.Channels, 1)
	pos := 0
	fill := func(block []int32) {
		for f := 0; f < len(block)/channels; f++ {
			var v int32
			if pos < len(samples) {
				v = samples[pos]
				pos++
				if pos == len(samples) && b.Loop {
					pos = 0
				}
			}
			for c := range channels {
				block[f*channels+c] = v
			}
		}
	}
	return newPacedStream(cfg, sink, fill), nil
}

// decodeWAV returns the file as mono samples scaled to full int32 range,
// plus its sample rate.
func decodeWAV(path string) ([]int32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, errEmptyFile
	}

	shift := 32 - int(d.BitDepth)
	if shift < 0 {
		shift = 0
	}
	mono := make([]int32, frames)
	for i := range frames {
		var sum int64
		for c := range channels {
			sum += int64(buf.Data[i*channels+c])
		}
		mono[i] = int32((sum / int64(channels)) << shift)
	}
	return mono, int(d.SampleRate), nil
}
