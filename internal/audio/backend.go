// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// StreamConfig is the shape of the blocks a backend delivers.
type StreamConfig struct {
	SampleRate      float64
	FramesPerBuffer int
	Channels        int // Interleaved channels per block.
}

// Sink receives interleaved int32 PCM blocks. It runs on the backend's
// real-time thread and must not block.
type Sink func(block []int32)

// Stream is an opened capture stream. *portaudio.Stream satisfies it.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend opens capture streams. Open must not deliver blocks before the
// returned stream is started.
type Backend interface {
	Name() string
	Open(ctx context.Context, cfg StreamConfig, sink Sink) (Stream, error)
}

// MicBackend captures from a PortAudio input device. PortAudio must be
// initialized for the lifetime of every stream it opens.
type MicBackend struct {
	DeviceID   int
	LowLatency bool
}

var _ Backend = (*MicBackend)(nil)

// paOpenStream is replaced in tests.
var paOpenStream = func(params portaudio.StreamParameters, callback func(in []int32)) (Stream, error) {
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (b *MicBackend) Name() string { return "mic" }

// Open resolves the device and opens, but does not start, an input-only
// stream.
func (b *MicBackend) Open(ctx context.Context, cfg StreamConfig, sink Sink) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	device, err := InputDevice(b.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("device %q has %d input channels, need %d", device.Name, device.MaxInputChannels, cfg.Channels)
	}

	latency := device.DefaultHighInputLatency
	if b.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.Channels,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      cfg.SampleRate,
	}

	logger.Infof("opening %q (%d ch, %.0f Hz, %d frames, latency %s)",
		device.Name, cfg.Channels, cfg.SampleRate, cfg.FramesPerBuffer, latency)

	stream, err := paOpenStream(params, func(in []int32) { sink(in) })
	if err != nil {
		return nil, err
	}
	return stream, nil
}
