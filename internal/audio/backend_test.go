// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// collector is a Sink that keeps copies of the blocks it receives.
type collector struct {
	mu     sync.Mutex
	blocks [][]int32
}

func (c *collector) sink(block []int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, append([]int32(nil), block...))
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

func (c *collector) all() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int32
	for _, b := range c.blocks {
		out = append(out, b...)
	}
	return out
}

func writeTestWAV(t *testing.T, samples []int, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, testSampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: testSampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

var smallStream = StreamConfig{SampleRate: testSampleRate, FramesPerBuffer: 64, Channels: 1}

func TestToneBackend(t *testing.T) {
	var c collector
	stream, err := (&ToneBackend{Frequency: 440}).Open(context.Background(), smallStream, c.sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.count() != 0 {
		t.Fatal("blocks delivered before Start")
	}
	if err := stream.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "tone blocks", func() bool { return c.count() >= 3 })
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n := c.count()
	if peak := peakAmplitude(c.all()); peak == 0 {
		t.Error("tone produced only silence")
	}
	if err := stream.Start(); !errors.Is(err, errStreamClosed) {
		t.Errorf("Start after Close = %v, want errStreamClosed", err)
	}
	if c.count() != n {
		t.Error("blocks delivered after Close")
	}
}

func TestToneBackendCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&ToneBackend{}).Open(ctx, smallStream, func([]int32) {}); !errors.Is(err, context.Canceled) {
		t.Errorf("Open error = %v, want context.Canceled", err)
	}
}

func TestWAVBackend(t *testing.T) {
	// Stereo file: left and right average to 100, 200, ... in 16-bit.
	const frames = 100
	samples := make([]int, frames*2)
	for i := range frames {
		samples[2*i] = (i + 1) * 150
		samples[2*i+1] = (i + 1) * 50
	}
	path := writeTestWAV(t, samples, 2)

	tests := []struct {
		desc string
		loop bool
	}{
		{"Once", false},
		{"Loop", true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var c collector
			stream, err := (&WAVBackend{Path: path, Loop: tt.loop}).Open(context.Background(), smallStream, c.sink)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if err := stream.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			waitFor(t, "wav blocks", func() bool { return c.count() >= 4 })
			stream.Close()

			got := c.all()
			for i := range frames {
				want := int32((i + 1) * 100 << 16)
				if got[i] != want {
					t.Fatalf("sample %d = %d, want %d", i, got[i], want)
				}
			}
			next := got[frames]
			if tt.loop && next != 100<<16 {
				t.Errorf("sample after end = %d, want loop to first sample", next)
			}
			if !tt.loop && next != 0 {
				t.Errorf("sample after end = %d, want silence", next)
			}
		})
	}
}

func TestWAVBackendErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		desc string
		path string
	}{
		{"Missing file", filepath.Join(dir, "missing.wav")},
		{"Not a wav", garbage},
		{"Empty", writeTestWAV(t, nil, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if _, err := (&WAVBackend{Path: tt.path}).Open(context.Background(), smallStream, func([]int32) {}); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestMicBackend(t *testing.T) {
	fakeDevices(t, testInfos)

	var gotParams portaudio.StreamParameters
	orig := paOpenStream
	t.Cleanup(func() { paOpenStream = orig })
	paOpenStream = func(p portaudio.StreamParameters, cb func([]int32)) (Stream, error) {
		gotParams = p
		cb([]int32{1, 2, 3})
		return &fakeStream{}, nil
	}

	var c collector
	b := &MicBackend{DeviceID: 0, LowLatency: true}
	if _, err := b.Open(context.Background(), smallStream, c.sink); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotParams.Input.Device != testInfos[0] {
		t.Error("wrong device opened")
	}
	if gotParams.Input.Latency != testInfos[0].DefaultLowInputLatency {
		t.Errorf("latency = %v, want low latency", gotParams.Input.Latency)
	}
	if gotParams.Output.Channels != 0 || gotParams.FramesPerBuffer != smallStream.FramesPerBuffer {
		t.Errorf("unexpected params %+v", gotParams)
	}
	if c.count() != 1 {
		t.Error("callback does not reach the sink")
	}
}

func TestMicBackendErrors(t *testing.T) {
	fakeDevices(t, testInfos)
	orig := paOpenStream
	t.Cleanup(func() { paOpenStream = orig })
	errOpen := errors.New("open failed")
	paOpenStream = func(portaudio.StreamParameters, func([]int32)) (Stream, error) {
		return nil, errOpen
	}

	stereo := smallStream
	stereo.Channels = 2

	tests := []struct {
		desc string
		id   int
		cfg  StreamConfig
	}{
		{"Output-only device", 1, smallStream},
		{"Out of range", 7, smallStream},
		{"Too many channels", 0, stereo},
		{"Open failure", 2, smallStream},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			stream, err := (&MicBackend{DeviceID: tt.id}).Open(context.Background(), tt.cfg, func([]int32) {})
			if err == nil {
				t.Error("Expected error but got none")
			}
			if stream != nil {
				t.Error("stream returned with error")
			}
		})
	}
}
