// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture pipeline and the scene.
const (
	// Capture defaults.
	DefaultSource          = SourceMic
	DefaultDeviceID        = MinDeviceID // System default input device.
	DefaultChannels        = 1           // Mono capture.
	DefaultSampleRate      = 44100       // CD-quality audio.
	DefaultFramesPerBuffer = 512         // Balanced latency/performance.
	DefaultLowLatency      = false
	DefaultPollInterval    = 16 * time.Millisecond // About one display frame.
	DefaultToneFrequency   = 440.0
	DefaultGateEnabled     = true
	DefaultGateThreshold   = 0.001 // Fraction of full scale.

	// Analyser defaults. These match a browser AnalyserNode.
	DefaultFFTSize     = 256
	DefaultFFTWindow   = "Blackman"
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0

	// Recording defaults.
	DefaultRecordingDir = "./recordings"
	DefaultFormat       = "wav"
	DefaultBitDepth     = 16

	// Scene defaults.
	DefaultTier          = "auto"
	DefaultViewportWidth = 1280
	DefaultFPS           = 60
	DefaultDistribution  = "sphere"
	DefaultSeed          = 1

	// Transport defaults.
	DefaultAddr            = "127.0.0.1:8080"
	DefaultPath            = "/ws"
	DefaultEncoding        = EncodingJSON
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond // About 30Hz.

	DefaultVerbosity = false

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2).
	MinFFTSize      = 32
	MaxFFTSize      = 32768
	MaxFPS          = 240
)

// Capture sources.
const (
	SourceMic  = "mic"
	SourceWAV  = "wav"
	SourceTone = "tone"
)

// Frame encodings.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)
