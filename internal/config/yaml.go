// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ambience/internal/log"
	"ambience/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var logger = log.New("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces the debug log level.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Scene     SceneConfig     `yaml:"scene"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds settings related to audio capture and analysis.
type AudioConfig struct {
	Source          string        `yaml:"source"`            // "mic", "wav" or "tone".
	InputDevice     int           `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64       `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Frames per capture block.
	LowLatency      bool          `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int           `yaml:"input_channels"`    // Channels to capture; downmixed to mono for analysis.
	WAVPath         string        `yaml:"wav_path"`          // File played by the "wav" source.
	ToneFrequency   float64       `yaml:"tone_frequency"`    // Fundamental of the "tone" source in Hz.
	PollInterval    time.Duration `yaml:"poll_interval"`     // How often fresh bins are published.
	GateEnabled     bool          `yaml:"gate_enabled"`
	GateThreshold   float64       `yaml:"gate_threshold"` // 0.0-1.0 of full scale.
	FFTSize         int           `yaml:"fft_size"`
	FFTWindow       string        `yaml:"fft_window"` // Window function name (e.g., "Blackman", "Hann").
	Smoothing       float64       `yaml:"smoothing"`  // Analyser smoothing time constant.
	MinDecibels     float64       `yaml:"min_decibels"`
	MaxDecibels     float64       `yaml:"max_decibels"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record every capture session to a file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	Format    string `yaml:"format"`     // File format for recordings (only "wav").
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16, 24 or 32).
}

// SceneConfig holds the visualization settings.
type SceneConfig struct {
	Tier          string          `yaml:"tier"`           // "auto", "desktop" or "mobile".
	ViewportWidth int             `yaml:"viewport_width"` // Used when tier is "auto".
	FPS           int             `yaml:"fps"`
	Particles     ParticlesConfig `yaml:"particles"`
	Bars          BarsConfig      `yaml:"bars"`
	Mesh          MeshConfig      `yaml:"mesh"`
}

// ParticlesConfig selects the particle field variant. Zero values keep the
// tier defaults.
type ParticlesConfig struct {
	Distribution string  `yaml:"distribution"` // "sphere", "shell", "cluster" or "curtain".
	Count        int     `yaml:"count"`
	MaxRadius    float64 `yaml:"max_radius"`
	Seed         uint64  `yaml:"seed"`
}

// BarsConfig controls the bar fields.
type BarsConfig struct {
	Line      bool    `yaml:"line"`       // Add a line bar field below the ring.
	Smoothing float64 `yaml:"smoothing"`  // Per-frame height interpolation factor.
	MaxStep   float64 `yaml:"max_step"`   // Largest height change per frame.
	MinHeight float64 `yaml:"min_height"` // Floor for every bar.
}

// MeshConfig controls the morphing mesh spring.
type MeshConfig struct {
	SpringFrequency float64 `yaml:"spring_frequency"`
	SpringDamping   float64 `yaml:"spring_damping"`
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	Addr             string        `yaml:"addr"`     // Websocket listen address.
	Path             string        `yaml:"path"`     // Websocket endpoint path.
	Encoding         string        `yaml:"encoding"` // "json" or "msgpack".
	LogFrames        bool          `yaml:"log_frames"`
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			ToneFrequency:   DefaultToneFrequency,
			PollInterval:    DefaultPollInterval,
			GateEnabled:     DefaultGateEnabled,
			GateThreshold:   DefaultGateThreshold,
			FFTSize:         DefaultFFTSize,
			FFTWindow:       DefaultFFTWindow,
			Smoothing:       DefaultSmoothing,
			MinDecibels:     DefaultMinDecibels,
			MaxDecibels:     DefaultMaxDecibels,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultRecordingDir,
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Scene: SceneConfig{
			Tier:          DefaultTier,
			ViewportWidth: DefaultViewportWidth,
			FPS:           DefaultFPS,
			Particles: ParticlesConfig{
				Distribution: DefaultDistribution,
				Seed:         DefaultSeed,
			},
		},
		Transport: TransportConfig{
			Addr:             DefaultAddr,
			Path:             DefaultPath,
			Encoding:         DefaultEncoding,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"ambience.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	logger.Debugf("loaded %s", path)

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Level resolves the effective log level. Debug wins over log_level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, ok := log.ParseLevel(c.LogLevel)
	if !ok {
		return log.LevelInfo
	}
	return level
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	a := c.Audio

	switch a.Source {
	case SourceMic, SourceTone:
	case SourceWAV:
		if a.WAVPath == "" {
			errs = append(errs, errors.New("audio.wav_path must be set when audio.source is \"wav\""))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.source %q is not one of mic, wav, tone", a.Source))
	}
	if a.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device %d is invalid", a.InputDevice))
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer %d outside (0, %d]", a.FramesPerBuffer, MaxBufferFrames))
	}
	if a.InputChannels < 1 || a.InputChannels > 2 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be 1 or 2, got %d", a.InputChannels))
	}
	if a.PollInterval <= 0 {
		errs = append(errs, errors.New("audio.poll_interval must be positive"))
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold %.3f outside [0, 1]", a.GateThreshold))
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) || a.FFTSize < MinFFTSize || a.FFTSize > MaxFFTSize {
		errs = append(errs, fmt.Errorf("audio.fft_size %d must be a power of two in [%d, %d] (nearest %d)",
			a.FFTSize, MinFFTSize, MaxFFTSize, bitint.NextPowerOfTwo(a.FFTSize)))
	}
	if a.Smoothing < 0 || a.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("audio.smoothing %.2f outside [0, 1]", a.Smoothing))
	}
	if a.MinDecibels >= a.MaxDecibels {
		errs = append(errs, fmt.Errorf("audio.min_decibels %.1f must be below audio.max_decibels %.1f", a.MinDecibels, a.MaxDecibels))
	}

	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, DefaultFormat) {
			errs = append(errs, fmt.Errorf("recording.format %q is not supported", c.Recording.Format))
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			errs = append(errs, fmt.Errorf("recording.bit_depth %d must be 16, 24 or 32", c.Recording.BitDepth))
		}
	}

	switch strings.ToLower(c.Scene.Tier) {
	case "auto", "desktop", "mobile":
	default:
		errs = append(errs, fmt.Errorf("scene.tier %q is not one of auto, desktop, mobile", c.Scene.Tier))
	}
	if c.Scene.FPS <= 0 || c.Scene.FPS > MaxFPS {
		errs = append(errs, fmt.Errorf("scene.fps %d outside (0, %d]", c.Scene.FPS, MaxFPS))
	}
	if c.Scene.Particles.Count < 0 {
		errs = append(errs, errors.New("scene.particles.count must not be negative"))
	}

	switch c.Transport.Encoding {
	case EncodingJSON, EncodingMsgpack:
	default:
		errs = append(errs, fmt.Errorf("transport.encoding %q is not one of json, msgpack", c.Transport.Encoding))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides lets ENV_* variables replace file or default values.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			logger.Infof("overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_SOURCE
	if val, ok := os.LookupEnv("ENV_AUDIO_SOURCE"); ok {
		c.Audio.Source = strings.ToLower(val)
		logger.Infof("overriding audio.source from env: %s", val)
	}
	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = iVal
			logger.Infof("overriding audio.input_device from env: %d", iVal)
		}
	}

	// ENV_SCENE_TIER
	if val, ok := os.LookupEnv("ENV_SCENE_TIER"); ok {
		c.Scene.Tier = strings.ToLower(val)
		logger.Infof("overriding scene.tier from env: %s", val)
	}

	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Transport.Addr = val
		logger.Infof("overriding transport.addr from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			logger.Infof("overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			logger.Infof("overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}
