// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"

	"ambience/internal/analysis"
	"ambience/internal/audio"
	"ambience/internal/config"
	"ambience/internal/log"
	"ambience/internal/scene"
	"ambience/internal/spectrum"
	"ambience/internal/transport"
	"ambience/internal/transport/udp"
	"ambience/internal/tui"
	"ambience/internal/visual"
)

var logger = log.New("app")

// App is the running pipeline: capture publishes into the shared spectrum,
// the scene renders it and the loop sends frames to every transport.
type App struct {
	cfg     *config.Config
	shared  *spectrum.Shared
	source  *audio.Source
	scene   *scene.Scene
	loop    *scene.Loop
	hub     *transport.WebSocketTransport
	udp     *udp.UDPPublisher
	sender  *udp.UDPSender
	monitor *tui.Monitor
	sinks   transport.Fanout

	cancelForward func()
}

// NeedsPortAudio reports whether cfg captures from a PortAudio device.
func NeedsPortAudio(cfg *config.Config) bool {
	return cfg.Audio.Source == config.SourceMic
}

// NewBackend returns the capture backend named by the audio section.
func NewBackend(a config.AudioConfig) (audio.Backend, error) {
	switch a.Source {
	case config.SourceMic:
		return &audio.MicBackend{DeviceID: a.InputDevice, LowLatency: a.LowLatency}, nil
	case config.SourceWAV:
		return &audio.WAVBackend{Path: a.WAVPath, Loop: true}, nil
	case config.SourceTone:
		return &audio.ToneBackend{Frequency: a.ToneFrequency}, nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", a.Source)
	}
}

// SourceConfig maps the audio and recording sections onto a capture config.
func SourceConfig(cfg *config.Config) (audio.Config, error) {
	a := cfg.Audio
	window, err := analysis.ParseWindowFunc(a.FFTWindow)
	if err != nil {
		return audio.Config{}, err
	}
	return audio.Config{
		Stream: audio.StreamConfig{
			SampleRate:      a.SampleRate,
			FramesPerBuffer: a.FramesPerBuffer,
			Channels:        a.InputChannels,
		},
		PollInterval: a.PollInterval,
		Analysis: analysis.Config{
			FFTSize:     a.FFTSize,
			SampleRate:  a.SampleRate,
			Window:      window,
			Smoothing:   a.Smoothing,
			MinDecibels: a.MinDecibels,
			MaxDecibels: a.MaxDecibels,
		},
		GateEnabled:   a.GateEnabled,
		GateThreshold: a.GateThreshold,
		Recording: audio.RecordingConfig{
			Enabled:  cfg.Recording.Enabled,
			Dir:      cfg.Recording.OutputDir,
			BitDepth: cfg.Recording.BitDepth,
		},
	}, nil
}

// SceneConfig resolves the tier and applies the scene section to the tier
// defaults. Zero values keep the defaults.
func SceneConfig(cfg *config.Config) (scene.Config, error) {
	s := cfg.Scene
	tier, err := scene.ResolveTier(s.Tier, s.ViewportWidth)
	if err != nil {
		return scene.Config{}, err
	}
	dist, err := visual.ParseDistribution(s.Particles.Distribution)
	if err != nil {
		return scene.Config{}, err
	}

	sc := scene.DefaultConfig(tier, dist)
	sc.SampleRate = cfg.Audio.SampleRate
	sc.FFTSize = cfg.Audio.FFTSize

	if s.Particles.Count > 0 {
		sc.Particles.Count = s.Particles.Count
	}
	if s.Particles.MaxRadius > 0 {
		sc.Particles.MaxRadius = s.Particles.MaxRadius
	}
	if s.Particles.Seed != 0 {
		sc.Particles.Seed = s.Particles.Seed
	}

	applyBars := func(b *visual.BarConfig) {
		if s.Bars.Smoothing > 0 {
			b.Smoothing = s.Bars.Smoothing
		}
		if s.Bars.MaxStep > 0 {
			b.MaxStep = s.Bars.MaxStep
		}
		if s.Bars.MinHeight > 0 {
			b.MinHeight = s.Bars.MinHeight
		}
	}
	applyBars(&sc.Ring)
	if s.Bars.Line {
		line := visual.DefaultBarConfig(visual.Line, tier)
		applyBars(&line)
		sc.Line = &line
	}

	if s.Mesh.SpringFrequency > 0 {
		sc.Mesh.SpringFrequency = s.Mesh.SpringFrequency
	}
	if s.Mesh.SpringDamping > 0 {
		sc.Mesh.SpringDamping = s.Mesh.SpringDamping
	}
	sc.Mesh.FPS = s.FPS
	return sc, nil
}

// NewApp wires every component for cfg without starting anything. With
// withMonitor set, frames also go to a terminal Monitor.
func NewApp(cfg *config.Config, withMonitor bool) (*App, error) {
	backend, err := NewBackend(cfg.Audio)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, backend, withMonitor)
}

func newApp(cfg *config.Config, backend audio.Backend, withMonitor bool) (*App, error) {
	srcCfg, err := SourceConfig(cfg)
	if err != nil {
		return nil, err
	}
	sceneCfg, err := SceneConfig(cfg)
	if err != nil {
		return nil, err
	}
	encoding, err := transport.ParseEncoding(cfg.Transport.Encoding)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, shared: spectrum.NewShared()}
	a.source = audio.NewSource(backend, a.shared, srcCfg)
	a.scene, err = scene.New(sceneCfg, a.shared, a.source, nil, &scene.LogPeer{Name: "voice"})
	if err != nil {
		return nil, err
	}

	a.hub = transport.NewWebSocketTransport(transport.HubConfig{
		Addr:     cfg.Transport.Addr,
		Path:     cfg.Transport.Path,
		Encoding: encoding,
	}, a.scene, func() any { return a.scene.Describe() })
	a.sinks = transport.Fanout{a.hub}

	if cfg.Transport.LogFrames {
		a.sinks = append(a.sinks, transport.NewLoggingTransport(cfg.Scene.FPS))
	}
	if withMonitor {
		a.monitor = tui.NewMonitor()
		a.sinks = append(a.sinks, a.monitor)
	}
	if cfg.Transport.UDPEnabled {
		a.sender, err = udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			a.scene.Close()
			return nil, err
		}
		a.udp, err = udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, a.sender, a.shared)
		if err != nil {
			a.sender.Close()
			a.scene.Close()
			return nil, err
		}
	}

	a.loop = scene.NewLoop(a.scene, a.sinks, cfg.Scene.FPS)
	logger.Infof("capture from %s, %s frames at %d fps", backend.Name(), encoding, cfg.Scene.FPS)
	return a, nil
}

// Start opens the websocket listener and starts rendering. Capture starts
// only when a client activates the scene.
func (a *App) Start() error {
	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("websocket listen on %s: %w", a.cfg.Transport.Addr, err)
	}
	a.cancelForward = scene.Forward(a.scene, a.sinks)
	if a.udp != nil {
		a.udp.Start()
	}
	a.loop.Start()
	return nil
}

// Scene returns the scene, which is also the controller for activation.
func (a *App) Scene() *scene.Scene { return a.scene }

// Monitor returns the terminal monitor, or nil.
func (a *App) Monitor() *tui.Monitor { return a.monitor }

// Addr returns the websocket address.
func (a *App) Addr() string { return a.hub.Addr() }

// Close tears the pipeline down in reverse order. It is safe to call once
// whether or not Start succeeded.
func (a *App) Close() error {
	var errs []error
	a.loop.Stop()
	if a.cancelForward != nil {
		a.cancelForward()
	}
	if err := a.scene.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.udp != nil {
		a.udp.Close()
		if err := a.sender.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.sinks.Close(); err != nil {
		errs = append(errs, err)
	}
	logger.Infof("shut down")
	return errors.Join(errs...)
}
