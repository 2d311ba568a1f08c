// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ambience/cmd"
	"ambience/internal/audio"
	"ambience/internal/config"
	"ambience/internal/log"
	"ambience/internal/tui"
	"ambience/pkg/build"

	"gopkg.in/yaml.v3"
)

// main is the entry point for the scene server.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio when a device is needed
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Serve the websocket hub and render the scene
//   - Capture starts and stops with client activation
//   - Run the terminal monitor when requested
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop capture, rendering and transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if options.Command == cmd.CommandNone {
		return
	}

	cfg, err := options.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.SetLevel(cfg.Level())

	needsPortAudio := options.Command == cmd.CommandList || cmd.NeedsPortAudio(cfg)
	if needsPortAudio {
		if err := audio.Initialize(); err != nil {
			log.Fatalf("%v", err)
		}
		defer audio.Terminate()
	}

	// Handle one-off commands (e.g., device listing) that don't require
	// the scene to be running
	if options.Command == cmd.CommandList {
		if err := listDevices(options.Pick); err != nil {
			log.Errorf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := options.Command == cmd.CommandMonitor
	if monitor && !options.Verbose {
		// The monitor owns the terminal.
		log.SetOutput(io.Discard)
	}

	app, err := cmd.NewApp(cfg, monitor)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Start(); err != nil {
		app.Close()
		log.Fatalf("%v", err)
	}
	log.Infof("%s serving ws://%s%s", build.Get(), app.Addr(), cfg.Transport.Path)

	if monitor {
		if err := tui.RunMonitor(ctx, app.Monitor(), app.Scene(), cfg.Scene.FPS); err != nil {
			log.Errorf("monitor: %v", err)
		}
	} else {
		// Block until termination signal is received
		<-ctx.Done()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := app.Close(); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// listDevices prints the device list, or runs the picker and prints the
// config snippet for the chosen device.
func listDevices(pick bool) error {
	if !pick {
		return audio.ListDevices(os.Stdout)
	}
	sel, err := tui.StartDeviceListUI()
	if err != nil || sel == nil {
		return err
	}

	snippet := struct {
		Audio config.AudioConfig `yaml:"audio"`
	}{}
	snippet.Audio = config.Default().Audio
	snippet.Audio.Source = config.SourceMic
	snippet.Audio.InputDevice = sel.DeviceID
	snippet.Audio.SampleRate = sel.SampleRate
	snippet.Audio.InputChannels = sel.Channels

	out, err := yaml.Marshal(snippet)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", sel.Name, out)
	return nil
}
