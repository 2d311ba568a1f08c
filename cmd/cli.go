// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strings"

	"ambience/internal/config"
	"ambience/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line. CommandNone means the command
// line only asked for help or the version.
const (
	CommandNone    = ""
	CommandServe   = "serve"
	CommandList    = "list"
	CommandMonitor = "monitor"
)

// Options are the parsed command line. Flags left at their defaults do not
// override the configuration file.
type Options struct {
	Command    string
	ConfigPath string
	Source     string
	DeviceID   int
	Tier       string
	Addr       string
	Encoding   string
	WAVPath    string
	Record     bool
	UDP        bool
	Pick       bool // list: choose a device interactively.
	Verbose    bool

	changed map[string]bool
}

// Flags that override configuration values when given.
var overridable = []string{"source", "device", "wav", "record", "tier", "addr", "encoding", "udp"}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Get()
	options := &Options{Command: CommandNone, changed: make(map[string]bool)}

	record := func(cmd *cobra.Command) {
		for _, name := range overridable {
			if cmd.Flags().Changed(name) {
				options.changed[name] = true
			}
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandServe
			record(cmd)
			return nil
		},
	}

	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			record(cmd)
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Pick, "pick", "p", false,
		"Choose a device interactively and print the matching config")
	rootCmd.AddCommand(listCmd)

	// Monitor command
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Serve the scene and watch it in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandMonitor
			record(cmd)
			return nil
		},
	}
	rootCmd.AddCommand(monitorCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./ambience.yaml if present)")

	// Capture
	flags.StringVarP(&options.Source, "source", "s", config.DefaultSource,
		"Capture source: mic, wav or tone")
	flags.IntVarP(&options.DeviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.StringVar(&options.WAVPath, "wav", "",
		"WAV file played by the wav source")
	flags.BoolVarP(&options.Record, "record", "r", false,
		"Record every capture session to a WAV file")

	// Scene and transport
	flags.StringVarP(&options.Tier, "tier", "t", config.DefaultTier,
		"Device tier: auto, desktop or mobile")
	flags.StringVarP(&options.Addr, "addr", "a", config.DefaultAddr,
		"Websocket listen address")
	flags.StringVarP(&options.Encoding, "encoding", "e", config.DefaultEncoding,
		"Default frame encoding: json or msgpack")
	flags.BoolVarP(&options.UDP, "udp", "u", false,
		"Also publish the raw spectrum over UDP")

	// Debug Configuration
	flags.BoolVarP(&options.Verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Changed reports whether a flag was given explicitly.
func (o *Options) Changed(name string) bool { return o.changed[name] }

// LoadConfig reads the configuration file and applies the explicit flags
// on top of it.
func (o *Options) LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration after flags: %w", err)
	}
	return cfg, nil
}

// Apply copies every explicitly given flag into cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.Changed("source") {
		cfg.Audio.Source = strings.ToLower(o.Source)
	}
	if o.Changed("device") {
		cfg.Audio.InputDevice = o.DeviceID
	}
	if o.Changed("wav") {
		cfg.Audio.WAVPath = o.WAVPath
		if !o.Changed("source") {
			cfg.Audio.Source = config.SourceWAV
		}
	}
	if o.Changed("record") {
		cfg.Recording.Enabled = o.Record
	}
	if o.Changed("tier") {
		cfg.Scene.Tier = strings.ToLower(o.Tier)
	}
	if o.Changed("addr") {
		cfg.Transport.Addr = o.Addr
	}
	if o.Changed("encoding") {
		cfg.Transport.Encoding = strings.ToLower(o.Encoding)
	}
	if o.Changed("udp") {
		cfg.Transport.UDPEnabled = o.UDP
	}
	if o.Verbose {
		cfg.Debug = true
	}
}
