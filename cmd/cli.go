// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/alice-iceberg/SoundFeatures/internal/config"
	"github.com/alice-iceberg/SoundFeatures/pkg/build"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands selected on the command line.
const (
	CommandLive    = "live"
	CommandList    = "list"
	CommandAnalyze = "analyze"
	CommandVersion = "version"
)

// Options is the outcome of parsing the command line.
type Options struct {
	Command    string
	ConfigPath string
	InputFile  string         // WAV file for the analyze command.
	Config     *config.Config // nil for list and version.
}

// flagValues holds values that override the configuration file when the
// flag is given explicitly.
type flagValues struct {
	device         int
	sampleRate     float64
	frameSize      int
	overlap        int
	threshold      float64
	pitchAlgorithm string
	record         bool
	websocket      bool
	metrics        bool
	verbose        bool
}

// apply copies every explicitly set flag into cfg.
func (v *flagValues) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("device") {
		cfg.Audio.InputDevice = v.device
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if flags.Changed("frame-size") {
		cfg.Audio.FrameSize = v.frameSize
	}
	if flags.Changed("overlap") {
		cfg.Audio.FrameOverlap = v.overlap
	}
	if flags.Changed("threshold") {
		cfg.Energy.ThresholdDB = v.threshold
	}
	if flags.Changed("pitch-algorithm") {
		cfg.Pitch.Algorithm = v.pitchAlgorithm
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = v.record
	}
	if flags.Changed("websocket") {
		cfg.Sink.WebSocketEnabled = v.websocket
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = v.metrics
	}
	if v.verbose {
		cfg.LogLevel = "debug"
	}
}

// ParseArgs parses args (without the program name) and loads the
// configuration the selected command needs. Flags override the
// configuration file and ENV_* variables.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}
	var values flagValues

	loadConfig := func(cmd *cobra.Command) error {
		cfg, err := config.LoadConfig(options.ConfigPath)
		if err != nil {
			return err
		}
		values.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		options.Config = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandLive
			return loadConfig(cmd)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Extract features from a WAV file instead of the input device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandAnalyze
			options.InputFile = args[0]
			return loadConfig(cmd)
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
		},
	}
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()

	// Configuration file
	flags.StringVarP(&options.ConfigPath, "config", "f", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&values.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.Float64VarP(&values.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&values.frameSize, "frame-size", "b", config.DefaultFrameSize,
		"Samples per analysis frame")
	flags.IntVarP(&values.overlap, "overlap", "o", config.DefaultFrameOverlap,
		"Samples shared by consecutive frames (must be less than the frame size)")

	// Extractor Configuration
	flags.Float64VarP(&values.threshold, "threshold", "t", config.DefaultEnergyThreshold,
		"Loudness threshold in dB; frames above it are reported as noisy")
	flags.StringVar(&values.pitchAlgorithm, "pitch-algorithm", config.DefaultPitchAlgorithm,
		"Pitch detection algorithm: yin or acf")

	// Recording and Reporting Configuration
	flags.BoolVarP(&values.record, "record", "r", false,
		"Record audio from the specified input device")
	flags.BoolVar(&values.websocket, "websocket", false,
		"Broadcast results to WebSocket clients on /ws")
	flags.BoolVar(&values.metrics, "metrics", false,
		"Serve Prometheus metrics on /metrics")

	// Debug Configuration
	flags.BoolVarP(&values.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}
