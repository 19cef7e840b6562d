// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alice-iceberg/SoundFeatures/cmd"
	"github.com/alice-iceberg/SoundFeatures/internal/audio"
	"github.com/alice-iceberg/SoundFeatures/internal/config"
	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/alice-iceberg/SoundFeatures/internal/observe"
	"github.com/alice-iceberg/SoundFeatures/internal/service"
	"github.com/alice-iceberg/SoundFeatures/pkg/build"
)

// main is the entry point for the feature extraction service.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//   - Initialize PortAudio, metrics and the service
//
// 2. Concurrent Phase (Hot Path):
//   - Capture frames from the device or file
//   - Fan every frame out to the extractors
//   - Report results to the sinks
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Release the device and flush the sinks
//   - Stop recording if active
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	// Parse command line arguments and build configuration
	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	// --help and --version are handled by the CLI itself
	if opts.Command == "" {
		return
	}

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func run(opts *cmd.Options) error {
	// Handle one-off commands that don't require a capture session
	switch opts.Command {
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return nil
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)
	}

	cfg := opts.Config
	configureLogging(cfg)
	log.Debugf("%s", build.GetBuildFlags())

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var svcOpts []service.Option
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    build.GetBuildFlags().Name,
			ServiceVersion: build.GetBuildFlags().Version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Warnf("Error shutting down metrics: %v", err)
			}
		}()
		svcOpts = append(svcOpts,
			service.WithMetrics(provider.Metrics),
			service.WithMetricsHandler(provider.Handler()))
	}

	if opts.Command == cmd.CommandAnalyze {
		svc, err := service.New(cfg, svcOpts...)
		if err != nil {
			return err
		}
		log.Infof("Analyzing %s", opts.InputFile)
		return svc.RunFile(ctx, opts.InputFile)
	}

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	svc, err := service.New(cfg, svcOpts...)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// CRITICAL: RunLive opens the stream and PortAudio starts calling the
	// capture callback. It blocks until a signal arrives or the device fails.
	fmt.Printf("Capturing from device %d at %.0f Hz. Press Ctrl+C to stop.\n",
		cfg.Audio.InputDevice, cfg.Audio.SampleRate)
	err = svc.RunLive(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	// Device, sinks and recording are released by RunLive; PortAudio and
	// metrics are terminated by the deferred calls above.
	return err
}

func configureLogging(cfg *config.Config) {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.Configure(level, log.Format(cfg.LogFormat), os.Stderr)
}
