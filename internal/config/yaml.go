// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug           bool            `yaml:"debug"`            // Enable debug mode (forces debug log level).
	LogLevel        string          `yaml:"log_level"`        // Logging level ("debug", "info", "warn", "error").
	LogFormat       string          `yaml:"log_format"`       // "text" or "json".
	Audio           AudioConfig     `yaml:"audio"`            // Capture stream settings.
	Energy          EnergyConfig    `yaml:"energy"`           // Loudness extractor.
	Pitch           PitchConfig     `yaml:"pitch"`            // Fundamental frequency extractor.
	Jitter          JitterConfig    `yaml:"jitter"`           // Pitch-period jitter.
	MFCC            MFCCConfig      `yaml:"mfcc"`             // Cepstral coefficients extractor.
	Sink            SinkConfig      `yaml:"sink"`             // Result reporting.
	Server          ServerConfig    `yaml:"server"`           // HTTP server for /ws and /metrics.
	Metrics         MetricsConfig   `yaml:"metrics"`          // OpenTelemetry metrics.
	Recording       RecordingConfig `yaml:"recording"`        // Raw audio recording.
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"` // Upper bound for stopping a session.
}

// AudioConfig holds the capture stream parameters. They are fixed for the
// lifetime of a session.
type AudioConfig struct {
	InputDevice  int     `yaml:"input_device"`  // PortAudio device index (-1 for default).
	SampleRate   float64 `yaml:"sample_rate"`   // Sample rate in Hz.
	FrameSize    int     `yaml:"frame_size"`    // Samples per analysis frame.
	FrameOverlap int     `yaml:"frame_overlap"` // Samples shared by consecutive frames.
	LowLatency   bool    `yaml:"low_latency"`   // Request the device's low input latency.
	QueueSize    int     `yaml:"queue_size"`    // Frames buffered before drop-oldest kicks in.
}

// EnergyConfig configures the loudness extractor.
type EnergyConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ThresholdDB float64 `yaml:"threshold_db"` // Noisy above, Silent at or below.
}

// PitchConfig configures the pitch extractor.
type PitchConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Algorithm string  `yaml:"algorithm"` // "yin" or "acf".
	Threshold float64 `yaml:"threshold"` // YIN absolute threshold.
	MinFreq   float64 `yaml:"min_freq"`  // Lowest reported pitch (Hz).
	MaxFreq   float64 `yaml:"max_freq"`  // Highest reported pitch (Hz).
}

// JitterConfig toggles jitter reporting. Jitter needs the pitch extractor.
type JitterConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MFCCConfig configures the MFCC extractor.
type MFCCConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MelFilters   int     `yaml:"mel_filters"`  // Number of triangular mel filters.
	Coefficients int     `yaml:"coefficients"` // Cepstral coefficients per frame.
	LowerFreq    float64 `yaml:"lower_freq"`   // Lower edge of the filter bank (Hz).
	UpperFreq    float64 `yaml:"upper_freq"`   // Upper edge of the filter bank (Hz).
	Window       string  `yaml:"window"`       // Window function name (e.g. "hamming", "hann").
}

// SinkConfig holds result reporting settings.
type SinkConfig struct {
	Log              bool `yaml:"log"`               // Write every result to the log.
	QueueSize        int  `yaml:"queue_size"`        // Pending reports before new ones are dropped.
	WebSocketEnabled bool `yaml:"websocket_enabled"` // Broadcast results on /ws.
}

// ServerConfig holds the HTTP listener shared by the WebSocket sink and
// the metrics endpoint.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MetricsConfig toggles the OpenTelemetry Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record captured audio to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// configCandidates are searched when no explicit path is given.
var configCandidates = []string{
	"config.yaml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults.  After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range configCandidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot start a
// session, including the pitch algorithm and the MFCC filter bank against
// the sample rate.
func (c *Config) Validate() error {
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate must be within [%d, %d] Hz, got %.1f", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.FrameSize <= 0 || a.FrameSize > MaxBufferFrames {
		return invalid("audio.frame_size must be within [1, %d], got %d", MaxBufferFrames, a.FrameSize)
	}
	if a.FrameOverlap < 0 || a.FrameOverlap >= a.FrameSize {
		return invalid("audio.frame_overlap must satisfy 0 <= overlap < frame_size (%d), got %d", a.FrameSize, a.FrameOverlap)
	}
	if a.QueueSize <= 0 {
		return invalid("audio.queue_size must be positive, got %d", a.QueueSize)
	}

	if c.Pitch.Enabled || c.Jitter.Enabled {
		if c.Pitch.MinFreq <= 0 || c.Pitch.MaxFreq <= c.Pitch.MinFreq {
			return invalid("pitch.min_freq/max_freq must satisfy 0 < min < max, got %.1f/%.1f", c.Pitch.MinFreq, c.Pitch.MaxFreq)
		}
	}
	if c.Jitter.Enabled && !c.Pitch.Enabled {
		return invalid("jitter.enabled requires pitch.enabled")
	}
	if err := c.validateExtractors(); err != nil {
		return err
	}

	if c.Sink.QueueSize <= 0 {
		return invalid("sink.queue_size must be positive, got %d", c.Sink.QueueSize)
	}
	if (c.Sink.WebSocketEnabled || c.Metrics.Enabled) && c.Server.Address == "" {
		return invalid("server.address must be set when the websocket sink or metrics are enabled")
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return invalid("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			return invalid("recording.output_dir must be set when recording is enabled")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}

	if c.ShutdownTimeout < 0 {
		return invalid("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are ignored so a typo never masks a valid file.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		cfg.LogLevel = val
	}

	// ENV_SAMPLE_RATE, ENV_FRAME_SIZE, ENV_FRAME_OVERLAP
	// These are specific to the capture stream.
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = fVal
		}
	}
	if val, ok := os.LookupEnv("ENV_FRAME_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.FrameSize = iVal
		}
	}
	if val, ok := os.LookupEnv("ENV_FRAME_OVERLAP"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.FrameOverlap = iVal
		}
	}

	// ENV_ENERGY_THRESHOLD
	if val, ok := os.LookupEnv("ENV_ENERGY_THRESHOLD"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Energy.ThresholdDB = fVal
		}
	}

	// ENV_WEBSOCKET_ENABLED, ENV_SERVER_ADDRESS, ENV_METRICS_ENABLED
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Sink.WebSocketEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_SERVER_ADDRESS"); ok && val != "" {
		cfg.Server.Address = val
	}
	if val, ok := os.LookupEnv("ENV_METRICS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = bVal
		}
	}
}
