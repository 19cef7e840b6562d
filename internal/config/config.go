// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for a capture session and its feature extractors.
const (
	// Stream defaults. 11025 Hz with 1024-sample frames is what the
	// analysis parameters below were tuned for.
	DefaultDeviceID     = MinDeviceID // System default input device
	DefaultSampleRate   = 11025       // Hz
	DefaultFrameSize    = 1024        // Samples per analysis frame
	DefaultFrameOverlap = 512         // Half a frame
	DefaultLowLatency   = false       // Standard latency mode
	DefaultFrameQueue   = 8           // Frames buffered between capture and analysis

	// Extractor defaults.
	DefaultEnergyThreshold = -70.0 // dB; above is Noisy, at or below is Silent
	DefaultPitchAlgorithm  = "yin"
	DefaultPitchThreshold  = 0.20   // YIN absolute threshold
	DefaultPitchMinFreq    = 50.0   // Hz
	DefaultPitchMaxFreq    = 1500.0 // Hz
	DefaultMelFilters      = 20
	DefaultCepstralCoeffs  = 13
	DefaultLowerFilterFreq = 133.33 // Hz
	DefaultUpperFilterFreq = 5500.0 // Hz, below Nyquist at the default rate
	DefaultMFCCWindow      = "hamming"

	// Reporting defaults.
	DefaultReportQueue   = 256
	DefaultServerAddress = ":8080"

	// Recording defaults.
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frame size in samples

	// DefaultShutdownTimeout bounds how long Stop waits for the analysis
	// goroutine after the device has been released.
	DefaultShutdownTimeout = 2 * time.Second
)

// NewConfig returns a Config populated with built-in defaults. It is the
// base onto which the YAML file, environment and CLI flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Audio: AudioConfig{
			InputDevice:  DefaultDeviceID,
			SampleRate:   DefaultSampleRate,
			FrameSize:    DefaultFrameSize,
			FrameOverlap: DefaultFrameOverlap,
			LowLatency:   DefaultLowLatency,
			QueueSize:    DefaultFrameQueue,
		},
		Energy: EnergyConfig{
			Enabled:     true,
			ThresholdDB: DefaultEnergyThreshold,
		},
		Pitch: PitchConfig{
			Enabled:   true,
			Algorithm: DefaultPitchAlgorithm,
			Threshold: DefaultPitchThreshold,
			MinFreq:   DefaultPitchMinFreq,
			MaxFreq:   DefaultPitchMaxFreq,
		},
		Jitter: JitterConfig{
			Enabled: true,
		},
		MFCC: MFCCConfig{
			Enabled:      true,
			MelFilters:   DefaultMelFilters,
			Coefficients: DefaultCepstralCoeffs,
			LowerFreq:    DefaultLowerFilterFreq,
			UpperFreq:    DefaultUpperFilterFreq,
			Window:       DefaultMFCCWindow,
		},
		Sink: SinkConfig{
			Log:       true,
			QueueSize: DefaultReportQueue,
		},
		Server: ServerConfig{
			Address: DefaultServerAddress,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}
