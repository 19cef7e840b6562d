// SPDX-License-Identifier: MIT

// Package service assembles a capture session from the configuration: the
// extractors, the reporting sinks and the optional HTTP server, recorder and
// metrics. It runs the same pipeline on the live input device or a WAV file.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
	"github.com/alice-iceberg/SoundFeatures/internal/audio"
	"github.com/alice-iceberg/SoundFeatures/internal/config"
	"github.com/alice-iceberg/SoundFeatures/internal/dispatch"
	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/alice-iceberg/SoundFeatures/internal/observe"
	"github.com/alice-iceberg/SoundFeatures/internal/transport"
)

// ErrNoExtractors is returned when every extractor is disabled.
var ErrNoExtractors = errors.New("no feature extractor enabled")

// recorderQueue is the number of capture chunks buffered for the recorder.
const recorderQueue = 64

// SoundService runs feature extraction sessions.
type SoundService struct {
	cfg            *config.Config
	metrics        *observe.Metrics
	metricsHandler http.Handler
	liveOpener     audio.Opener
	sinks          []transport.Sink
	now            func() time.Time
}

// Option configures a SoundService.
type Option func(*SoundService)

// WithMetrics records pipeline metrics on m. Without it the instruments of
// the global meter provider are used.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *SoundService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMetricsHandler serves h on /metrics when metrics are enabled.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *SoundService) {
		s.metricsHandler = h
	}
}

// WithLiveOpener replaces the PortAudio input used by RunLive.
func WithLiveOpener(o audio.Opener) Option {
	return func(s *SoundService) {
		s.liveOpener = o
	}
}

// WithSinks adds sinks that receive every report next to the configured
// ones. They are closed when the session ends.
func WithSinks(sinks ...transport.Sink) Option {
	return func(s *SoundService) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// New validates cfg and returns a service for it.
func New(cfg *config.Config, opts ...Option) (*SoundService, error) {
	if cfg == nil {
		return nil, errors.New("service: nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &SoundService{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.liveOpener == nil {
		s.liveOpener = audio.NewPortAudioOpener()
	}
	return s, nil
}

// StreamConfig returns the framing of every session.
func (s *SoundService) StreamConfig() dispatch.StreamConfig {
	return dispatch.StreamConfig{
		SampleRate: s.cfg.Audio.SampleRate,
		FrameSize:  s.cfg.Audio.FrameSize,
		Overlap:    s.cfg.Audio.FrameOverlap,
	}
}

// Extractors builds a fresh set of the enabled extractors. Extractors keep
// per-session state (buffers, jitter history) and are never shared between
// sessions.
func (s *SoundService) Extractors() ([]analysis.Extractor, error) {
	cfg := s.cfg
	var list []analysis.Extractor

	if cfg.Energy.Enabled {
		list = append(list, analysis.NewEnergy(cfg.Energy.ThresholdDB))
	}

	if cfg.Pitch.Enabled {
		pc, err := cfg.PitchSettings()
		if err != nil {
			return nil, err
		}
		pitch, err := analysis.NewPitch(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to create pitch extractor: %w", err)
		}
		if cfg.Jitter.Enabled {
			pitch = pitch.WithJitter(analysis.NewJitter())
		}
		list = append(list, pitch)
	}

	if cfg.MFCC.Enabled {
		mc, err := cfg.MFCCSettings()
		if err != nil {
			return nil, err
		}
		mfcc, err := analysis.NewMFCC(mc)
		if err != nil {
			return nil, fmt.Errorf("failed to create MFCC extractor: %w", err)
		}
		list = append(list, mfcc)
	}

	if len(list) == 0 {
		return nil, ErrNoExtractors
	}
	return list, nil
}

// RunLive captures from the configured input device until ctx is cancelled
// or the device fails. Capture never waits for analysis; frames the
// analysis cannot keep up with are dropped oldest first.
func (s *SoundService) RunLive(ctx context.Context) error {
	// Extractors are built first so a bad configuration leaves no recording.
	extractors, err := s.Extractors()
	if err != nil {
		return err
	}
	opener := s.liveOpener

	if s.cfg.Recording.Enabled {
		path := filepath.Join(s.cfg.Recording.OutputDir, audio.RecordingFileName(s.now()))
		hop := s.StreamConfig().Hop()
		rec, err := audio.StartRecording(path, int(s.cfg.Audio.SampleRate), s.cfg.Recording.BitDepth, hop, recorderQueue)
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Errorf("Error stopping recording: %v", err)
				return
			}
			log.Infof("Recording saved to: %s", rec.Path())
		}()
		opener = audio.RecordingOpener{Opener: opener, Recorder: rec}
	}

	return s.run(ctx, opener, extractors)
}

// RunFile analyzes the WAV file at path and returns once every frame has
// been processed and reported. The file's sample rate must match the
// configured rate.
func (s *SoundService) RunFile(ctx context.Context, path string) error {
	extractors, err := s.Extractors()
	if err != nil {
		return err
	}
	return s.run(ctx, audio.NewWAVOpener(path), extractors, dispatch.WithBackpressure())
}

func (s *SoundService) run(ctx context.Context, opener audio.Opener, extractors []analysis.Extractor, opts ...dispatch.Option) error {
	sinks, server, err := s.openSinks()
	if err != nil {
		return err
	}
	reporter := transport.NewReporter(s.cfg.Sink.QueueSize, s.metrics, sinks...)
	defer func() {
		if err := reporter.Close(); err != nil {
			log.Warnf("Error closing sinks: %v", err)
		}
		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warnf("Error stopping HTTP server: %v", err)
			}
		}
		if n := reporter.Dropped(); n > 0 {
			log.Warnf("Dropped %d reports", n)
		}
	}()

	opts = append([]dispatch.Option{
		dispatch.WithQueueSize(s.cfg.Audio.QueueSize),
		dispatch.WithDevice(s.cfg.Audio.InputDevice, s.cfg.Audio.LowLatency),
		dispatch.WithMetrics(s.metrics),
	}, opts...)

	session, err := dispatch.New(opener, opts...).Start(ctx, s.StreamConfig(), reporter, extractors...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-session.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	stopErr := session.Stop(stopCtx)

	if n := session.Dropped(); n > 0 {
		log.Warnf("Analysis fell behind, dropped %d frames", n)
	}

	return errors.Join(session.Err(), stopErr)
}

// openSinks builds the configured sinks and starts the HTTP server when
// the WebSocket sink or metrics need it.
func (s *SoundService) openSinks() ([]transport.Sink, *transport.Server, error) {
	var sinks []transport.Sink
	if s.cfg.Sink.Log {
		sinks = append(sinks, transport.NewLogSink(nil))
	}

	serveMetrics := s.cfg.Metrics.Enabled && s.metricsHandler != nil
	if !s.cfg.Sink.WebSocketEnabled && !serveMetrics {
		return append(sinks, s.sinks...), nil, nil
	}

	server := transport.NewServer(s.cfg.Server.Address)
	var ws *transport.WebSocketTransport
	if s.cfg.Sink.WebSocketEnabled {
		ws = transport.NewWebSocketTransport(s.cfg.Sink.QueueSize)
		server.Handle("/ws", ws)
		sinks = append(sinks, ws)
	}
	if serveMetrics {
		server.Handle("/metrics", s.metricsHandler)
	}

	sinks = append(sinks, s.sinks...)
	if err := server.Start(); err != nil {
		for _, sink := range sinks {
			if cerr := sink.Close(); cerr != nil {
				log.Warnf("Error closing sink: %v", cerr)
			}
		}
		return nil, nil, err
	}
	return sinks, server, nil
}
