// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
	"github.com/alice-iceberg/SoundFeatures/internal/log"
)

// SoundServiceTag marks every line written by LogSink.
const SoundServiceTag = "SOUNDSERVICE_TAG"

// LogSink writes one log record per report, in the line format of the
// service's system log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger, or to the application
// logger when logger is nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = log.With("tag", SoundServiceTag)
	} else {
		logger = logger.With("tag", SoundServiceTag)
	}
	log.Debugf("Transport: Using LogSink")
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Report logs rep. Energy reports produce a second line with the
// loudness state.
func (s *LogSink) Report(rep Report) error {
	ts := time.UnixMilli(rep.Timestamp).Format(time.RFC3339Nano)
	attrs := []any{"timestamp", rep.Timestamp, "feature", rep.Tag}

	switch v := rep.Value.(type) {
	case analysis.EnergyResult:
		db := formatFloat(v.Decibels)
		s.logger.Info(ts+" Signal Energy "+db, attrs...)
		if v.State == analysis.Noisy {
			s.logger.Info(ts+" Noisy state detected\nENERGY level: "+db, attrs...)
		} else {
			s.logger.Info(ts+" Silence detected\nENERGY level: "+db, attrs...)
		}
	case analysis.PitchResult:
		s.logger.Info(ts+" Pitch: "+formatFloat(v.Frequency), append(attrs, "voiced", v.Voiced)...)
	case analysis.MFCCResult:
		s.logger.Info(ts+" MFCC: "+formatFloats(v.Coefficients), attrs...)
	case analysis.JitterResult:
		s.logger.Info(ts+" Jitter: "+formatFloat(v.Seconds), attrs...)
	default:
		s.logger.Info(fmt.Sprintf("%s %s: %v", ts, rep.Tag, rep.Value), attrs...)
	}
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error {
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloats(vs []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatFloat(v))
	}
	b.WriteByte(']')
	return b.String()
}

// Ensure LogSink satisfies the interface at compile time.
var _ Sink = (*LogSink)(nil)
