// SPDX-License-Identifier: MIT

// Package observe provides the OpenTelemetry metrics of the capture
// pipeline. A Prometheus exporter bridge is available via [InitProvider] so
// the metrics can be scraped on /metrics. Tests should use [NewMetrics] with
// a ManualReader-backed provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/alice-iceberg/SoundFeatures"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Capture and dispatch ---

	// FramesCaptured counts frames produced by the windower.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames discarded by the drop-oldest queue.
	FramesDropped metric.Int64Counter

	// FramesProcessed counts frames handed to every extractor.
	FramesProcessed metric.Int64Counter

	// --- Extractors ---

	// ExtractorDuration tracks per-frame extractor latency. Use with
	// attribute.String("extractor", ...).
	ExtractorDuration metric.Float64Histogram

	// ExtractorPanics counts recovered extractor panics. Use with
	// attribute.String("extractor", ...).
	ExtractorPanics metric.Int64Counter

	// EdgeCases counts sentinel results (silence floor, unvoiced, floored
	// mel bands). Use with attribute.String("feature", ...).
	EdgeCases metric.Int64Counter

	// --- Reporting ---

	// ReportsSent counts reports delivered to a sink. Use with
	// attribute.String("sink", ...).
	ReportsSent metric.Int64Counter

	// ReportsDropped counts reports discarded because the queue was full.
	ReportsDropped metric.Int64Counter

	// SinkErrors counts failed deliveries. Use with attribute.String("sink", ...).
	SinkErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of running capture sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// around the ~46ms frame period at 11025Hz.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("soundfeatures.frames.captured",
		metric.WithDescription("Total frames produced by the windower."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("soundfeatures.frames.dropped",
		metric.WithDescription("Total frames dropped because the analysis queue was full."),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("soundfeatures.frames.processed",
		metric.WithDescription("Total frames run through the registered extractors."),
	); err != nil {
		return nil, err
	}
	if met.ExtractorPanics, err = m.Int64Counter("soundfeatures.extractor.panics",
		metric.WithDescription("Total recovered extractor panics by extractor."),
	); err != nil {
		return nil, err
	}
	if met.EdgeCases, err = m.Int64Counter("soundfeatures.edge_cases",
		metric.WithDescription("Total results carrying a sentinel value by feature."),
	); err != nil {
		return nil, err
	}
	if met.ReportsSent, err = m.Int64Counter("soundfeatures.reports.sent",
		metric.WithDescription("Total reports delivered by sink."),
	); err != nil {
		return nil, err
	}
	if met.ReportsDropped, err = m.Int64Counter("soundfeatures.reports.dropped",
		metric.WithDescription("Total reports dropped because the report queue was full."),
	); err != nil {
		return nil, err
	}
	if met.SinkErrors, err = m.Int64Counter("soundfeatures.sink.errors",
		metric.WithDescription("Total failed report deliveries by sink."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.ExtractorDuration, err = m.Float64Histogram("soundfeatures.extractor.duration",
		metric.WithDescription("Per-frame extractor latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("soundfeatures.active_sessions",
		metric.WithDescription("Number of running capture sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Call [InitProvider] first for the
// instruments to be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Noop returns a Metrics whose instruments discard every measurement.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: failed to create noop metrics: " + err.Error())
	}
	return m
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordExtractor records the latency of one extractor call.
func (m *Metrics) RecordExtractor(ctx context.Context, extractor string, d time.Duration) {
	m.ExtractorDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("extractor", extractor)),
	)
}

// RecordExtractorPanic records a recovered extractor panic.
func (m *Metrics) RecordExtractorPanic(ctx context.Context, extractor string) {
	m.ExtractorPanics.Add(ctx, 1,
		metric.WithAttributes(attribute.String("extractor", extractor)),
	)
}

// RecordEdgeCase records a sentinel result for feature.
func (m *Metrics) RecordEdgeCase(ctx context.Context, feature string) {
	m.EdgeCases.Add(ctx, 1,
		metric.WithAttributes(attribute.String("feature", feature)),
	)
}

// RecordReport records a report delivered to sink.
func (m *Metrics) RecordReport(ctx context.Context, sink string) {
	m.ReportsSent.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sink", sink)),
	)
}

// RecordSinkError records a failed delivery to sink.
func (m *Metrics) RecordSinkError(ctx context.Context, sink string) {
	m.SinkErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("sink", sink)),
	)
}
