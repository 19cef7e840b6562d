// SPDX-License-Identifier: MIT
package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the sum data point carrying attr, or the
// first point when attr is empty.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if !attr.Valid() {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			return dp.Value
		}
	}
	t.Fatalf("%s: no data point for %v", m.Name, attr)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesCaptured.Add(ctx, 5)
	m.FramesDropped.Add(ctx, 2)
	m.FramesProcessed.Add(ctx, 3)
	m.ReportsDropped.Add(ctx, 1)

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"soundfeatures.frames.captured", 5},
		{"soundfeatures.frames.dropped", 2},
		{"soundfeatures.frames.processed", 3},
		{"soundfeatures.reports.dropped", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			if got := sumFor(t, met, attribute.KeyValue{}); got != tc.want {
				t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
			}
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtractorPanic(ctx, "pitch")
	m.RecordEdgeCase(ctx, "energy")
	m.RecordEdgeCase(ctx, "energy")
	m.RecordEdgeCase(ctx, "pitch")
	m.RecordReport(ctx, "log")
	m.RecordSinkError(ctx, "websocket")

	rm := collect(t, reader)

	tests := []struct {
		name string
		attr attribute.KeyValue
		want int64
	}{
		{"soundfeatures.extractor.panics", Attr("extractor", "pitch"), 1},
		{"soundfeatures.edge_cases", Attr("feature", "energy"), 2},
		{"soundfeatures.edge_cases", Attr("feature", "pitch"), 1},
		{"soundfeatures.reports.sent", Attr("sink", "log"), 1},
		{"soundfeatures.sink.errors", Attr("sink", "websocket"), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name+"/"+tc.attr.Value.AsString(), func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			if got := sumFor(t, met, tc.attr); got != tc.want {
				t.Errorf("%s{%s} = %d, want %d", tc.name, tc.attr.Value.AsString(), got, tc.want)
			}
		})
	}
}

func TestExtractorHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExtractor(ctx, "mfcc", 2*time.Millisecond)
	m.RecordExtractor(ctx, "mfcc", 4*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "soundfeatures.extractor.duration")
	if met == nil {
		t.Fatal("histogram not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 2 {
		t.Errorf("count = %d, want 2", dp.Count)
	}
	if dp.Sum < 0.0059 || dp.Sum > 0.0061 {
		t.Errorf("sum = %f, want ~0.006", dp.Sum)
	}
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "soundfeatures.active_sessions")
	if met == nil {
		t.Fatal("active sessions not found")
	}
	if got := sumFor(t, met, attribute.KeyValue{}); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
}

func TestNoopDiscards(t *testing.T) {
	m := Noop()
	ctx := context.Background()
	m.FramesCaptured.Add(ctx, 1)
	m.RecordExtractor(ctx, "energy", time.Millisecond)
}

func TestInitProviderServesPrometheus(t *testing.T) {
	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	p.Metrics.FramesCaptured.Add(ctx, 3)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "soundfeatures_frames_captured") {
		t.Errorf("/metrics output missing frames counter:\n%s", body)
	}
}

func TestNewResourceMatchesSDKSchema(t *testing.T) {
	res, err := newResource(ProviderConfig{ServiceName: "soundfeatures", ServiceVersion: "1.2.3"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if got, want := res.SchemaURL(), resource.Default().SchemaURL(); got != want {
		t.Errorf("schema URL = %q, want %q", got, want)
	}

	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.version" && kv.Value.AsString() == "1.2.3" {
			found = true
		}
	}
	if !found {
		t.Errorf("service.version missing from %v", res.Attributes())
	}
}

func TestDefaultMetricsFollowsGlobalProvider(t *testing.T) {
	prev := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})

	m := DefaultMetrics()
	if m != DefaultMetrics() {
		t.Fatal("DefaultMetrics returned different instances")
	}
	m.FramesProcessed.Add(context.Background(), 2)

	met := findMetric(collect(t, reader), "soundfeatures.frames.processed")
	if met == nil {
		t.Fatal("frames processed not exported through the global provider")
	}
	if got := sumFor(t, met, attribute.KeyValue{}); got < 2 {
		t.Errorf("frames processed = %d, want >= 2", got)
	}
}
