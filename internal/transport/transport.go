// SPDX-License-Identifier: MIT

// Package transport is the reporting boundary: every extractor result
// becomes a Report that is handed, asynchronously, to one or more sinks.
package transport

import (
	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
)

// Report is one (timestamp, tag, value) tuple.
type Report struct {
	Timestamp int64           `json:"timestamp"` // Milliseconds since the Unix epoch.
	Tag       string          `json:"tag"`       // Feature name.
	Value     analysis.Result `json:"value"`
}

// NewReport wraps r using its capture time and feature name.
func NewReport(r analysis.Result) Report {
	return Report{
		Timestamp: r.Time().UnixMilli(),
		Tag:       r.Feature(),
		Value:     r,
	}
}

// Sink delivers reports to an external collaborator.
// Implementations must be safe for use by a single reporting goroutine and
// may block; they are never called on the capture thread.
type Sink interface {
	Name() string
	Report(r Report) error
	Close() error
}
