// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"time"
)

// Feature names. They double as report tags and metric attributes.
const (
	FeatureEnergy = "energy"
	FeatureMFCC   = "mfcc"
	FeaturePitch  = "pitch"
	FeatureJitter = "jitter"
)

var (
	// ErrInvalidFrequencyRange reports a filter bank or pitch range whose
	// bounds are inverted, negative or above the Nyquist frequency.
	ErrInvalidFrequencyRange = errors.New("invalid frequency range")

	// ErrInvalidCoefficientCount reports a mel filter or cepstral
	// coefficient count outside 0 < coefficients <= filters.
	ErrInvalidCoefficientCount = errors.New("invalid coefficient count")

	// ErrInvalidPitchConfig reports an unknown pitch algorithm or an
	// unusable threshold.
	ErrInvalidPitchConfig = errors.New("invalid pitch configuration")
)

// Frame is one analysis window. It is immutable once produced: the
// windower allocates Samples for every frame and nobody writes to it
// afterwards, so extractors may read it without copying.
type Frame struct {
	Index     uint64    // Monotonically increasing within a session.
	Timestamp time.Time // Capture time of the last sample in the frame.
	Samples   []float32 // Normalized to [-1, 1].
}

// Result is a value produced by an extractor for one frame.
type Result interface {
	Feature() string
	Time() time.Time
}

// EdgeCaser is implemented by results that can carry a sentinel value
// instead of a measurement (silence floor, unvoiced frame, ...).
type EdgeCaser interface {
	EdgeCase() bool
}

// Emitter receives extractor results. Implementations must not block.
type Emitter interface {
	Emit(Result)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Result)

// Emit calls f(r).
func (f EmitterFunc) Emit(r Result) { f(r) }

// Extractor is a per-frame feature computation. Process runs on the
// session's analysis goroutine, synchronously for every frame, so it must
// not perform I/O or wait on locks shared with other goroutines.
//
// Extractors are owned by exactly one session and are not required to be
// safe for concurrent use.
type Extractor interface {
	Name() string
	Process(frame Frame, emit Emitter)
}
