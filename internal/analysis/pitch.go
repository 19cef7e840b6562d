// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
)

// NoPitch is the Frequency of an unvoiced PitchResult.
const NoPitch = -1.0

// PitchAlgorithm selects a PitchEstimator implementation.
type PitchAlgorithm int

const (
	YIN PitchAlgorithm = iota
	ACF
)

func (a PitchAlgorithm) String() string {
	switch a {
	case YIN:
		return "yin"
	case ACF:
		return "acf"
	default:
		return fmt.Sprintf("PitchAlgorithm(%d)", int(a))
	}
}

// ParsePitchAlgorithm converts a case-insensitive name to a PitchAlgorithm.
func ParsePitchAlgorithm(name string) (PitchAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yin", "":
		return YIN, nil
	case "acf", "autocorrelation":
		return ACF, nil
	default:
		return YIN, fmt.Errorf("%w: unknown pitch algorithm %q", ErrInvalidPitchConfig, name)
	}
}

// PitchEstimator is the pluggable fundamental frequency strategy. It
// consumes one window and reports at most one estimate; ok is false for
// unvoiced, silent or aperiodic input. Implementations may keep internal
// buffers and are not required to be safe for concurrent use.
type PitchEstimator interface {
	Estimate(samples []float32) (hz float64, probability float64, ok bool)
}

// PitchConfig is the fixed configuration of a pitch extractor.
type PitchConfig struct {
	SampleRate float64
	FrameSize  int
	Algorithm  PitchAlgorithm
	Threshold  float64 // YIN absolute threshold; ACF voices frames whose correlation reaches 1-Threshold.
	MinFreq    float64 // Lowest reported pitch (Hz).
	MaxFreq    float64 // Highest reported pitch (Hz).
}

// Validate checks the detection range and threshold.
func (c PitchConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("%w: frame size must be positive, got %d", ErrInvalidPitchConfig, c.FrameSize)
	}
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %.1f Hz", ErrInvalidFrequencyRange, c.SampleRate)
	}
	if !(c.MinFreq > 0) || !(c.MinFreq < c.MaxFreq) || c.MaxFreq > c.SampleRate/2 {
		return fmt.Errorf("%w: pitch range must satisfy 0 < min < max <= %.1f Hz, got %.1f-%.1f Hz",
			ErrInvalidFrequencyRange, c.SampleRate/2, c.MinFreq, c.MaxFreq)
	}
	if !(c.Threshold > 0 && c.Threshold < 1) {
		return fmt.Errorf("%w: threshold must be within (0, 1), got %.3f", ErrInvalidPitchConfig, c.Threshold)
	}
	return nil
}

// lagRange converts the frequency range to the inclusive lag range that
// fits in a frame of frameSize samples. YIN and ACF both compare the first
// half of the frame with a shifted copy, so lags stop at frameSize/2-1.
func (c PitchConfig) lagRange() (minLag, maxLag int) {
	minLag = max(2, int(math.Floor(c.SampleRate/c.MaxFreq)))
	maxLag = min(c.FrameSize/2-1, int(math.Ceil(c.SampleRate/c.MinFreq)))
	return minLag, maxLag
}

// NewPitchEstimator builds the estimator selected by cfg.Algorithm.
func NewPitchEstimator(cfg PitchConfig) (PitchEstimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case YIN:
		return NewYin(cfg), nil
	case ACF:
		return NewAutocorrelation(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown pitch algorithm %v", ErrInvalidPitchConfig, cfg.Algorithm)
	}
}

// PitchResult is the fundamental frequency estimate for one frame.
type PitchResult struct {
	Timestamp   time.Time `json:"-"`
	FrameIndex  uint64    `json:"frame"`
	Frequency   float64   `json:"hz"` // NoPitch when not Voiced.
	Voiced      bool      `json:"voiced"`
	Probability float64   `json:"probability"`
}

func (r PitchResult) Feature() string { return FeaturePitch }
func (r PitchResult) Time() time.Time { return r.Timestamp }
func (r PitchResult) EdgeCase() bool  { return !r.Voiced }

// Pitch runs a PitchEstimator on every frame. When a Jitter calculator is
// attached, a JitterResult follows each PitchResult once it is Ready.
type Pitch struct {
	estimator PitchEstimator
	minFreq   float64
	maxFreq   float64
	jitter    *Jitter
}

var _ Extractor = (*Pitch)(nil)

// NewPitch validates cfg and builds the configured estimator.
func NewPitch(cfg PitchConfig) (*Pitch, error) {
	estimator, err := NewPitchEstimator(cfg)
	if err != nil {
		return nil, err
	}

	log.Debugf("Analysis: Initializing Pitch (Algorithm: %v, Threshold: %.2f, Range: %.1f-%.1f Hz)",
		cfg.Algorithm, cfg.Threshold, cfg.MinFreq, cfg.MaxFreq)

	return NewPitchWithEstimator(estimator, cfg.MinFreq, cfg.MaxFreq), nil
}

// NewPitchWithEstimator wraps a custom estimator. Estimates outside
// [minFreq, maxFreq] are reported as unvoiced.
func NewPitchWithEstimator(estimator PitchEstimator, minFreq, maxFreq float64) *Pitch {
	return &Pitch{
		estimator: estimator,
		minFreq:   minFreq,
		maxFreq:   maxFreq,
	}
}

// WithJitter chains j after the pitch estimate and returns p.
func (p *Pitch) WithJitter(j *Jitter) *Pitch {
	p.jitter = j
	return p
}

func (p *Pitch) Name() string { return FeaturePitch }

// Process emits a PitchResult, followed by a JitterResult when a jitter
// calculator is attached and Ready.
func (p *Pitch) Process(frame Frame, emit Emitter) {
	r := p.Compute(frame)
	emit.Emit(r)

	if p.jitter != nil {
		if jr, ok := p.jitter.Update(r); ok {
			emit.Emit(jr)
		}
	}
}

// Compute returns the PitchResult for frame.
func (p *Pitch) Compute(frame Frame) PitchResult {
	r := PitchResult{
		Timestamp:  frame.Timestamp,
		FrameIndex: frame.Index,
		Frequency:  NoPitch,
	}

	hz, probability, ok := p.estimator.Estimate(frame.Samples)
	if !ok || math.IsNaN(hz) || hz < p.minFreq || hz > p.maxFreq {
		return r
	}

	r.Frequency = hz
	r.Voiced = true
	r.Probability = probability
	return r
}

// parabolicOffset returns the sub-sample offset of the extremum of the
// parabola through (−1, y0), (0, y1), (1, y2). It is 0 for a flat triple.
func parabolicOffset(y0, y1, y2 float64) float64 {
	denom := y0 - 2*y1 + y2
	if denom == 0 {
		return 0
	}
	offset := 0.5 * (y0 - y2) / denom
	if offset < -1 || offset > 1 {
		return 0
	}
	return offset
}
