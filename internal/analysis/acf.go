// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"github.com/alice-iceberg/SoundFeatures/internal/fft"
)

// peakTolerance is the share of the best correlation a earlier peak needs to
// be preferred. Picking the first strong peak avoids octave-down errors at
// multiples of the true period.
const peakTolerance = 0.9

// Autocorrelation estimates pitch from the unbiased, energy-normalized
// autocorrelation of the frame, computed with an FFT.
type Autocorrelation struct {
	sampleRate float64
	voicing    float64 // minimum normalized correlation of a voiced frame
	minLag     int
	maxLag     int
	acf        *fft.Autocorrelator
	buffer     []float64
}

var _ PitchEstimator = (*Autocorrelation)(nil)

// NewAutocorrelation pre-allocates the FFT workspace for cfg.FrameSize. cfg
// is expected to be valid.
func NewAutocorrelation(cfg PitchConfig) (*Autocorrelation, error) {
	acf, err := fft.NewAutocorrelator(cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPitchConfig, err)
	}
	minLag, maxLag := cfg.lagRange()
	return &Autocorrelation{
		sampleRate: cfg.SampleRate,
		voicing:    1 - cfg.Threshold,
		minLag:     minLag,
		maxLag:     maxLag,
		acf:        acf,
		buffer:     make([]float64, cfg.FrameSize),
	}, nil
}

// Estimate implements PitchEstimator.
func (a *Autocorrelation) Estimate(samples []float32) (float64, float64, bool) {
	n := a.acf.Size()
	r := a.acf.Compute(a.buffer, samples)
	if !(r[0] > 0) {
		return NoPitch, 0, false
	}

	// Unbiased estimate normalized so that r[0] == 1.
	energy := r[0] / float64(n)
	hi := min(a.maxLag+1, n-1)
	for lag := 1; lag <= hi; lag++ {
		r[lag] = r[lag] / float64(n-lag) / energy
	}

	best := 0.0
	for lag := a.minLag; lag <= a.maxLag && lag < hi; lag++ {
		if r[lag] > best {
			best = r[lag]
		}
	}
	if best < a.voicing {
		return NoPitch, 0, false
	}

	for lag := a.minLag; lag <= a.maxLag && lag < hi; lag++ {
		if r[lag] < peakTolerance*best || r[lag] < r[lag-1] || r[lag] < r[lag+1] {
			continue
		}
		period := float64(lag) + parabolicOffset(r[lag-1], r[lag], r[lag+1])
		return a.sampleRate / period, min(r[lag], 1), true
	}
	return NoPitch, 0, false
}
