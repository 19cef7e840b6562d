// SPDX-License-Identifier: MIT

// Package fft computes frame autocorrelation through the Wiener-Khinchin
// relation: the inverse transform of the power spectrum.
package fft

import (
	"fmt"

	"github.com/alice-iceberg/SoundFeatures/pkg/bitint"

	"github.com/mjibson/go-dsp/fft"
)

// Workspace holds pre-allocated buffers for autocorrelation.
type Workspace struct {
	input []float64    // ...for zero-padded real input samples
	power []complex128 // ...for |X(k)|^2
}

// Autocorrelator computes the linear (non-circular) autocorrelation of
// fixed-size frames. It is not safe for concurrent use; each pitch
// extractor owns its own instance.
type Autocorrelator struct {
	size      int
	workspace Workspace
}

// NewAutocorrelator pre-allocates buffers for frames of size samples. The
// transform length is padded so lags up to size-1 do not wrap around.
func NewAutocorrelator(size int) (*Autocorrelator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("autocorrelation size must be positive, got %d", size)
	}
	padded := bitint.PaddedSize(size)

	return &Autocorrelator{
		size: size,
		workspace: Workspace{
			input: make([]float64, padded),
			power: make([]complex128, padded),
		},
	}, nil
}

// Size returns the frame length the autocorrelator was built for.
func (a *Autocorrelator) Size() int {
	return a.size
}

// Compute writes r[lag] = sum(x[n]*x[n+lag]) for lag in [0, len(dst)) into
// dst and returns it. dst is grown to Size() when it is too short; samples
// beyond Size() are ignored and missing samples are treated as zero.
func (a *Autocorrelator) Compute(dst []float64, samples []float32) []float64 {
	if cap(dst) < a.size {
		dst = make([]float64, a.size)
	}
	dst = dst[:a.size]

	for i := range a.workspace.input {
		if i < a.size && i < len(samples) {
			a.workspace.input[i] = float64(samples[i])
		} else {
			a.workspace.input[i] = 0 // 0pad up to the transform length
		}
	}

	spectrum := fft.FFTReal(a.workspace.input)
	for i, c := range spectrum {
		re, im := real(c), imag(c)
		a.workspace.power[i] = complex(re*re+im*im, 0)
	}

	acf := fft.IFFT(a.workspace.power)
	for lag := range dst {
		dst[lag] = real(acf[lag])
	}
	return dst
}
