// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// HzToMel converts a frequency to the mel scale (O'Shaughnessy).
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank is a set of triangular filters spaced evenly on the mel
// scale between a lower and an upper frequency. Each filter spans the
// centers of its two neighbours and peaks at 1 on its own center.
type MelFilterBank struct {
	filters [][]float64 // filters[m][k] is the weight of spectrum bin k
}

// NewMelFilterBank builds numFilters filters over the bins of a real FFT of
// fftSize points. Weights are computed from the exact bin frequencies, so
// narrow low-frequency filters never collapse to zero width.
func NewMelFilterBank(numFilters, fftSize int, sampleRate, lowerFreq, upperFreq float64) *MelFilterBank {
	lowMel := HzToMel(lowerFreq)
	highMel := HzToMel(upperFreq)

	// numFilters+2 edges: the first and last are only ever filter feet.
	edges := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range edges {
		edges[i] = MelToHz(lowMel + float64(i)*melStep)
	}

	bins := fftSize/2 + 1
	binHz := sampleRate / float64(fftSize)

	filters := make([][]float64, numFilters)
	for m := range filters {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, bins)
		for k := range filter {
			f := float64(k) * binHz
			switch {
			case f > left && f <= center:
				filter[k] = (f - left) / (center - left)
			case f > center && f < right:
				filter[k] = (right - f) / (right - center)
			}
		}
		filters[m] = filter
	}

	return &MelFilterBank{filters: filters}
}

// Len returns the number of filters.
func (b *MelFilterBank) Len() int { return len(b.filters) }

// Apply writes the filtered energy of power into dst, one value per filter.
func (b *MelFilterBank) Apply(dst, power []float64) []float64 {
	if cap(dst) < len(b.filters) {
		dst = make([]float64, len(b.filters))
	}
	dst = dst[:len(b.filters)]
	for m, filter := range b.filters {
		n := min(len(filter), len(power))
		dst[m] = floats.Dot(filter[:n], power[:n])
	}
	return dst
}
