// SPDX-License-Identifier: MIT
package analysis

// Yin implements the YIN estimator (de Cheveigné and Kawahara, 2002):
// difference function, cumulative mean normalized difference, absolute
// threshold with a walk to the local minimum, and parabolic interpolation.
type Yin struct {
	sampleRate float64
	threshold  float64
	minTau     int
	maxTau     int
	buffer     []float64 // cmndf, indexed by tau
}

var _ PitchEstimator = (*Yin)(nil)

// NewYin pre-allocates the difference buffer for cfg.FrameSize. cfg is
// expected to be valid.
func NewYin(cfg PitchConfig) *Yin {
	minTau, maxTau := cfg.lagRange()
	return &Yin{
		sampleRate: cfg.SampleRate,
		threshold:  cfg.Threshold,
		minTau:     minTau,
		maxTau:     maxTau,
		buffer:     make([]float64, maxTau+2),
	}
}

// Estimate implements PitchEstimator.
func (y *Yin) Estimate(samples []float32) (float64, float64, bool) {
	half := len(samples) / 2
	last := min(y.maxTau+1, half-1) // highest tau evaluated, one past maxTau for interpolation
	if last <= y.minTau {
		return NoPitch, 0, false
	}
	d := y.buffer[:last+1]

	// Difference function.
	d[0] = 0
	for tau := 1; tau <= last; tau++ {
		var sum float64
		for i := range half {
			delta := float64(samples[i]) - float64(samples[i+tau])
			sum += delta * delta
		}
		d[tau] = sum
	}

	// Cumulative mean normalized difference.
	d[0] = 1
	var runningSum float64
	for tau := 1; tau <= last; tau++ {
		runningSum += d[tau]
		if runningSum == 0 {
			d[tau] = 1
		} else {
			d[tau] *= float64(tau) / runningSum
		}
	}

	// First dip below the threshold, then follow it down to its minimum.
	tau := -1
	for t := y.minTau; t <= min(y.maxTau, last-1); t++ {
		if d[t] < y.threshold {
			for t+1 <= last-1 && d[t+1] < d[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return NoPitch, 0, false
	}

	better := float64(tau) + parabolicOffset(d[tau-1], d[tau], d[tau+1])
	if better <= 0 {
		return NoPitch, 0, false
	}

	probability := 1 - d[tau]
	if probability < 0 {
		probability = 0
	}
	return y.sampleRate / better, probability, true
}
