// SPDX-License-Identifier: MIT

// Package utils holds signal generators and collectors shared by tests.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// normalized to [-0.9, 0.9].
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a pure sine at frequency with peak amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	return GenerateSineWaveAmplitude(size, sampleRate, frequency, 0.9)
}

// GenerateSineWaveAmplitude returns a pure sine at frequency with the given
// peak amplitude.
func GenerateSineWaveAmplitude(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// GenerateSilence returns size zero samples.
func GenerateSilence(size int) []float32 {
	return make([]float32, size)
}

// GenerateNoise returns uniform white noise in [-amplitude, amplitude]. The
// same seed always yields the same buffer.
func GenerateNoise(size int, amplitude float64, seed uint64) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32((rng.Float64()*2 - 1) * amplitude)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// Collector gathers values delivered from other goroutines.
type Collector[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

// NewCollector returns an empty collector.
func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{notify: make(chan struct{}, 1)}
}

// Add appends v.
func (c *Collector[T]) Add(v T) {
	c.mu.Lock()
	c.items = append(c.items, v)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Items returns a copy of everything collected so far.
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected values.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// WaitFor blocks until at least n values were collected or timeout elapses.
// It reports whether n was reached.
func (c *Collector[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if c.Len() >= n {
			return true
		}
		select {
		case <-c.notify:
		case <-deadline.C:
			return c.Len() >= n
		}
	}
}
