// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alice-iceberg/SoundFeatures/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 11025
	testFrameSize  = 1024
)

func testFrame(samples []float32) Frame {
	return Frame{Index: 7, Timestamp: time.UnixMilli(1_700_000_000_000), Samples: samples}
}

// collect returns an Emitter that appends results to a slice.
func collect() (Emitter, *[]Result) {
	var out []Result
	return EmitterFunc(func(r Result) { out = append(out, r) }), &out
}

func TestEnergyZeroFrameYieldsSilenceFloor(t *testing.T) {
	e := NewEnergy(-70)

	sizes := []int{1, 2, 256, testFrameSize, 4096}
	for _, n := range sizes {
		r := e.Compute(testFrame(utils.GenerateSilence(n)))
		assert.Equal(t, SilenceFloorDB, r.Decibels, "size %d", n)
		assert.True(t, r.AtFloor, "size %d", n)
		assert.True(t, r.EdgeCase(), "size %d", n)
		assert.Equal(t, Silent, r.State, "size %d", n)
		assert.False(t, math.IsInf(r.Decibels, 0) || math.IsNaN(r.Decibels))
	}
}

func TestEnergyEmptyFrame(t *testing.T) {
	r := NewEnergy(-70).Compute(testFrame(nil))
	assert.Equal(t, SilenceFloorDB, r.Decibels)
	assert.Equal(t, Silent, r.State)
}

func TestEnergySineLevel(t *testing.T) {
	// RMS of a sine with peak A is A/sqrt(2).
	tests := []struct {
		amplitude float64
		want      float64
	}{
		{0.9, 20 * math.Log10(0.9/math.Sqrt2)},
		{0.1, 20 * math.Log10(0.1/math.Sqrt2)},
		{1e-4, 20 * math.Log10(1e-4/math.Sqrt2)},
	}

	e := NewEnergy(-70)
	for _, tt := range tests {
		// 441Hz fits exactly 41 periods in 1025 samples at 11025Hz; use a
		// whole number of periods so the RMS is exact.
		samples := utils.GenerateSineWaveAmplitude(1025, testSampleRate, 441, tt.amplitude)
		r := e.Compute(testFrame(samples))
		assert.InDelta(t, tt.want, r.Decibels, 0.01, "amplitude %g", tt.amplitude)
		assert.False(t, r.AtFloor)
	}
}

func TestEnergyClassification(t *testing.T) {
	e := NewEnergy(-70)
	emit, out := collect()

	e.Process(testFrame(utils.GenerateSineWave(testFrameSize, testSampleRate, 440)), emit)
	e.Process(testFrame(utils.GenerateSineWaveAmplitude(testFrameSize, testSampleRate, 440, 1e-5)), emit)

	require.Len(t, *out, 2)
	loud := (*out)[0].(EnergyResult)
	quiet := (*out)[1].(EnergyResult)

	assert.Equal(t, Noisy, loud.State)
	assert.Equal(t, Silent, quiet.State)
	assert.Equal(t, FeatureEnergy, loud.Feature())
	assert.Equal(t, uint64(7), loud.FrameIndex)
	assert.Equal(t, int64(1_700_000_000_000), loud.Time().UnixMilli())
}

func TestEnergyThresholdIsExclusive(t *testing.T) {
	samples := utils.GenerateSineWaveAmplitude(1025, testSampleRate, 441, 0.5)
	db, _ := Decibels(samples)

	e := NewEnergy(db)
	assert.Equal(t, Silent, e.Compute(testFrame(samples)).State, "level equal to threshold is Silent")

	e.SetThreshold(db - 0.001)
	assert.Equal(t, Noisy, e.Compute(testFrame(samples)).State)
	assert.Equal(t, db-0.001, e.Threshold())
}

func TestEnergyThresholdConcurrentUpdate(t *testing.T) {
	e := NewEnergy(-70)
	samples := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			e.SetThreshold(-float64(i % 100))
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = e.Compute(testFrame(samples))
		}
	}()
	wg.Wait()
}

func TestLoudnessMarshalText(t *testing.T) {
	b, err := Noisy.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "noisy", string(b))
	assert.Equal(t, "silent", Silent.String())
	assert.Equal(t, "unknown", Loudness(9).String())
}

func BenchmarkEnergy(b *testing.B) {
	e := NewEnergy(-70)
	f := testFrame(utils.GenerateComplexWave(testFrameSize, testSampleRate))

	b.ReportAllocs()
	for b.Loop() {
		_ = e.Compute(f)
	}
}
