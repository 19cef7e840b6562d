// SPDX-License-Identifier: MIT
package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voiced(hz float64) PitchResult {
	return PitchResult{Frequency: hz, Voiced: true, Probability: 1}
}

func unvoiced() PitchResult {
	return PitchResult{Frequency: NoPitch}
}

func TestJitterStateMachine(t *testing.T) {
	j := NewJitter()
	assert.Equal(t, JitterUninitialized, j.State())

	_, ok := j.Update(voiced(200))
	assert.False(t, ok, "first valid sample must not produce a value")
	assert.Equal(t, JitterWarming, j.State())

	r, ok := j.Update(voiced(250))
	require.True(t, ok)
	assert.Equal(t, JitterReady, j.State())
	assert.InDelta(t, 0.001, r.Seconds, 1e-12)
	assert.Equal(t, FeatureJitter, r.Feature())

	j.Reset()
	assert.Equal(t, JitterUninitialized, j.State())
	_, ok = j.Update(voiced(100))
	assert.False(t, ok)
}

func TestJitterSkipsUnvoicedFrames(t *testing.T) {
	j := NewJitter()

	for range 3 {
		_, ok := j.Update(unvoiced())
		assert.False(t, ok)
	}
	assert.Equal(t, JitterUninitialized, j.State())

	j.Update(voiced(100))
	_, ok := j.Update(unvoiced())
	assert.False(t, ok)
	assert.Equal(t, JitterWarming, j.State())

	// Zero and negative frequencies never count as a period.
	_, ok = j.Update(PitchResult{Frequency: 0, Voiced: true})
	assert.False(t, ok)
	_, ok = j.Update(PitchResult{Frequency: -5, Voiced: true})
	assert.False(t, ok)

	r, ok := j.Update(voiced(200))
	require.True(t, ok)
	assert.InDelta(t, 0.005, r.Seconds, 1e-12)

	// Unvoiced frames in Ready produce nothing and keep the history.
	_, ok = j.Update(unvoiced())
	assert.False(t, ok)
	assert.Equal(t, JitterReady, j.State())
}

func TestJitterNonNegativeFromSecondSample(t *testing.T) {
	sequences := [][]float64{
		{100, 200, 150, 150, 90, 1000},
		{440, 440, 440},
		{1500, 50, 1500, 50},
	}

	for _, seq := range sequences {
		j := NewJitter()
		for i, hz := range seq {
			r, ok := j.Update(voiced(hz))
			if i == 0 {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok, "sample %d of %v", i, seq)
			assert.GreaterOrEqual(t, r.Seconds, 0.0)
		}
	}
}

func TestJitterStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", JitterUninitialized.String())
	assert.Equal(t, "warming", JitterWarming.String())
	assert.Equal(t, "ready", JitterReady.String())
	assert.Equal(t, "unknown", JitterState(99).String())
}
