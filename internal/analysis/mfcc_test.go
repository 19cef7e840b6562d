// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"testing"

	"github.com/alice-iceberg/SoundFeatures/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMFCCConfig() MFCCConfig {
	return MFCCConfig{
		SampleRate:   testSampleRate,
		FrameSize:    testFrameSize,
		MelFilters:   20,
		Coefficients: 13,
		LowerFreq:    133.33,
		UpperFreq:    5500,
		Window:       Hamming,
	}
}

func TestMFCCCoefficientCount(t *testing.T) {
	inputs := map[string][]float32{
		"silence": utils.GenerateSilence(testFrameSize),
		"sine":    utils.GenerateSineWave(testFrameSize, testSampleRate, 440),
		"complex": utils.GenerateComplexWave(testFrameSize, testSampleRate),
		"noise":   utils.GenerateNoise(testFrameSize, 1, 3),
		"clipped": func() []float32 {
			s := make([]float32, testFrameSize)
			for i := range s {
				s[i] = 1
			}
			return s
		}(),
	}

	for _, coeffs := range []int{1, 5, 13, 20} {
		cfg := testMFCCConfig()
		cfg.Coefficients = coeffs
		m, err := NewMFCC(cfg)
		require.NoError(t, err)

		for name, samples := range inputs {
			t.Run(fmt.Sprintf("%d/%s", coeffs, name), func(t *testing.T) {
				r := m.Compute(testFrame(samples))
				require.Len(t, r.Coefficients, coeffs)
				for i, c := range r.Coefficients {
					assert.False(t, math.IsNaN(c) || math.IsInf(c, 0), "coefficient %d = %v", i, c)
				}
			})
		}
	}
}

func TestMFCCNonPowerOfTwoFrame(t *testing.T) {
	cfg := testMFCCConfig()
	cfg.FrameSize = 1000
	m, err := NewMFCC(cfg)
	require.NoError(t, err)

	r := m.Compute(testFrame(utils.GenerateComplexWave(1000, testSampleRate)))
	assert.Len(t, r.Coefficients, cfg.Coefficients)
}

func TestMFCCSilenceIsFloored(t *testing.T) {
	m, err := NewMFCC(testMFCCConfig())
	require.NoError(t, err)

	r := m.Compute(testFrame(utils.GenerateSilence(testFrameSize)))
	assert.Equal(t, 20, r.Floored)
	assert.True(t, r.EdgeCase())

	// Every log band equals log(floor), so only C0 is non-zero.
	assert.InDelta(t, math.Sqrt(20)*math.Log(melEnergyFloor), r.Coefficients[0], 1e-9)
	for k := 1; k < len(r.Coefficients); k++ {
		assert.InDelta(t, 0, r.Coefficients[k], 1e-9, "C%d", k)
	}
}

func TestMFCCDistinguishesSignals(t *testing.T) {
	m, err := NewMFCC(testMFCCConfig())
	require.NoError(t, err)

	low := m.Compute(testFrame(utils.GenerateSineWave(testFrameSize, testSampleRate, 300))).Coefficients
	high := m.Compute(testFrame(utils.GenerateSineWave(testFrameSize, testSampleRate, 3000))).Coefficients

	var dist float64
	for i := range low {
		dist += (low[i] - high[i]) * (low[i] - high[i])
	}
	assert.Greater(t, math.Sqrt(dist), 1.0)
}

func TestMFCCProcessEmits(t *testing.T) {
	m, err := NewMFCC(testMFCCConfig())
	require.NoError(t, err)
	emit, out := collect()

	m.Process(testFrame(utils.GenerateSineWave(testFrameSize, testSampleRate, 440)), emit)

	require.Len(t, *out, 1)
	r := (*out)[0].(MFCCResult)
	assert.Equal(t, FeatureMFCC, r.Feature())
	assert.Equal(t, uint64(7), r.FrameIndex)
	assert.False(t, r.EdgeCase())
}

func TestMFCCInvalidFrequencyRange(t *testing.T) {
	// Every pair with lower >= upper fails, regardless of the counts.
	pairs := [][2]float64{
		{1000, 1000},
		{1000, 999.99},
		{5000, 100},
		{0, 0},
		{5512.5, 133.33},
	}
	counts := [][2]int{{20, 13}, {0, 0}, {10, 30}}

	for _, p := range pairs {
		for _, c := range counts {
			cfg := testMFCCConfig()
			cfg.LowerFreq, cfg.UpperFreq = p[0], p[1]
			cfg.MelFilters, cfg.Coefficients = c[0], c[1]

			_, err := NewMFCC(cfg)
			assert.ErrorIs(t, err, ErrInvalidFrequencyRange, "lower=%.2f upper=%.2f", p[0], p[1])
		}
	}
}

func TestMFCCValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MFCCConfig)
		target error
	}{
		{"negative lower", func(c *MFCCConfig) { c.LowerFreq = -1 }, ErrInvalidFrequencyRange},
		{"above nyquist", func(c *MFCCConfig) { c.UpperFreq = 8000 }, ErrInvalidFrequencyRange},
		{"nan lower", func(c *MFCCConfig) { c.LowerFreq = math.NaN() }, ErrInvalidFrequencyRange},
		{"zero sample rate", func(c *MFCCConfig) { c.SampleRate = 0 }, ErrInvalidFrequencyRange},
		{"zero filters", func(c *MFCCConfig) { c.MelFilters = 0 }, ErrInvalidCoefficientCount},
		{"zero coefficients", func(c *MFCCConfig) { c.Coefficients = 0 }, ErrInvalidCoefficientCount},
		{"more coefficients than filters", func(c *MFCCConfig) { c.Coefficients = 30 }, ErrInvalidCoefficientCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testMFCCConfig()
			tt.mutate(&cfg)
			_, err := NewMFCC(cfg)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	cfg := testMFCCConfig()
	cfg.UpperFreq = testSampleRate / 2.0
	_, err := NewMFCC(cfg)
	assert.NoError(t, err, "upper bound equal to Nyquist is allowed")
}

func TestDCTMatrixIsOrthonormal(t *testing.T) {
	const n = 20
	m := dctMatrix(n, n)
	for i := range n {
		for j := range n {
			var dot float64
			for k := range n {
				dot += m[i][k] * m[j][k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9, "rows %d,%d", i, j)
		}
	}
}

func BenchmarkMFCC(b *testing.B) {
	m, _ := NewMFCC(testMFCCConfig())
	f := testFrame(utils.GenerateComplexWave(testFrameSize, testSampleRate))

	b.ReportAllocs()
	for b.Loop() {
		_ = m.Compute(f)
	}
}
