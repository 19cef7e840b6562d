// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"

	"gonum.org/v1/gonum/floats"
)

// melEnergyFloor replaces non-positive filter energies before the log.
const melEnergyFloor = 1e-10

// MFCCConfig is the fixed configuration of an MFCC extractor.
type MFCCConfig struct {
	SampleRate   float64    // Hz
	FrameSize    int        // Samples per frame.
	MelFilters   int        // Number of triangular mel filters.
	Coefficients int        // Cepstral coefficients per frame.
	LowerFreq    float64    // Lower edge of the filter bank (Hz).
	UpperFreq    float64    // Upper edge of the filter bank (Hz), at most SampleRate/2.
	Window       WindowFunc // Applied before the FFT.
}

// Validate checks the filter bank bounds and counts. Frequency bounds are
// checked first, so an inverted range is always ErrInvalidFrequencyRange.
func (c MFCCConfig) Validate() error {
	if c.FrameSize <= 0 {
		return fmt.Errorf("mfcc: frame size must be positive, got %d", c.FrameSize)
	}
	nyquist := c.SampleRate / 2
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %.1f Hz", ErrInvalidFrequencyRange, c.SampleRate)
	}
	if !(c.LowerFreq >= 0) {
		return fmt.Errorf("%w: lower frequency must be >= 0, got %.2f Hz", ErrInvalidFrequencyRange, c.LowerFreq)
	}
	if !(c.LowerFreq < c.UpperFreq) {
		return fmt.Errorf("%w: lower frequency %.2f Hz must be below upper frequency %.2f Hz",
			ErrInvalidFrequencyRange, c.LowerFreq, c.UpperFreq)
	}
	if c.UpperFreq > nyquist {
		return fmt.Errorf("%w: upper frequency %.2f Hz exceeds Nyquist %.2f Hz",
			ErrInvalidFrequencyRange, c.UpperFreq, nyquist)
	}
	if c.MelFilters <= 0 {
		return fmt.Errorf("%w: mel filter count must be positive, got %d", ErrInvalidCoefficientCount, c.MelFilters)
	}
	if c.Coefficients <= 0 || c.Coefficients > c.MelFilters {
		return fmt.Errorf("%w: cepstral coefficient count must be within [1, %d], got %d",
			ErrInvalidCoefficientCount, c.MelFilters, c.Coefficients)
	}
	return nil
}

// MFCCResult holds the cepstral coefficients of one frame.
type MFCCResult struct {
	Timestamp    time.Time `json:"-"`
	FrameIndex   uint64    `json:"frame"`
	Coefficients []float64 `json:"coefficients"`
	Floored      int       `json:"floored,omitempty"` // Mel bands clamped to the energy floor.
}

func (r MFCCResult) Feature() string { return FeatureMFCC }
func (r MFCCResult) Time() time.Time { return r.Timestamp }
func (r MFCCResult) EdgeCase() bool  { return r.Floored > 0 }

// MFCC computes mel-frequency cepstral coefficients: power spectrum, mel
// filter bank, log, then an orthonormal DCT-II.
type MFCC struct {
	config   MFCCConfig
	spectrum *SpectrumProcessor
	bank     *MelFilterBank
	dct      [][]float64 // dct[k] is the k-th DCT-II basis vector over the filters.
	melBuf   []float64
}

var _ Extractor = (*MFCC)(nil)

// NewMFCC validates cfg and pre-computes the filter bank and DCT matrix.
// All configuration errors surface here, before any audio is processed.
func NewMFCC(cfg MFCCConfig) (*MFCC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spectrum, err := NewSpectrumProcessor(cfg.FrameSize, cfg.SampleRate, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("mfcc: %w", err)
	}

	bank := NewMelFilterBank(cfg.MelFilters, spectrum.FFTSize(), cfg.SampleRate, cfg.LowerFreq, cfg.UpperFreq)

	log.Debugf("Analysis: Initializing MFCC (Filters: %d, Coefficients: %d, Range: %.2f-%.2f Hz)",
		cfg.MelFilters, cfg.Coefficients, cfg.LowerFreq, cfg.UpperFreq)

	return &MFCC{
		config:   cfg,
		spectrum: spectrum,
		bank:     bank,
		dct:      dctMatrix(cfg.Coefficients, cfg.MelFilters),
		melBuf:   make([]float64, cfg.MelFilters),
	}, nil
}

// dctMatrix returns the first rows of the orthonormal DCT-II matrix of
// size n.
func dctMatrix(rows, n int) [][]float64 {
	m := make([][]float64, rows)
	for k := range m {
		m[k] = make([]float64, n)
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		for i := range n {
			m[k][i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
	}
	return m
}

// Config returns the extractor configuration.
func (m *MFCC) Config() MFCCConfig { return m.config }

func (m *MFCC) Name() string { return FeatureMFCC }

// Process emits one MFCCResult per frame.
func (m *MFCC) Process(frame Frame, emit Emitter) {
	emit.Emit(m.Compute(frame))
}

// Compute returns exactly Coefficients values for frame.
func (m *MFCC) Compute(frame Frame) MFCCResult {
	power := m.spectrum.PowerSpectrum(frame.Samples)
	mel := m.bank.Apply(m.melBuf, power)

	floored := 0
	for i, e := range mel {
		if !(e > melEnergyFloor) {
			e = melEnergyFloor
			floored++
		}
		mel[i] = math.Log(e)
	}

	coeffs := make([]float64, len(m.dct))
	for k, basis := range m.dct {
		coeffs[k] = floats.Dot(basis, mel)
	}

	return MFCCResult{
		Timestamp:    frame.Timestamp,
		FrameIndex:   frame.Index,
		Coefficients: coeffs,
		Floored:      floored,
	}
}
