// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"github.com/alice-iceberg/SoundFeatures/pkg/utils"
)

func TestSpectrumProcessorPeak(t *testing.T) {
	tests := []struct {
		name      string
		frameSize int
		frequency float64
	}{
		{"Power of two", 1024, 440},
		{"Padded", 1000, 1000},
		{"High", 1024, 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewSpectrumProcessor(tt.frameSize, testSampleRate, Hann)
			if err != nil {
				t.Fatalf("NewSpectrumProcessor: %v", err)
			}

			power := p.PowerSpectrum(utils.GenerateSineWave(tt.frameSize, testSampleRate, tt.frequency))
			peak := utils.FindPeakBin(power, 1, len(power)-1)
			binWidth := testSampleRate / float64(p.FFTSize())
			got := float64(peak) * binWidth
			if math.Abs(got-tt.frequency) > binWidth {
				t.Errorf("peak at %.1f Hz, want %.1f Hz (±%.1f)", got, tt.frequency, binWidth)
			}
		})
	}
}

func TestSpectrumProcessorSizes(t *testing.T) {
	p, err := NewSpectrumProcessor(1000, testSampleRate, Hamming)
	if err != nil {
		t.Fatalf("NewSpectrumProcessor: %v", err)
	}
	if p.FFTSize() != 1024 {
		t.Errorf("FFTSize() = %d, want 1024", p.FFTSize())
	}
	// Samples past the frame are zero-padded, not windowed.
	if got := len(p.PowerSpectrum(utils.GenerateSineWave(1000, testSampleRate, 440))); got != 513 {
		t.Errorf("bins = %d, want 513", got)
	}
}

func TestSpectrumProcessorInvalid(t *testing.T) {
	if _, err := NewSpectrumProcessor(0, testSampleRate, Hann); err == nil {
		t.Error("expected error for zero frame size")
	}
	if _, err := NewSpectrumProcessor(1024, 0, Hann); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestPowerSpectrumHotPath(t *testing.T) {
	p, _ := NewSpectrumProcessor(testFrameSize, testSampleRate, Hann)
	samples := utils.GenerateComplexWave(testFrameSize, testSampleRate)

	p.PowerSpectrum(samples)
	allocs := testing.AllocsPerRun(100, func() {
		p.PowerSpectrum(samples)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in PowerSpectrum hot path, got %.1f", allocs)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"bartletthann", BartlettHann, false},
		{"lanczos", Lanczos, false},
		{"nuttall", Nuttall, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplyWindowRectangular(t *testing.T) {
	coeffs := make([]float64, 16)
	applyWindow(coeffs, Rectangular)
	for i, c := range coeffs {
		if c != 1 {
			t.Fatalf("coefficient %d = %f, want 1", i, c)
		}
	}
}

func TestMelFilterBank(t *testing.T) {
	bank := NewMelFilterBank(20, 1024, testSampleRate, 133.33, 5500)
	if bank.Len() != 20 {
		t.Fatalf("Len() = %d, want 20", bank.Len())
	}

	// Peaks move up the spectrum and stay inside the bank's range.
	binHz := testSampleRate / 1024.0
	prev := -1
	for m, filter := range bank.filters {
		peak := utils.FindPeakBin(filter, 0, len(filter))
		if peak <= prev {
			t.Fatalf("filter %d peaks at bin %d, not above %d", m, peak, prev)
		}
		if f := float64(peak) * binHz; f <= 133.33-binHz || f >= 5500+binHz {
			t.Errorf("filter %d peaks at %.1f Hz, outside (133.33, 5500)", m, f)
		}
		prev = peak
	}

	// A flat spectrum gives every filter a non-zero response.
	flat := make([]float64, 513)
	for i := range flat {
		flat[i] = 1
	}
	out := bank.Apply(nil, flat)
	for m, v := range out {
		if v <= 0 {
			t.Errorf("filter %d response = %f, want > 0", m, v)
		}
	}
}

func TestHzToMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 133.33, 440, 1000, 5512.5} {
		if got := MelToHz(HzToMel(hz)); math.Abs(got-hz) > 1e-9 {
			t.Errorf("MelToHz(HzToMel(%f)) = %f", hz, got)
		}
	}
	// 1000 Hz is ~1000 mel by construction.
	if m := HzToMel(1000); math.Abs(m-1000) > 1 {
		t.Errorf("HzToMel(1000) = %f, want ~1000", m)
	}
}
