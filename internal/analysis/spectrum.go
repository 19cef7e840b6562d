// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/alice-iceberg/SoundFeatures/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

var windowNames = [...]string{
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if w >= 0 && int(w) < len(windowNames) {
		return windowNames[w]
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// Pre-allocated buffers for spectrum calculations.
type spectrumWorkspace struct {
	input     []float64    // Windowed, zero-padded input signal.
	fftOutput []complex128 // FFT complex results.
	power     []float64    // |X(k)|^2 per bin.
	window    []float64    // Pre-calculated window coefficients, one per frame sample.
}

// SpectrumProcessor computes the power spectrum of fixed-size frames. Frames
// whose length is not a power of two are zero-padded. A processor owns its
// buffers and is not safe for concurrent use.
type SpectrumProcessor struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	frameSize     int          // Samples per input frame.
	fftSize       int          // Number of points for the FFT (power of 2).
	workspace     spectrumWorkspace
}

// NewSpectrumProcessor pre-allocates everything needed to transform frames
// of frameSize samples.
func NewSpectrumProcessor(frameSize int, sampleRate float64, windowType WindowFunc) (*SpectrumProcessor, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	fftSize := bitint.NextPowerOfTwo(frameSize)
	windowCoeffs := make([]float64, frameSize)
	applyWindow(windowCoeffs, windowType)

	bins := bitint.SpectrumBins(fftSize)

	log.Debugf("Analysis: Initializing SpectrumProcessor (Frame: %d, FFT: %d, SampleRate: %.1f Hz, Window: %v)",
		frameSize, fftSize, sampleRate, windowType)

	return &SpectrumProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		frameSize:     frameSize,
		fftSize:       fftSize,
		workspace: spectrumWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, bins),
			power:     make([]float64, bins),
			window:    windowCoeffs,
		},
	}, nil
}

// PowerSpectrum windows samples, transforms them and returns |X(k)|^2 for
// the FFTSize()/2+1 non-redundant bins. The returned slice is reused by the
// next call.
func (p *SpectrumProcessor) PowerSpectrum(samples []float32) []float64 {
	for i := range p.fftSize {
		if i < p.frameSize && i < len(samples) {
			p.workspace.input[i] = float64(samples[i]) * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0 // Zero-padding.
		}
	}

	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	for i, c := range p.workspace.fftOutput {
		re, im := real(c), imag(c)
		p.workspace.power[i] = re*re + im*im
	}
	return p.workspace.power
}

// FFTSize returns the transform length.
func (p *SpectrumProcessor) FFTSize() int { return p.fftSize }

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. Unknown types
// fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum's window functions scale the slice in place.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
	default:
		log.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
