// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"
	"time"
)

// SilenceFloorDB is reported instead of 20*log10(0). Any level below it is
// clamped to it as well.
const SilenceFloorDB = -200.0

// Loudness is the Noisy/Silent classification of a frame.
type Loudness int

const (
	Silent Loudness = iota
	Noisy
)

// String returns the string representation of the Loudness.
func (l Loudness) String() string {
	switch l {
	case Noisy:
		return "noisy"
	case Silent:
		return "silent"
	default:
		return "unknown"
	}
}

// MarshalText encodes the classification by name.
func (l Loudness) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// EnergyResult is the loudness of one frame.
type EnergyResult struct {
	Timestamp  time.Time `json:"-"`
	FrameIndex uint64    `json:"frame"`
	Decibels   float64   `json:"db"`
	State      Loudness  `json:"state"`
	AtFloor    bool      `json:"at_floor,omitempty"` // Decibels is SilenceFloorDB.
}

func (r EnergyResult) Feature() string { return FeatureEnergy }
func (r EnergyResult) Time() time.Time { return r.Timestamp }
func (r EnergyResult) EdgeCase() bool  { return r.AtFloor }

// Energy classifies frames as Noisy or Silent by their RMS level in dB.
// The threshold can be changed while frames are flowing.
type Energy struct {
	threshold atomic.Uint64 // math.Float64bits of the dB threshold
}

var _ Extractor = (*Energy)(nil)

// NewEnergy returns an extractor with the given threshold in dB. Frames
// louder than the threshold are Noisy, the rest are Silent.
func NewEnergy(thresholdDB float64) *Energy {
	e := &Energy{}
	e.SetThreshold(thresholdDB)
	return e
}

// SetThreshold atomically replaces the classification threshold.
func (e *Energy) SetThreshold(db float64) {
	e.threshold.Store(math.Float64bits(db))
}

// Threshold returns the current classification threshold in dB.
func (e *Energy) Threshold() float64 {
	return math.Float64frombits(e.threshold.Load())
}

func (e *Energy) Name() string { return FeatureEnergy }

// Process emits one EnergyResult per frame.
func (e *Energy) Process(frame Frame, emit Emitter) {
	emit.Emit(e.Compute(frame))
}

// Compute returns the EnergyResult for frame.
func (e *Energy) Compute(frame Frame) EnergyResult {
	db, atFloor := Decibels(frame.Samples)

	state := Silent
	if db > e.Threshold() {
		state = Noisy
	}

	return EnergyResult{
		Timestamp:  frame.Timestamp,
		FrameIndex: frame.Index,
		Decibels:   db,
		State:      state,
		AtFloor:    atFloor,
	}
}

// Decibels returns 20*log10(rms) of samples. A zero (or empty) buffer, or
// one quieter than SilenceFloorDB, yields SilenceFloorDB and true.
func Decibels(samples []float32) (float64, bool) {
	rms := calculateRMS(samples)
	if rms <= 0 {
		return SilenceFloorDB, true
	}

	db := 20 * math.Log10(rms)
	if math.IsNaN(db) || db <= SilenceFloorDB {
		return SilenceFloorDB, true
	}
	return db, false
}

// calculateRMS calculates the Root Mean Square energy of the buffer.
func calculateRMS(buffer []float32) float64 {
	if len(buffer) == 0 {
		return 0.0
	}

	var sumSquare float64
	for _, sample := range buffer {
		s := float64(sample)
		sumSquare += s * s
	}

	meanSquare := sumSquare / float64(len(buffer))

	return math.Sqrt(meanSquare)
}
