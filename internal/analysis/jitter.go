// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"time"
)

// JitterState tracks how many valid pitch periods the calculator has seen.
type JitterState int

const (
	JitterUninitialized JitterState = iota // no period yet
	JitterWarming                          // one period
	JitterReady                            // two or more periods
)

func (s JitterState) String() string {
	switch s {
	case JitterUninitialized:
		return "uninitialized"
	case JitterWarming:
		return "warming"
	case JitterReady:
		return "ready"
	default:
		return "unknown"
	}
}

// JitterResult is the absolute difference between the two most recent pitch
// periods, in seconds.
type JitterResult struct {
	Timestamp  time.Time `json:"-"`
	FrameIndex uint64    `json:"frame"`
	Seconds    float64   `json:"seconds"`
}

func (r JitterResult) Feature() string { return FeatureJitter }
func (r JitterResult) Time() time.Time { return r.Timestamp }

// Jitter derives period-to-period variability from consecutive voiced
// pitch estimates. Unvoiced frames are skipped rather than treated as a
// zero period, so a gap in voicing does not reset the history.
type Jitter struct {
	state    JitterState
	previous float64 // seconds
	latest   float64 // seconds
}

// NewJitter returns a calculator in the Uninitialized state.
func NewJitter() *Jitter {
	return &Jitter{}
}

// State returns the current state.
func (j *Jitter) State() JitterState { return j.state }

// Reset discards the period history.
func (j *Jitter) Reset() {
	*j = Jitter{}
}

// Update records the period of a voiced pitch estimate. It returns a result
// only once two valid periods have been seen.
func (j *Jitter) Update(p PitchResult) (JitterResult, bool) {
	if !p.Voiced || !(p.Frequency > 0) || math.IsInf(p.Frequency, 0) {
		return JitterResult{}, false
	}
	period := 1 / p.Frequency

	if j.state == JitterUninitialized {
		j.latest = period
		j.state = JitterWarming
		return JitterResult{}, false
	}

	j.previous, j.latest = j.latest, period
	j.state = JitterReady

	return JitterResult{
		Timestamp:  p.Timestamp,
		FrameIndex: p.FrameIndex,
		Seconds:    math.Abs(j.latest - j.previous),
	}, true
}
