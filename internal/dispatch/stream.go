// SPDX-License-Identifier: MIT

// Package dispatch turns a capture stream into overlapping analysis frames
// and fans every frame out to the registered extractors on a dedicated
// analysis goroutine.
//
// The capture side never blocks: frames go through a bounded queue that
// drops the oldest frame when the analysis side falls behind.
package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStreamConfig is wrapped by every StreamConfig validation
	// failure.
	ErrInvalidStreamConfig = errors.New("invalid stream configuration")

	// ErrSessionStopped is returned when a stopped session is modified.
	ErrSessionStopped = errors.New("session stopped")
)

// StreamConfig is fixed for the lifetime of a session.
type StreamConfig struct {
	SampleRate float64 // Hz.
	FrameSize  int     // Samples per frame.
	Overlap    int     // Samples shared by consecutive frames.
}

// Validate checks SampleRate > 0, FrameSize > 0 and 0 <= Overlap < FrameSize.
func (c StreamConfig) Validate() error {
	if !(c.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate %v must be positive", ErrInvalidStreamConfig, c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("%w: frame size %d must be positive", ErrInvalidStreamConfig, c.FrameSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.FrameSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidStreamConfig, c.Overlap, c.FrameSize)
	}
	return nil
}

// Hop is the number of new samples between consecutive frames.
func (c StreamConfig) Hop() int {
	return c.FrameSize - c.Overlap
}
