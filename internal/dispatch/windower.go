// SPDX-License-Identifier: MIT
package dispatch

import (
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
)

// Windower accumulates capture chunks of any length into frames of
// FrameSize samples advancing by Hop. It is not safe for concurrent use;
// a session drives it from the capture callback only.
type Windower struct {
	frameSize  int
	hop        int
	sampleRate float64

	buf    []float32
	filled int
	next   uint64
}

// NewWindower returns a Windower for cfg.
func NewWindower(cfg StreamConfig) (*Windower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Windower{
		frameSize:  cfg.FrameSize,
		hop:        cfg.Hop(),
		sampleRate: cfg.SampleRate,
		buf:        make([]float32, cfg.FrameSize),
	}, nil
}

// Push appends samples, whose last sample was captured at at, and calls out
// for every frame completed by them. Each frame gets its own copy of the
// samples and is stamped with the capture time of its last sample.
// Returns the number of frames produced.
func (w *Windower) Push(samples []float32, at time.Time, out func(analysis.Frame)) int {
	n := len(samples)
	produced := 0

	for consumed := 0; consumed < n; {
		c := copy(w.buf[w.filled:], samples[consumed:])
		w.filled += c
		consumed += c
		if w.filled < w.frameSize {
			break
		}

		lag := time.Duration(float64(n-consumed) / w.sampleRate * float64(time.Second))
		frame := analysis.Frame{
			Index:     w.next,
			Timestamp: at.Add(-lag),
			Samples:   make([]float32, w.frameSize),
		}
		copy(frame.Samples, w.buf)
		w.next++
		produced++
		out(frame)

		copy(w.buf, w.buf[w.hop:])
		w.filled = w.frameSize - w.hop
	}

	return produced
}
