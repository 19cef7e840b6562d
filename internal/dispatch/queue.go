// SPDX-License-Identifier: MIT
package dispatch

import "github.com/alice-iceberg/SoundFeatures/internal/analysis"

// frameQueue is a bounded FIFO between the capture callback (single
// producer) and the analysis goroutine (single consumer).
type frameQueue struct {
	ch chan analysis.Frame
}

func newFrameQueue(size int) *frameQueue {
	return &frameQueue{ch: make(chan analysis.Frame, size)}
}

// pushDropOldest enqueues f without blocking. When the queue is full the
// oldest frame is discarded to make room. Returns the number of frames
// discarded.
func (q *frameQueue) pushDropOldest(f analysis.Frame) int {
	dropped := 0
	for {
		select {
		case q.ch <- f:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			dropped++
		default:
		}
	}
}

// pushWait enqueues f, blocking until there is room or quit is closed.
// Reports whether f was enqueued.
func (q *frameQueue) pushWait(f analysis.Frame, quit <-chan struct{}) bool {
	select {
	case q.ch <- f:
		return true
	case <-quit:
		return false
	}
}

func (q *frameQueue) frames() <-chan analysis.Frame {
	return q.ch
}

func (q *frameQueue) len() int {
	return len(q.ch)
}
