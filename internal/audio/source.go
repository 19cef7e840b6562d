// SPDX-License-Identifier: MIT

/*
Package audio is the capture boundary of the service:
- PortAudio microphone input delivering mono float32 chunks
- WAV file input for offline analysis of recorded audio
- WAV recording of the raw captured signal

Thread Safety:
- A Source calls its DeliverFunc from a single goroutine (the PortAudio
  callback thread or the file reader), never concurrently
- Delivered slices are only valid for the duration of the call
*/
package audio

import (
	"errors"
	"time"
)

var (
	// ErrUnsupportedConfig is returned when a device or file cannot honor
	// the requested sample rate, channel layout or buffer size. The request
	// is never silently replaced by a default.
	ErrUnsupportedConfig = errors.New("unsupported capture configuration")

	// ErrDeviceNotFound is returned when no input device matches.
	ErrDeviceNotFound = errors.New("audio device not found")
)

// StreamParams describes the stream a capture session needs.
type StreamParams struct {
	DeviceID        int     // Device index, -1 selects the system default.
	SampleRate      float64 // Hz.
	FramesPerBuffer int     // Samples per delivered chunk (the frame hop).
	LowLatency      bool    // Request the device's low input latency.
}

// DeliverFunc receives a chunk of mono samples in [-1, 1] together with the
// capture time of its last sample. The slice is reused after the call
// returns.
type DeliverFunc func(samples []float32, at time.Time)

// Source is an open capture stream.
type Source interface {
	// Start begins delivering chunks. It must be called at most once.
	Start(deliver DeliverFunc) error
	// Wait blocks until the stream ends on its own (end of file) or is
	// closed, and returns the terminal error if any.
	Wait() error
	// Close stops delivery and releases the underlying device or file.
	// It is safe to call more than once.
	Close() error
}

// Opener opens capture streams.
type Opener interface {
	Open(params StreamParams) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(params StreamParams) (Source, error)

// Open calls f(params).
func (f OpenerFunc) Open(params StreamParams) (Source, error) {
	return f(params)
}
