// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioOpener opens mono float32 input streams on a PortAudio device.
// PortAudio must be initialized for the lifetime of the opened sources.
type PortAudioOpener struct{}

// NewPortAudioOpener returns an opener for live microphone capture.
func NewPortAudioOpener() *PortAudioOpener {
	return &PortAudioOpener{}
}

// Open resolves the input device and checks that it can honor the exact
// sample rate and buffer size before the stream is opened.
func (o *PortAudioOpener) Open(p StreamParams) (Source, error) {
	if p.SampleRate <= 0 || p.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("%w: sample rate %.0f Hz, %d frames per buffer",
			ErrUnsupportedConfig, p.SampleRate, p.FramesPerBuffer)
	}

	device, err := InputDevice(p.DeviceID)
	if err != nil {
		return nil, err
	}

	latency := device.DefaultHighInputLatency
	if p.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	s := &paSource{
		buf:  make([]float32, p.FramesPerBuffer),
		done: make(chan struct{}),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: p.FramesPerBuffer,
		SampleRate:      p.SampleRate,
	}

	if err := paLibIsFormatSupported(params, s.processInputStream); err != nil {
		return nil, fmt.Errorf("%w: %.0f Hz mono on %q: %v",
			ErrUnsupportedConfig, p.SampleRate, device.Name, err)
	}

	stream, err := portaudio.OpenStream(params, s.processInputStream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedConfig, err)
	}
	s.stream = stream

	log.Debugf("Opened input %q at %.0f Hz, %d frames per buffer, latency %v",
		device.Name, p.SampleRate, p.FramesPerBuffer, latency)

	return s, nil
}

// paSource is a running PortAudio input stream.
type paSource struct {
	stream  *portaudio.Stream
	deliver DeliverFunc
	buf     []float32
	started atomic.Bool

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (s *paSource) Start(deliver DeliverFunc) error {
	if s.deliver != nil {
		return errors.New("input stream already started")
	}
	s.deliver = deliver

	if err := s.stream.Start(); err != nil {
		s.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	s.started.Store(true)
	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (s *paSource) processInputStream(in []float32) {
	n := copy(s.buf, in)
	s.deliver(s.buf[:n], time.Now())
}

func (s *paSource) Wait() error {
	<-s.done
	return nil
}

// Close stops the stream, waiting for a running callback to return, and
// releases the device.
func (s *paSource) Close() error {
	s.closeOnce.Do(func() {
		if s.started.Load() {
			if err := s.stream.Stop(); err != nil {
				s.closeErr = err
			}
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		close(s.done)
	})
	return s.closeErr
}
