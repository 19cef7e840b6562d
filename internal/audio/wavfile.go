// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV format tags accepted by the decoder.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVOpener opens a PCM WAV file as a capture source. Chunks are delivered
// as fast as the consumer accepts them, stamped with synthetic capture times
// starting at StartTime.
type WAVOpener struct {
	Path string
	// StartTime is the capture time of the first sample. Zero means the
	// time Start is called.
	StartTime time.Time
}

// NewWAVOpener returns an opener for the WAV file at path.
func NewWAVOpener(path string) *WAVOpener {
	return &WAVOpener{Path: path}
}

// Open decodes the file header. A file whose sample rate differs from the
// requested rate is rejected rather than resampled.
func (o *WAVOpener) Open(p StreamParams) (Source, error) {
	if p.FramesPerBuffer <= 0 {
		return nil, fmt.Errorf("%w: %d frames per buffer", ErrUnsupportedConfig, p.FramesPerBuffer)
	}

	file, err := os.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", o.Path, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedConfig, o.Path)
	}
	decoder.ReadInfo()

	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		file.Close()
		return nil, fmt.Errorf("%w: WAV format tag %d is not PCM", ErrUnsupportedConfig, decoder.WavAudioFormat)
	}
	if float64(decoder.SampleRate) != p.SampleRate {
		file.Close()
		return nil, fmt.Errorf("%w: %s is %d Hz, session needs %.0f Hz",
			ErrUnsupportedConfig, o.Path, decoder.SampleRate, p.SampleRate)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 || (bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32) {
		file.Close()
		return nil, fmt.Errorf("%w: %d channels at %d bits", ErrUnsupportedConfig, channels, bitDepth)
	}

	log.Debugf("Opened %s: %d Hz, %d channels, %d bits", o.Path, decoder.SampleRate, channels, bitDepth)

	return &wavSource{
		file:       file,
		decoder:    decoder,
		sampleRate: p.SampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		startTime:  o.StartTime,
		pcm: &goaudio.IntBuffer{
			Format:         decoder.Format(),
			Data:           make([]int, p.FramesPerBuffer*channels),
			SourceBitDepth: bitDepth,
		},
		mono: make([]float32, p.FramesPerBuffer),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// wavSource reads a WAV file on its own goroutine.
type wavSource struct {
	file       *os.File
	decoder    *wav.Decoder
	sampleRate float64
	channels   int
	bitDepth   int
	startTime  time.Time

	pcm  *goaudio.IntBuffer
	mono []float32

	startOnce sync.Once
	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
	err       error
	closeErr  error
}

func (s *wavSource) Start(deliver DeliverFunc) error {
	started := false
	s.startOnce.Do(func() {
		started = true
		if s.startTime.IsZero() {
			s.startTime = time.Now()
		}
		go s.run(deliver)
	})
	if !started {
		return errors.New("WAV source already started")
	}
	return nil
}

func (s *wavSource) run(deliver DeliverFunc) {
	defer close(s.done)

	var consumed int64
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		n, err := s.decoder.PCMBuffer(s.pcm)
		if err != nil {
			s.err = fmt.Errorf("failed to decode WAV data: %w", err)
			return
		}
		frames := n / s.channels
		if frames == 0 {
			return
		}

		mixDown(s.mono[:frames], s.pcm.Data[:frames*s.channels], s.channels, s.bitDepth)
		consumed += int64(frames)

		at := s.startTime.Add(time.Duration(float64(consumed-1) / s.sampleRate * float64(time.Second)))
		deliver(s.mono[:frames], at)
	}
}

func (s *wavSource) Wait() error {
	<-s.done
	return s.err
}

// Close stops the reader goroutine and closes the file. A goroutine blocked
// inside deliver must be released by the consumer before Close returns.
func (s *wavSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		started := true
		s.startOnce.Do(func() {
			started = false
			close(s.done)
		})
		if started {
			<-s.done
		}
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

// mixDown averages interleaved integer PCM into mono samples in [-1, 1].
// 8-bit WAV data is unsigned; wider depths are signed.
func mixDown(dst []float32, interleaved []int, channels, bitDepth int) {
	offset := 0.0
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		offset = 128
	}
	norm := 1 / (scale * float64(channels))

	for i := range dst {
		var sum float64
		base := i * channels
		for c := range channels {
			sum += float64(interleaved[base+c]) - offset
		}
		dst[i] = float32(sum * norm)
	}
}
