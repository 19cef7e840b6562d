// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes captured mono audio to a WAV file. Chunks are copied off
// the capture thread into a bounded queue and encoded on the recorder's own
// goroutine; when the queue is full the chunk is dropped.
type Recorder struct {
	path     string
	bitDepth int

	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer // Reusable buffer for format conversion

	chunks  chan []float32
	free    chan []float32
	dropped atomic.Uint64

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
	writeErr  atomic.Value
}

// RecordingFileName returns the default recording name for t,
// recording-DD-MM-YYYY-HHMMSS.wav.
func RecordingFileName(t time.Time) string {
	return "recording-" + t.UTC().Format("02-01-2006-150405") + ".wav"
}

// StartRecording creates path (and its directory) and starts the encoder
// goroutine. chunkSize is the expected length of a delivered chunk and queue
// the number of chunks buffered before drops.
func StartRecording(path string, sampleRate, bitDepth, chunkSize, queue int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth: %d", bitDepth)
	}
	if sampleRate <= 0 || chunkSize <= 0 || queue <= 0 {
		return nil, fmt.Errorf("invalid recording parameters: rate %d, chunk %d, queue %d",
			sampleRate, chunkSize, queue)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:       path,
		bitDepth:   bitDepth,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			Data:           make([]int, chunkSize),
			SourceBitDepth: bitDepth,
		},
		chunks: make(chan []float32, queue),
		free:   make(chan []float32, queue),
	}
	for range queue {
		r.free <- make([]float32, chunkSize)
	}

	atomic.StoreInt32(&r.isRecording, 1)

	r.wg.Add(1)
	go r.run()

	return r, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.path
}

// Dropped returns the number of chunks discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Write queues a copy of samples for encoding. It never blocks.
func (r *Recorder) Write(samples []float32) {
	if atomic.LoadInt32(&r.isRecording) == 0 {
		return
	}

	var buf []float32
	select {
	case buf = <-r.free:
	default:
		r.dropped.Add(1)
		return
	}
	if cap(buf) < len(samples) {
		buf = make([]float32, len(samples))
	}
	buf = buf[:len(samples)]
	copy(buf, samples)

	select {
	case r.chunks <- buf:
	default:
		r.dropped.Add(1)
		r.free <- buf
	}
}

// Tap returns a DeliverFunc that records every chunk before passing it on.
func (r *Recorder) Tap(next DeliverFunc) DeliverFunc {
	return func(samples []float32, at time.Time) {
		r.Write(samples)
		next(samples, at)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	scale := float64(int64(1)<<(r.bitDepth-1)) - 1
	for chunk := range r.chunks {
		if cap(r.sampleBuf.Data) < len(chunk) {
			r.sampleBuf.Data = make([]int, len(chunk))
		}
		r.sampleBuf.Data = r.sampleBuf.Data[:len(chunk)]
		for i, s := range chunk {
			v := math.Max(-1, math.Min(1, float64(s)))
			r.sampleBuf.Data[i] = int(math.Round(v * scale))
		}
		r.free <- chunk

		if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
			if r.writeErr.Load() == nil {
				r.writeErr.Store(err)
				log.Errorf("Error writing to WAV file: %v", err)
			}
		}
	}
}

// Close stops accepting chunks, flushes the queue and finalizes the WAV
// header. It must not be called concurrently with Write.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		atomic.StoreInt32(&r.isRecording, 0)
		close(r.chunks)
		r.wg.Wait()

		var errs []error
		if err, ok := r.writeErr.Load().(error); ok {
			errs = append(errs, err)
		}
		if err := r.wavEncoder.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := r.outputFile.Close(); err != nil {
			errs = append(errs, err)
		}
		r.closeErr = errors.Join(errs...)

		if n := r.Dropped(); n > 0 {
			log.Warnf("Recording %s dropped %d chunks", r.path, n)
		}
	})
	return r.closeErr
}

// RecordingOpener wraps an Opener so that every opened source is recorded.
type RecordingOpener struct {
	Opener   Opener
	Recorder *Recorder
}

// Open opens the wrapped source and taps its delivery into the recorder.
func (o RecordingOpener) Open(p StreamParams) (Source, error) {
	src, err := o.Opener.Open(p)
	if err != nil {
		return nil, err
	}
	return &recordingSource{Source: src, recorder: o.Recorder}, nil
}

type recordingSource struct {
	Source
	recorder *Recorder
}

func (s *recordingSource) Start(deliver DeliverFunc) error {
	return s.Source.Start(s.recorder.Tap(deliver))
}
