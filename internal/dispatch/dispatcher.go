// SPDX-License-Identifier: MIT
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
	"github.com/alice-iceberg/SoundFeatures/internal/audio"
	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/alice-iceberg/SoundFeatures/internal/observe"
)

// DefaultQueueSize is the number of frames buffered between capture and
// analysis.
const DefaultQueueSize = 8

// Dispatcher opens capture sessions.
type Dispatcher struct {
	opener       audio.Opener
	queueSize    int
	deviceID     int
	lowLatency   bool
	backpressure bool
	metrics      *observe.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets the frame queue capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithDevice selects the input device (-1 for the system default) and its
// latency mode.
func WithDevice(id int, lowLatency bool) Option {
	return func(d *Dispatcher) {
		d.deviceID = id
		d.lowLatency = lowLatency
	}
}

// WithBackpressure makes the capture side wait for room in the frame queue
// instead of dropping the oldest frame. Only suitable for sources that can
// be paused, such as files.
func WithBackpressure() Option {
	return func(d *Dispatcher) {
		d.backpressure = true
	}
}

// WithMetrics sets the metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// New returns a Dispatcher that captures through opener.
func New(opener audio.Opener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		opener:    opener,
		queueSize: DefaultQueueSize,
		deviceID:  -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.Noop()
	}
	return d
}

// Start validates cfg, opens the capture device and starts the analysis
// goroutine. extractors are registered before the first frame. Results are
// handed to emit, which must not block.
//
// A device that cannot honor cfg fails with an error matching
// audio.ErrUnsupportedConfig. On every failure path the device is released.
// Cancelling ctx stops the session.
func (d *Dispatcher) Start(ctx context.Context, cfg StreamConfig, emit analysis.Emitter, extractors ...analysis.Extractor) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	windower, err := NewWindower(cfg)
	if err != nil {
		return nil, err
	}

	src, err := d.opener.Open(audio.StreamParams{
		DeviceID:        d.deviceID,
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.Hop(),
		LowLatency:      d.lowLatency,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:          cfg,
		source:       src,
		windower:     windower,
		queue:        newFrameQueue(d.queueSize),
		backpressure: d.backpressure,
		emit:         emit,
		metrics:      d.metrics,
		ctx:          sessCtx,
		cancel:       cancel,
		quit:         make(chan struct{}),
		eos:          make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.emitter = sessionEmitter{s}
	s.enqueue = s.pushFrame

	list := append([]analysis.Extractor(nil), extractors...)
	s.extractors.Store(&list)

	s.metrics.ActiveSessions.Add(context.Background(), 1)
	go s.watch()
	go s.run()

	if err := src.Start(s.deliver); err != nil {
		s.shutdown()
		<-s.done
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	log.Infof("Capture session started: %.0f Hz, frame %d, overlap %d, %d extractors",
		cfg.SampleRate, cfg.FrameSize, cfg.Overlap, len(list))

	return s, nil
}

// Session is a running capture stream with its analysis goroutine.
type Session struct {
	cfg          StreamConfig
	source       audio.Source
	windower     *Windower
	queue        *frameQueue
	backpressure bool
	emit         analysis.Emitter
	emitter      sessionEmitter
	enqueue      func(analysis.Frame)
	metrics      *observe.Metrics

	extractors atomic.Pointer[[]analysis.Extractor]
	mu         sync.Mutex // Serializes RegisterExtractor.

	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{} // Closed first when the session stops.
	eos      chan struct{} // Closed when the source has ended.
	done     chan struct{} // Closed when the analysis goroutine exits.

	stopped      atomic.Bool
	shutdownOnce sync.Once
	closeErr     error
	errMu        sync.Mutex
	err          error
	dropped      atomic.Uint64
}

// Config returns the session's stream configuration.
func (s *Session) Config() StreamConfig {
	return s.cfg
}

// RegisterExtractor attaches e. It is safe to call while frames flow; e
// receives every frame starting with the next one processed.
func (s *Session) RegisterExtractor(e analysis.Extractor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrSessionStopped
	}
	cur := *s.extractors.Load()
	next := make([]analysis.Extractor, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, e)
	s.extractors.Store(&next)

	log.Debugf("Registered extractor %s", e.Name())
	return nil
}

// Extractors returns the registered extractors in attachment order.
func (s *Session) Extractors() []analysis.Extractor {
	return append([]analysis.Extractor(nil), *s.extractors.Load()...)
}

// Dropped returns the number of frames discarded by the queue.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// Done is closed when the analysis goroutine has exited, either because
// the source ended or the session was stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the source's terminal error, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Stop releases the capture device, cancels the analysis goroutine and
// waits for it to exit until ctx expires. Results still in flight may be
// discarded. It is safe to call more than once.
func (s *Session) Stop(ctx context.Context) error {
	closeErr := s.shutdown()

	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for analysis to stop: %w", ctx.Err())
	}

	if closeErr != nil {
		return fmt.Errorf("failed to release capture device: %w", closeErr)
	}
	return nil
}

// shutdown stops delivery and releases the device exactly once. quit is
// closed before the source so that a delivery blocked on backpressure
// returns and the source can be closed.
func (s *Session) shutdown() error {
	s.shutdownOnce.Do(func() {
		s.stopped.Store(true)
		close(s.quit)
		s.closeErr = s.source.Close()
		s.cancel()
	})
	return s.closeErr
}

// deliver runs on the capture thread.
// Performance Critical (Hot Path):
// - No blocking in drop-oldest mode
// - Only the per-frame sample copy allocates
func (s *Session) deliver(samples []float32, at time.Time) {
	if s.stopped.Load() {
		return
	}
	s.windower.Push(samples, at, s.enqueue)
}

func (s *Session) pushFrame(f analysis.Frame) {
	s.metrics.FramesCaptured.Add(context.Background(), 1)

	if s.backpressure {
		if !s.queue.pushWait(f, s.quit) {
			s.dropped.Add(1)
			s.metrics.FramesDropped.Add(context.Background(), 1)
		}
		return
	}

	if n := s.queue.pushDropOldest(f); n > 0 {
		s.dropped.Add(uint64(n))
		s.metrics.FramesDropped.Add(context.Background(), int64(n))
		log.Debugf("Analysis behind, dropped %d frame(s) before frame %d", n, f.Index)
	}
}

// watch records the source's end. Wait returns at the latest when the
// source is closed by shutdown.
func (s *Session) watch() {
	err := s.source.Wait()
	if err != nil {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		log.Errorf("Capture source failed: %v", err)
	}
	close(s.eos)
}

// run is the analysis goroutine.
func (s *Session) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		s.shutdown()
		<-s.eos
		s.metrics.ActiveSessions.Add(context.Background(), -1)
		log.Debugf("Capture session finished")
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.queue.frames():
			s.process(f)
		case <-s.eos:
			for {
				select {
				case f := <-s.queue.frames():
					if s.stopped.Load() {
						return
					}
					s.process(f)
				default:
					return
				}
			}
		}
	}
}

// process runs every registered extractor on f, in attachment order.
func (s *Session) process(f analysis.Frame) {
	for _, e := range *s.extractors.Load() {
		if s.stopped.Load() {
			return
		}
		s.runExtractor(e, f)
	}
	s.metrics.FramesProcessed.Add(context.Background(), 1)
}

// runExtractor isolates a panicking extractor from the others.
func (s *Session) runExtractor(e analysis.Extractor, f analysis.Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Extractor %s panicked on frame %d: %v", e.Name(), f.Index, r)
			s.metrics.RecordExtractorPanic(context.Background(), e.Name())
		}
	}()

	start := time.Now()
	e.Process(f, s.emitter)
	s.metrics.RecordExtractor(context.Background(), e.Name(), time.Since(start))
}

// sessionEmitter counts sentinel results before handing them on.
type sessionEmitter struct {
	s *Session
}

func (e sessionEmitter) Emit(r analysis.Result) {
	if e.s.stopped.Load() {
		return
	}
	if ec, ok := r.(analysis.EdgeCaser); ok && ec.EdgeCase() {
		e.s.metrics.RecordEdgeCase(context.Background(), r.Feature())
		log.Debugf("Edge case in %s result at %s", r.Feature(), r.Time().Format(time.RFC3339Nano))
	}
	e.s.emit.Emit(r)
}
