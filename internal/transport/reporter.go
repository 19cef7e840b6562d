// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/alice-iceberg/SoundFeatures/internal/analysis"
	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/alice-iceberg/SoundFeatures/internal/observe"
)

// DefaultQueueSize is the number of reports buffered before new ones are
// dropped.
const DefaultQueueSize = 256

// Reporter decouples extractors from sinks. Emit never blocks: reports go
// through a bounded queue and are dropped when it is full. A single
// goroutine drains the queue to every sink in order.
type Reporter struct {
	sinks   []Sink
	queue   chan Report
	metrics *observe.Metrics

	mu      sync.RWMutex // Guards closed against Emit racing Close.
	closed  bool
	dropped atomic.Uint64
	sent    atomic.Uint64
	wg      sync.WaitGroup
}

// NewReporter starts a reporter delivering to sinks. A non-positive
// queueSize selects DefaultQueueSize; a nil metrics disables metrics.
func NewReporter(queueSize int, metrics *observe.Metrics, sinks ...Sink) *Reporter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if metrics == nil {
		metrics = observe.Noop()
	}

	r := &Reporter{
		sinks:   sinks,
		queue:   make(chan Report, queueSize),
		metrics: metrics,
	}

	r.wg.Add(1)
	go r.run()
	return r
}

// Emit queues res for delivery. It implements analysis.Emitter.
func (r *Reporter) Emit(res analysis.Result) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- NewReport(res):
	default:
		n := r.dropped.Add(1)
		r.metrics.ReportsDropped.Add(context.Background(), 1)
		// Log the first drop and then every 100th to keep the log readable.
		if n == 1 || n%100 == 0 {
			log.Warnf("Report queue full, dropped %d report(s) so far", n)
		}
	}
}

// Dropped returns the number of reports discarded because the queue was full.
func (r *Reporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Sent returns the number of reports handed to all sinks.
func (r *Reporter) Sent() uint64 {
	return r.sent.Load()
}

func (r *Reporter) run() {
	defer r.wg.Done()

	for rep := range r.queue {
		for _, sink := range r.sinks {
			if err := sink.Report(rep); err != nil {
				r.metrics.RecordSinkError(context.Background(), sink.Name())
				log.Debugf("Sink %s failed to deliver %s report: %v", sink.Name(), rep.Tag, err)
				continue
			}
			r.metrics.RecordReport(context.Background(), sink.Name())
		}
		r.sent.Add(1)
	}
}

// Close stops accepting reports, delivers the ones already queued and
// closes every sink. It is safe to call more than once.
func (r *Reporter) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			log.Errorf("Failed to close sink %s: %v", sink.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure Reporter satisfies the interface at compile time.
var _ analysis.Emitter = (*Reporter)(nil)
