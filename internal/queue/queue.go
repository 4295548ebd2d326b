// Package queue schedules geocode lookups against a provider with a
// process-wide concurrency ceiling, FIFO admission, and cooperative
// cancellation.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
	"github.com/couchcryptid/geocode-orchestrator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// MaxConcurrent is the default ceiling on in-flight transport calls per queue.
const MaxConcurrent = 6

// Transport performs one provider request.
type Transport interface {
	Send(ctx context.Context, url string) ([]byte, error)
	// Abortable reports whether cancelling ctx tears down an issued request.
	Abortable() bool
}

// Codec builds provider URLs and parses provider responses.
type Codec interface {
	Build(spec domain.QuerySpec) (string, error)
	Parse(spec domain.QuerySpec, body []byte) domain.Result
}

// Options configures a Queue.
type Options struct {
	Codec         Codec
	Transport     Transport
	MaxConcurrent int
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Pending int `json:"pending"`
	Active  int `json:"active"`
}

// Queue admits entries in FIFO order and keeps at most MaxConcurrent of them
// in flight. Every state transition happens under mu.
type Queue struct {
	name          string
	codec         Codec
	transport     Transport
	maxConcurrent int
	clock         clockwork.Clock
	logger        *slog.Logger
	metrics       *observability.Metrics

	mu        sync.Mutex
	pending   []*Entry
	active    []*Entry
	inDequeue bool
	recheck   clockwork.Timer
	// recheckSeq invalidates re-checks that fire after Reset.
	recheckSeq uint64

	inflight sync.WaitGroup
}

// New creates a named queue.
func New(name string, opts Options) *Queue {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = MaxConcurrent
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		name:          name,
		codec:         opts.Codec,
		transport:     opts.Transport,
		maxConcurrent: opts.MaxConcurrent,
		clock:         opts.Clock,
		logger:        opts.Logger.With("queue", name),
		metrics:       opts.Metrics,
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue appends e and immediately tries to dispatch.
func (q *Queue) Enqueue(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e.queue = q
	e.enqueuedAt = q.clock.Now()
	q.pending = append(q.pending, e)
	q.dequeueLocked()
	q.observeLocked()
}

// Cancel aborts e if its transport allows it and completes it as cancelled.
// Cancelling a completed entry is a no-op.
func (q *Queue) Cancel(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelLocked(e)
	q.observeLocked()
}

// Reset cancels every pending and active entry and empties the queue.
// Results of non-abortable transports still in flight are discarded.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopRecheckLocked()
	entries := slices.Concat(q.pending, q.active)
	q.pending = nil
	q.active = nil
	for _, e := range entries {
		q.cancelLocked(e)
	}
	q.observeLocked()
	q.logger.Debug("queue reset", "cancelled", len(entries))
}

// Stats reports the number of live pending and active entries.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

// Wait blocks until every transport call started by this queue has returned.
func (q *Queue) Wait() {
	q.inflight.Wait()
}

func (q *Queue) statsLocked() Stats {
	s := Stats{Active: len(q.active)}
	for _, e := range q.pending {
		if !e.completed {
			s.Pending++
		}
	}
	return s
}

// dequeueLocked admits pending entries while slots are free. It does nothing
// while another pass is running or a re-check is scheduled. A pass that ends
// with work pending has a full ceiling, so the re-check is armed by the next
// completion rather than here; arming it now would only poll.
func (q *Queue) dequeueLocked() {
	if q.inDequeue || q.recheck != nil {
		return
	}
	q.inDequeue = true
	defer func() { q.inDequeue = false }()

	for len(q.pending) > 0 && len(q.active) < q.maxConcurrent {
		e := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		if e.completed {
			continue
		}
		q.dispatchLocked(e)
	}
}

// scheduleDequeueLocked arranges a deferred dequeue pass if work is waiting
// and none is scheduled yet.
func (q *Queue) scheduleDequeueLocked() {
	if q.recheck != nil || len(q.pending) == 0 {
		return
	}
	seq := q.recheckSeq
	q.recheck = q.clock.AfterFunc(0, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if seq != q.recheckSeq {
			return
		}
		q.recheck = nil
		q.recheckSeq++
		q.dequeueLocked()
		q.observeLocked()
	})
}

func (q *Queue) stopRecheckLocked() {
	if q.recheck != nil {
		q.recheck.Stop()
		q.recheck = nil
	}
	q.recheckSeq++
}

func (q *Queue) dispatchLocked(e *Entry) {
	if q.metrics != nil {
		q.metrics.QueueWait.WithLabelValues(q.name).Observe(q.clock.Since(e.enqueuedAt).Seconds())
	}

	url, err := q.codec.Build(e.spec)
	if err != nil {
		if q.metrics != nil {
			q.metrics.DispatchesRejected.WithLabelValues(q.name).Inc()
		}
		q.completeLocked(e, domain.Failure(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.abort = cancel
	e.fireAndForget = !q.transport.Abortable()
	q.active = append(q.active, e)

	q.inflight.Add(1)
	go q.send(ctx, e, url)
}

// send runs the transport outside the lock and feeds the outcome back
// through complete.
func (q *Queue) send(ctx context.Context, e *Entry, url string) {
	defer q.inflight.Done()

	start := q.clock.Now()
	body, err := q.transport.Send(ctx, url)
	elapsed := q.clock.Since(start)

	var res domain.Result
	if err != nil {
		res = domain.Failure(transportError(err))
	} else {
		res = q.codec.Parse(e.spec, body)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.TransportDuration.WithLabelValues(q.name).Observe(elapsed.Seconds())
	}
	q.releaseLocked(e)
	q.completeLocked(e, res)
	q.scheduleDequeueLocked()
	q.observeLocked()
}

func (q *Queue) releaseLocked(e *Entry) {
	if i := slices.Index(q.active, e); i >= 0 {
		q.active = slices.Delete(q.active, i, i+1)
	}
	if e.abort != nil {
		e.abort()
		e.abort = nil
	}
}

func (q *Queue) cancelLocked(e *Entry) {
	if e.completed {
		return
	}
	if !e.fireAndForget && e.abort != nil {
		e.abort()
		e.abort = nil
	}
	q.completeLocked(e, domain.Failure(domain.ErrCancelled))
}

// completeLocked settles e exactly once and schedules a re-check so a freed
// slot or skipped entry does not stall the queue.
func (q *Queue) completeLocked(e *Entry, res domain.Result) {
	if e.completed {
		return
	}
	e.completed = true

	outcome := domain.ErrorKind(res.Err)
	if q.metrics != nil {
		q.metrics.GeocodeRequests.WithLabelValues(q.name, outcome).Inc()
	}
	if res.Err != nil {
		q.logger.Debug("lookup failed", "outcome", outcome, "error", res.Err)
	}
	e.future.settle(res)
	q.scheduleDequeueLocked()
}

func (q *Queue) observeLocked() {
	if q.metrics == nil {
		return
	}
	s := q.statsLocked()
	q.metrics.QueuePending.WithLabelValues(q.name).Set(float64(s.Pending))
	q.metrics.QueueActive.WithLabelValues(q.name).Set(float64(s.Active))
}

func transportError(err error) error {
	if domain.ErrorKind(err) == "error" {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	return err
}
