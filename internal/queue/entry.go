package queue

import (
	"context"
	"time"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Entry is one lookup moving through a queue: pending, then active, then
// completed. All fields except spec and future are guarded by the owning
// queue's mutex.
type Entry struct {
	spec   domain.QuerySpec
	future *Future

	queue      *Queue
	enqueuedAt time.Time
	abort      context.CancelFunc
	// fireAndForget marks entries whose transport cannot be aborted.
	fireAndForget bool
	completed     bool
}

// NewEntry creates a pending entry for spec.
func NewEntry(spec domain.QuerySpec) *Entry {
	return &Entry{spec: spec, future: newFuture()}
}

// Spec returns the query the entry resolves.
func (e *Entry) Spec() domain.QuerySpec { return e.spec }

// Future returns the entry's result handle.
func (e *Entry) Future() *Future { return e.future }

// Cancel cancels the entry in the queue it was enqueued on. It is a no-op for
// entries that were never enqueued or are already complete. Call it only
// after Enqueue has returned.
func (e *Entry) Cancel() {
	if e.queue != nil {
		e.queue.Cancel(e)
	}
}
