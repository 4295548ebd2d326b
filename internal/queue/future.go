package queue

import (
	"context"
	"sync"

	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

// Future is the single-assignment result of one entry.
type Future struct {
	done chan struct{}
	once sync.Once
	loc  domain.Location
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the future is settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value. It must only be called after Done is closed.
func (f *Future) Result() (domain.Location, error) {
	return f.loc, f.err
}

// Wait blocks until the future settles or ctx is done. A ctx error is
// returned as-is and leaves the future pending.
func (f *Future) Wait(ctx context.Context) (domain.Location, error) {
	select {
	case <-f.done:
		return f.loc, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle records res once. Later calls are ignored.
func (f *Future) settle(res domain.Result) bool {
	settled := false
	f.once.Do(func() {
		if res.OK() {
			f.loc = res.Location
		} else {
			f.err = res.Err
			if f.err == nil {
				f.err = domain.ErrCancelled
			}
		}
		close(f.done)
		settled = true
	})
	return settled
}
