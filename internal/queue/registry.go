package queue

import (
	"maps"
	"slices"
	"sync"
)

// Queue names, one per lookup kind.
const (
	NameGeocode  = "geocode"
	NameBoundary = "geocodeBoundary"
	NamePoint    = "geocodePoint"
)

// Factory builds the queue for a name on first use.
type Factory func(name string) *Queue

// Registry owns the named queues of one orchestrator.
type Registry struct {
	factory Factory

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry creates an empty registry that builds queues with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, queues: make(map[string]*Queue)}
}

// Enqueue routes e to the named queue, creating the queue if needed.
func (r *Registry) Enqueue(name string, e *Entry) *Queue {
	q := r.ensure(name)
	q.Enqueue(e)
	return q
}

// Get returns the named queue if it exists.
func (r *Registry) Get(name string) (*Queue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	return q, ok
}

// Stats reports every live queue by name.
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	queues := slices.Collect(maps.Values(r.queues))
	r.mu.Unlock()

	out := make(map[string]Stats, len(queues))
	for _, q := range queues {
		out[q.Name()] = q.Stats()
	}
	return out
}

// ResetAll resets every queue and forgets them. Queues are recreated lazily
// on the next Enqueue.
func (r *Registry) ResetAll() {
	for _, q := range r.drain() {
		q.Reset()
	}
}

// Close resets every queue and blocks until their in-flight transport calls
// have returned.
func (r *Registry) Close() {
	queues := r.drain()
	for _, q := range queues {
		q.Reset()
	}
	for _, q := range queues {
		q.Wait()
	}
}

func (r *Registry) drain() map[string]*Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	queues := r.queues
	r.queues = make(map[string]*Queue)
	return queues
}

// Wait blocks until every queue's in-flight transport calls have returned.
func (r *Registry) Wait() {
	r.mu.Lock()
	queues := slices.Collect(maps.Values(r.queues))
	r.mu.Unlock()

	for _, q := range queues {
		q.Wait()
	}
}

func (r *Registry) ensure(name string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	if !ok {
		q = r.factory(name)
		r.queues[name] = q
	}
	return q
}
