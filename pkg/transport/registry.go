package transport

import (
	"sort"
	"sync/atomic"

	// Packages
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Registry holds the queues of one transport, keyed by corrected name.
// Queues are created and marked during configuration, from one goroutine.
// Once the transport runs the registry is frozen, and may then be read
// from any goroutine.
type Registry struct {
	resolver schema.Resolver
	schema   string
	queues   map[string]*Queue
	frozen   atomic.Bool
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newRegistry(resolver schema.Resolver, schemaName string) *Registry {
	return &Registry{
		resolver: resolver,
		schema:   schemaName,
		queues:   make(map[string]*Queue),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// GetOrCreate returns the queue for a name, creating it when no queue has
// the same corrected name. Equivalent names return the same queue.
func (r *Registry) GetOrCreate(raw string) (*Queue, error) {
	name, err := r.resolver.Correct(raw)
	if err != nil {
		return nil, err
	}
	if q, exists := r.queues[name]; exists {
		return q, nil
	}
	if r.frozen.Load() {
		return nil, schema.ErrConfiguration.Withf("cannot add queue %q after the transport has started", name)
	}
	q := newQueue(raw, name, r.schema)
	r.queues[name] = q
	return q, nil
}

// MarkListener marks a queue as received by this process
func (r *Registry) MarkListener(q *Queue) {
	q.listener = true
}

// MarkSubscriber marks a queue as a publishing destination
func (r *Registry) MarkSubscriber(q *Queue) {
	q.subscriber = true
}

// Get returns a queue by raw or corrected name, or nil
func (r *Registry) Get(raw string) *Queue {
	name, err := r.resolver.Correct(raw)
	if err != nil {
		return nil
	}
	return r.queues[name]
}

// Queues returns all queues sorted by corrected name
func (r *Registry) Queues() []*Queue {
	result := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		result = append(result, q)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].endpointName < result[j].endpointName
	})
	return result
}

// Listeners returns the listener queues sorted by corrected name
func (r *Registry) Listeners() []*Queue {
	var result []*Queue
	for _, q := range r.Queues() {
		if q.listener {
			result = append(result, q)
		}
	}
	return result
}

// Len returns the number of queues
func (r *Registry) Len() int {
	return len(r.queues)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (r *Registry) freeze() {
	r.frozen.Store(true)
}

func (r *Registry) thaw() {
	r.frozen.Store(false)
}
