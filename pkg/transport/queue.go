package transport

import (
	"context"
	"net/url"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Handler processes a message. Return nil on success, or an error to roll
// back and have the message delivered again.
type Handler func(context.Context, *schema.Envelope) error

// Queue is a named queue within a transport. The endpoint name is set
// when the queue is created and never changes; the listener and
// subscriber flags only change from false to true.
type Queue struct {
	name         string
	endpointName string
	uri          *url.URL
	listener     bool
	subscriber   bool

	// Listener configuration
	listenErr       error
	handler         Handler
	workers         int
	pollingInterval time.Duration

	// Subscriber configuration
	subscribeErr error
	delay        time.Duration
	keepFor      time.Duration
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newQueue(raw, endpointName, schemaName string) *Queue {
	return &Queue{
		name:         raw,
		endpointName: endpointName,
		uri:          QueueURI(schemaName, endpointName),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// QueueURI returns the address of a queue: postgresql://{schema}/{queue}
func QueueURI(schemaName, queue string) *url.URL {
	return &url.URL{
		Scheme: schema.Protocol,
		Host:   schemaName,
		Path:   "/" + queue,
	}
}

// ParseQueueURI returns the schema and queue of an address
func ParseQueueURI(uri *url.URL) (string, string, error) {
	if uri == nil || uri.Scheme != schema.Protocol {
		return "", "", schema.ErrConfiguration.Withf("not a %s address: %v", schema.Protocol, uri)
	}
	queue := uri.Path
	if len(queue) > 0 && queue[0] == '/' {
		queue = queue[1:]
	}
	if uri.Host == "" || queue == "" {
		return "", "", schema.ErrConfiguration.Withf("incomplete address: %v", uri)
	}
	return uri.Host, queue, nil
}

// Name returns the name as it was first requested
func (q *Queue) Name() string {
	return q.name
}

// EndpointName returns the corrected name, which names the tables
func (q *Queue) EndpointName() string {
	return q.endpointName
}

// URI returns a copy of the queue address
func (q *Queue) URI() *url.URL {
	uri := *q.uri
	return &uri
}

func (q *Queue) IsListener() bool {
	return q.listener
}

func (q *Queue) IsSubscriber() bool {
	return q.subscriber
}

// Workers returns the number of concurrent receivers
func (q *Queue) Workers() int {
	return q.workers
}

func (q *Queue) PollingInterval() time.Duration {
	return q.pollingInterval
}

// Delay returns the time messages sent to the queue wait before delivery
func (q *Queue) Delay() time.Duration {
	return q.delay
}

// KeepFor returns how long messages are kept before they expire, or zero
func (q *Queue) KeepFor() time.Duration {
	return q.keepFor
}

func (q *Queue) String() string {
	return q.uri.String()
}
