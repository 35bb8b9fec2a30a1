package transport

import (
	"errors"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// ListenerConfiguration configures how a queue is received. Mistakes are
// collected and returned by Err, and by Run.
type ListenerConfiguration struct {
	queue *Queue
}

// SubscriberConfiguration configures how messages are sent to a queue
type SubscriberConfiguration struct {
	queue *Queue
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - LISTENER

func (c *ListenerConfiguration) Queue() *Queue {
	return c.queue
}

// Handle sets the function called for each message
func (c *ListenerConfiguration) Handle(fn Handler) *ListenerConfiguration {
	if fn == nil {
		c.queue.listenErr = errors.Join(c.queue.listenErr, pg.ErrBadParameter.Withf("queue %q: nil handler", c.queue.endpointName))
	} else {
		c.queue.handler = fn
	}
	return c
}

// Workers sets the number of concurrent receivers
func (c *ListenerConfiguration) Workers(n int) *ListenerConfiguration {
	if n < 1 {
		c.queue.listenErr = errors.Join(c.queue.listenErr, pg.ErrBadParameter.Withf("queue %q: workers must be at least one", c.queue.endpointName))
	} else {
		c.queue.workers = n
	}
	return c
}

// PollingInterval sets how often the queue is checked when no
// notification arrives
func (c *ListenerConfiguration) PollingInterval(d time.Duration) *ListenerConfiguration {
	if d < time.Millisecond {
		c.queue.listenErr = errors.Join(c.queue.listenErr, pg.ErrBadParameter.Withf("queue %q: polling interval must be at least 1ms", c.queue.endpointName))
	} else {
		c.queue.pollingInterval = d
	}
	return c
}

// Err returns the receiving mistakes made so far for the queue
func (c *ListenerConfiguration) Err() error {
	return c.queue.listenErr
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - SUBSCRIBER

func (c *SubscriberConfiguration) Queue() *Queue {
	return c.queue
}

// Delay schedules every message sent to the queue this far in the future
func (c *SubscriberConfiguration) Delay(d time.Duration) *SubscriberConfiguration {
	if d < 0 {
		c.queue.subscribeErr = errors.Join(c.queue.subscribeErr, pg.ErrBadParameter.Withf("queue %q: negative delay", c.queue.endpointName))
	} else {
		c.queue.delay = d
	}
	return c
}

// KeepFor expires messages which have not been received within d
func (c *SubscriberConfiguration) KeepFor(d time.Duration) *SubscriberConfiguration {
	if d < 0 {
		c.queue.subscribeErr = errors.Join(c.queue.subscribeErr, pg.ErrBadParameter.Withf("queue %q: negative keep time", c.queue.endpointName))
	} else {
		c.queue.keepFor = d
	}
	return c
}

// Err returns the routing mistakes made so far for the queue
func (c *SubscriberConfiguration) Err() error {
	return c.queue.subscribeErr
}
