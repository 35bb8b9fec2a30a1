package transport

import (
	"context"
	"errors"
	"net/url"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	bus "github.com/mutablelogic/go-pgbus/pkg/bus"
	otel "github.com/mutablelogic/go-pgbus/pkg/otel"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	attribute "go.opentelemetry.io/otel/attribute"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Send stores a message in a queue. A message with a scheduled time in the
// future goes to the scheduled table; otherwise it is ready at once, and
// listeners are notified when the transaction commits. The tables are
// created if they do not exist.
func (t *Transport) Send(ctx context.Context, queue string, e *schema.Envelope) error {
	if e == nil {
		return pg.ErrBadParameter.With("nil envelope")
	}
	return t.SendBatch(ctx, queue, []*schema.Envelope{e})
}

// SendBatch stores messages in a queue in one transaction
func (t *Transport) SendBatch(ctx context.Context, queue string, envelopes []*schema.Envelope) (err error) {
	name, err := t.registry.resolver.Correct(queue)
	if err != nil {
		return err
	}
	if len(envelopes) == 0 {
		return nil
	}

	ctx, endspan := otel.StartSpan(t.opts.tracer, ctx, "send."+name,
		attribute.String("queue", name),
		attribute.Int("count", len(envelopes)),
	)
	defer func() { endspan(err) }()

	for _, e := range envelopes {
		if e == nil {
			return pg.ErrBadParameter.With("nil envelope")
		}
		t.prepare(name, e)
	}

	err = t.send(ctx, name, envelopes)
	if pg.IsNotExists(err) {
		if err := t.ProvisionQueue(ctx, name); err != nil {
			return err
		}
		err = t.send(ctx, name, envelopes)
	}
	if err != nil {
		return err
	}

	t.opts.metrics.AddSent(name, len(envelopes))
	t.logger().Debug("sent", zap.String("queue", name), zap.Int("count", len(envelopes)))
	return nil
}

// SendTo stores a message in the queue at an address of this transport
func (t *Transport) SendTo(ctx context.Context, uri *url.URL, e *schema.Envelope) error {
	schemaName, queue, err := ParseQueueURI(uri)
	if err != nil {
		return err
	}
	if schemaName != t.settings.Schema() {
		return schema.ErrConfiguration.Withf("address %v is not in schema %q", uri, t.settings.Schema())
	}
	return t.Send(ctx, queue, e)
}

// Publish sends a message to every address routed for its type which this
// transport serves, and returns the number of queues it was sent to
func (t *Transport) Publish(ctx context.Context, options *bus.Options, e *schema.Envelope) (int, error) {
	if e == nil {
		return 0, pg.ErrBadParameter.With("nil envelope")
	}
	var result error
	var sent int
	for _, uri := range options.RoutesFor(e.MessageType) {
		if uri.Scheme != t.Protocol() {
			continue
		}
		msg := *e
		if err := t.SendTo(ctx, uri, &msg); err != nil {
			result = errors.Join(result, err)
		} else {
			sent++
		}
	}
	return sent, result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// Apply the subscriber delay and keep time of a registered queue
func (t *Transport) prepare(name string, e *schema.Envelope) {
	now := t.opts.clock.Now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	q := t.registry.queues[name]
	if q != nil && q.delay > 0 && e.ScheduledTime == nil {
		at := now.Add(q.delay)
		e.ScheduledTime = &at
	}
	if q != nil && q.keepFor > 0 && e.KeepUntil == nil {
		until := now.Add(q.keepFor)
		e.KeepUntil = &until
	}
	if e.ScheduledTime != nil && !e.ScheduledTime.After(now) {
		e.ScheduledTime = nil
	}
}

func (t *Transport) send(ctx context.Context, name string, envelopes []*schema.Envelope) error {
	conn, err := t.queueConnection(name)
	if err != nil {
		return err
	}
	return conn.Tx(ctx, func(conn pg.Conn) error {
		ready := false
		if err := conn.Bulk(ctx, func(conn pg.Conn) error {
			for _, e := range envelopes {
				if e.ScheduledTime == nil {
					ready = true
				}
				if err := conn.Insert(ctx, nil, e); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
		if !ready {
			return nil
		}
		return conn.Exec(ctx, queries.Get("pgbus.notify"))
	})
}
