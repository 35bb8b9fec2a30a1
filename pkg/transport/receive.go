package transport

import (
	"context"
	"errors"
	"fmt"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	otel "github.com/mutablelogic/go-pgbus/pkg/otel"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	attribute "go.opentelemetry.io/otel/attribute"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Receive removes the next ready message from a listener queue and calls
// its handler in the same transaction. It returns false when the queue is
// empty. If the handler fails the message stays in the queue.
func (t *Transport) Receive(ctx context.Context, name string) (bool, error) {
	q := t.registry.Get(name)
	if q == nil || !q.listener {
		return false, schema.ErrConfiguration.Withf("%q is not a listener queue", name)
	} else if q.handler == nil {
		return false, schema.ErrConfiguration.Withf("queue %q has no handler", q.endpointName)
	}
	return t.receive(ctx, q)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) receive(ctx context.Context, q *Queue) (bool, error) {
	conn, err := t.connection()
	if err != nil {
		return false, err
	}

	var received bool
	var handled error
	err = conn.Tx(ctx, func(conn pg.Conn) error {
		var e schema.Envelope
		if err := conn.Delete(ctx, &e, schema.QueueName(q.endpointName)); err != nil {
			return err
		}
		received = true

		// Handle the message within a span
		child, endspan := otel.StartSpan(t.opts.tracer, ctx, "receive."+q.endpointName,
			attribute.String("queue", q.endpointName),
			attribute.String("id", e.ID.String()),
			attribute.String("type", e.MessageType),
		)
		start := t.opts.clock.Now()
		handled = runHandler(child, q.handler, &e)
		t.opts.metrics.ObserveHandled(q.endpointName, t.opts.clock.Now().Sub(start), handled)
		endspan(handled)
		return handled
	})
	switch {
	case !received && errors.Is(err, pg.ErrNotFound):
		return false, nil
	case received && handled != nil:
		return true, fmt.Errorf("queue %q: %w", q.endpointName, err)
	default:
		return received, err
	}
}

// Call the handler, returning a panic as an error
func runHandler(ctx context.Context, fn Handler, e *schema.Envelope) (errs error) {
	defer func() {
		if r := recover(); r != nil {
			errs = errors.Join(errs, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(ctx, e); err != nil {
		errs = errors.Join(errs, err)
	}
	if ctx.Err() != nil && !errors.Is(errs, ctx.Err()) {
		errs = errors.Join(errs, ctx.Err())
	}
	return errs
}
