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
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// Name of the dispatcher in metrics and logs
	DispatcherName = "transport"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Name returns the name of the dispatcher
func (t *Transport) Name() string {
	return DispatcherName
}

// DispatchDue moves scheduled messages which are due into the ready table
// of their queue, for every queue in the schema, and notifies listeners.
// Each message is moved once, even when called concurrently. It returns
// the number of messages moved.
func (t *Transport) DispatchDue(ctx context.Context) (int, error) {
	names, err := t.catalog(ctx)
	if err != nil {
		return 0, err
	}

	var result error
	var total int
	for _, name := range names {
		child, endspan := otel.StartSpan(t.opts.tracer, ctx, "dispatch."+name, attribute.String("queue", name))
		n, err := t.dispatchQueue(child, name)
		endspan(err)
		total += n
		if err != nil {
			result = errors.Join(result, fmt.Errorf("queue %q: %w", name, err))
		}
	}
	if total > 0 {
		t.opts.metrics.AddDispatched(DispatcherName, total)
		t.logger().Debug("dispatched", zap.Int("count", total))
	}
	return total, result
}

// PurgeExpired deletes messages past their keep time from every queue in
// the schema, and returns the number deleted
func (t *Transport) PurgeExpired(ctx context.Context) (int, error) {
	names, err := t.catalog(ctx)
	if err != nil {
		return 0, err
	}
	conn, err := t.connection()
	if err != nil {
		return 0, err
	}

	var result error
	var total int
	for _, name := range names {
		var n schema.RowCount
		if err := conn.List(ctx, &n, schema.ExpiredRequest{Queue: name}); err != nil {
			result = errors.Join(result, fmt.Errorf("queue %q: %w", name, err))
		}
		total += int(n)
	}
	if total > 0 {
		t.opts.metrics.AddPurged(total)
		t.logger().Debug("purged", zap.Int("count", total))
	}
	return total, result
}

// QueueDepths returns the number of ready and scheduled messages in every
// queue in the schema
func (t *Transport) QueueDepths(ctx context.Context) ([]schema.QueueDepth, error) {
	names, err := t.catalog(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}

	result := make([]schema.QueueDepth, 0, len(names))
	for _, name := range names {
		var depth schema.QueueDepth
		if err := conn.Get(ctx, &depth, schema.QueueName(name)); err != nil {
			if pg.IsNotExists(err) {
				continue
			}
			return nil, err
		}
		result = append(result, depth)
	}
	return result, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// Return the queues which have tables in the schema, which includes
// queues registered by other processes
func (t *Transport) catalog(ctx context.Context) ([]string, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	var list schema.QueueList
	if err := conn.List(ctx, &list, schema.QueueListRequest{}); err != nil {
		return nil, err
	}
	return list.Body, nil
}

// Move due messages in batches until fewer than a batch remain
func (t *Transport) dispatchQueue(ctx context.Context, name string) (int, error) {
	conn, err := t.queueConnection(name)
	if err != nil {
		return 0, err
	}
	var total int
	for {
		var moved schema.RowCount
		if err := conn.Tx(ctx, func(conn pg.Conn) error {
			if err := conn.List(ctx, &moved, schema.DueRequest{Queue: name, Limit: schema.DefaultBatchSize}); err != nil {
				return err
			}
			if moved == 0 {
				return nil
			}
			return conn.Exec(ctx, queries.Get("pgbus.notify"))
		}); err != nil {
			return total, err
		}
		total += int(moved)
		if int(moved) < schema.DefaultBatchSize {
			return total, nil
		}
	}
}

