package transport

import (
	"context"
	"errors"
	"fmt"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Provision creates the schema and the tables of every registered queue.
// It can run more than once, and from several processes at the same time.
func (t *Transport) Provision(ctx context.Context) error {
	conn, err := t.connection()
	if err != nil {
		return err
	}
	if err := execObjects(ctx, conn, "pgbus.schema_create"); err != nil {
		return fmt.Errorf("schema %q: %w", t.settings.Schema(), err)
	}

	// Create the tables of each queue
	var result error
	for _, q := range t.registry.Queues() {
		if err := t.ProvisionQueue(ctx, q.endpointName); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}

// ProvisionQueue creates the schema if needed, and the tables for one
// corrected queue name
func (t *Transport) ProvisionQueue(ctx context.Context, name string) error {
	conn, err := t.queueConnection(name)
	if err != nil {
		return err
	}
	if err := execObjects(ctx, conn, "pgbus.schema_create", "pgbus.queue_create", "pgbus.scheduled_create", "pgbus.scheduled_index"); err != nil {
		return fmt.Errorf("queue %q: %w", name, err)
	}
	t.logger().Debug("provisioned queue", zap.String("queue", name))
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// Execute object statements in order. An object which another process
// created at the same time is not an error.
func execObjects(ctx context.Context, conn pg.Conn, keys ...string) error {
	for _, key := range keys {
		if err := conn.Exec(ctx, objects.Get(key)); err != nil && !pg.IsExists(err) {
			return err
		}
	}
	return nil
}
