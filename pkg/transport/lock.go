package transport

import (
	"context"

	// Packages
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// LockHolder returns the backend process which holds the scheduled job
// lock for the schema, or pg.ErrNotFound when nobody holds it
func (t *Transport) LockHolder(ctx context.Context) (*schema.LockHolder, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	holder := schema.LockHolder{Key: t.settings.ScheduledJobLockID()}
	if err := conn.Get(ctx, &holder, holder); err != nil {
		return nil, err
	}
	return &holder, nil
}
