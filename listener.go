package pg

import (
	"context"
	"errors"
	"sync"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	types "github.com/mutablelogic/go-pgbus/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Listener receives notifications sent with NOTIFY or pg_notify on a
// dedicated connection, which is opened on the first call to Listen
type Listener interface {
	// Listen for notifications on a channel
	Listen(context.Context, string) error

	// Block until a notification is received, or the context is done
	WaitForNotification(context.Context) (*Notification, error)

	// Close the connection
	Close(context.Context) error
}

// Notification is a message received on a channel
type Notification struct {
	Channel string
	Payload []byte
}

type listener struct {
	sync.Mutex
	config *pgx.ConnConfig
	conn   *pgx.Conn
}

var _ Listener = (*listener)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newListener(config *pgx.ConnConfig) *listener {
	return &listener{config: config}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (l *listener) Listen(ctx context.Context, channel string) error {
	l.Lock()
	defer l.Unlock()

	if channel == "" {
		return ErrBadParameter.With("missing channel")
	}
	if l.conn == nil {
		conn, err := pgx.ConnectConfig(ctx, l.config)
		if err != nil {
			return errors.Join(ErrConnection.With("open listener"), err)
		}
		l.conn = conn
	}
	if _, err := l.conn.Exec(ctx, "LISTEN "+types.DoubleQuote(channel)); err != nil {
		return pgerror(err)
	}
	return nil
}

// WaitForNotification does not hold the lock while waiting, so it needs to
// be called from a single goroutine only
func (l *listener) WaitForNotification(ctx context.Context) (*Notification, error) {
	l.Lock()
	conn := l.conn
	l.Unlock()
	if conn == nil {
		return nil, ErrBadParameter.With("listener is not listening")
	}

	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		return nil, err
	}
	return &Notification{Channel: n.Channel, Payload: []byte(n.Payload)}, nil
}

func (l *listener) Close(ctx context.Context) error {
	l.Lock()
	defer l.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	return conn.Close(ctx)
}
