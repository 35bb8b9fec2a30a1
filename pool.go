package pg

import (
	"context"
	"errors"
	"strings"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	pgconn "github.com/jackc/pgx/v5/pgconn"
	pgxpool "github.com/jackc/pgx/v5/pgxpool"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// PoolConn is a connection pool. Statements run on pooled connections,
// while sessions and listeners each hold a dedicated connection of their own.
type PoolConn interface {
	Conn

	// Acquire a connection and ping it
	Ping(context.Context) error

	// Close all pooled connections
	Close()

	// Open a dedicated connection for session-scoped state, such as an
	// advisory lock
	Session(context.Context) (Session, error)

	// Return a listener, which connects on the first channel it listens to
	Listener() Listener
}

// pool satisfies pgx.Tx so that statements run the same way on the pool as
// within a transaction. Beginning a transaction acquires a connection.
type pool struct {
	*pgxpool.Pool
}

type poolconn struct {
	conn
	pool *pool
}

var _ pgx.Tx = (*pool)(nil)
var _ PoolConn = (*poolconn)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPool returns a connection pool. Connections are made lazily, so call
// Ping to check the server can be reached.
func NewPool(ctx context.Context, opts ...Opt) (PoolConn, error) {
	o, err := apply(opts...)
	if err != nil {
		return nil, err
	}
	config, err := pgxpool.ParseConfig(o.Encode())
	if err != nil {
		return nil, ErrBadParameter.With(err)
	}

	// Trace queries, reporting the connection parameters without the password
	if o.tracer != nil {
		config.ConnConfig.Tracer = o.tracer
		if fn := o.tracer.TraceFn; fn != nil {
			params := make(map[string]string)
			for _, kv := range o.encode("password") {
				if k, v, ok := strings.Cut(kv, "="); ok {
					params[k] = v
				}
			}
			fn(ctx, "CONNECT", params, nil)
		}
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Join(ErrConnection.With("create pool"), err)
	}
	root := &pool{p}
	return &poolconn{conn{root, o.bind}, root}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - POOL

func (*pool) Commit(context.Context) error {
	return ErrNotImplemented.With("commit outside a transaction")
}

func (*pool) Rollback(context.Context) error {
	return ErrNotImplemented.With("rollback outside a transaction")
}

func (*pool) Conn() *pgx.Conn {
	return nil
}

func (*pool) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (*pool) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, ErrNotImplemented.With("prepare outside a transaction")
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - POOLCONN

func (p *poolconn) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return errors.Join(ErrConnection.With("ping"), err)
	}
	return nil
}

func (p *poolconn) Close() {
	p.pool.Close()
}

func (p *poolconn) Session(ctx context.Context) (Session, error) {
	return newSession(ctx, p.pool.Config().ConnConfig)
}

func (p *poolconn) Listener() Listener {
	return newListener(p.pool.Config().ConnConfig)
}

func (p *poolconn) With(params ...any) Conn {
	return &poolconn{conn{p.tx, p.bind.Copy(params...)}, p.pool}
}

func (p *poolconn) WithQueries(queries ...*Queries) Conn {
	return &poolconn{conn{p.tx, p.bind.withQueries(queries...)}, p.pool}
}
