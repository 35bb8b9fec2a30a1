package transport_test

import (
	"context"
	"slices"
	"sync"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

////////////////////////////////////////////////////////////////////////////////
// FAKE POOL

// pool records the statements executed and holds ready messages in memory.
// A transaction which fails restores the messages it removed.
type pool struct {
	sync.Mutex
	execs   []string
	inserts int
	fail    []error
	ready   []*schema.Envelope
}

type conn struct {
	*pool
	bind *pg.Bind
}

type listener struct{}

type row struct {
	e *schema.Envelope
}

var _ pg.PoolConn = (*conn)(nil)

func newPool() *conn {
	return &conn{pool: new(pool), bind: pg.NewBind()}
}

// Statements executed, with variables expanded
func (p *pool) Execs() []string {
	p.Lock()
	defer p.Unlock()
	return slices.Clone(p.execs)
}

func (c *conn) Ping(context.Context) error {
	return nil
}

func (c *conn) Close() {}

func (c *conn) Session(context.Context) (pg.Session, error) {
	return nil, pg.ErrNotImplemented.With("session")
}

func (c *conn) Listener() pg.Listener {
	return listener{}
}

func (c *conn) With(params ...any) pg.Conn {
	return &conn{c.pool, c.bind.Copy(params...)}
}

func (c *conn) WithQueries(...*pg.Queries) pg.Conn {
	return c
}

func (c *conn) Tx(ctx context.Context, fn func(pg.Conn) error) error {
	c.Lock()
	ready := slices.Clone(c.ready)
	c.Unlock()
	if err := fn(c); err != nil {
		c.Lock()
		c.ready = ready
		c.Unlock()
		return err
	}
	return nil
}

func (c *conn) Bulk(ctx context.Context, fn func(pg.Conn) error) error {
	return fn(c)
}

func (c *conn) Exec(_ context.Context, query string) error {
	c.Lock()
	defer c.Unlock()
	c.execs = append(c.execs, c.bind.Replace(query))
	return nil
}

func (c *conn) Insert(context.Context, pg.Reader, pg.Writer) error {
	c.Lock()
	defer c.Unlock()
	if len(c.fail) > 0 {
		err := c.fail[0]
		c.fail = c.fail[1:]
		return err
	}
	c.inserts++
	return nil
}

// Delete removes the oldest ready message
func (c *conn) Delete(_ context.Context, reader pg.Reader, _ pg.Selector) error {
	c.Lock()
	if len(c.ready) == 0 {
		c.Unlock()
		return pg.ErrNotFound
	}
	e := c.ready[0]
	c.ready = c.ready[1:]
	c.Unlock()
	return reader.Scan(row{e})
}

func (c *conn) Get(context.Context, pg.Reader, pg.Selector) error {
	return pg.ErrNotFound
}

func (c *conn) List(context.Context, pg.Reader, pg.Selector) error {
	return nil
}

func (r row) Scan(dest ...any) error {
	set(dest[0], r.e.ID)
	set(dest[1], r.e.MessageType)
	set(dest[2], r.e.Body)
	set(dest[3], r.e.ScheduledTime)
	set(dest[4], r.e.KeepUntil)
	set(dest[5], r.e.Timestamp)
	return nil
}

func set[T any](dest any, v T) {
	*dest.(*T) = v
}

func (listener) Listen(context.Context, string) error {
	return nil
}

func (listener) WaitForNotification(ctx context.Context) (*pg.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (listener) Close(context.Context) error {
	return nil
}
