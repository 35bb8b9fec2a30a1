package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	bus "github.com/mutablelogic/go-pgbus/pkg/bus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	sql "github.com/mutablelogic/go-pgbus/pkg/transport/sql"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport turns tables in one schema into queues. It owns the settings
// and the registry of queues for that schema.
type Transport struct {
	opts
	settings schema.Settings
	registry *Registry
	started  atomic.Bool

	mu    sync.RWMutex
	pool  pg.PoolConn
	conn  pg.Conn
	owned bool
}

var _ bus.Transport = (*Transport)(nil)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

var (
	objects = pg.MustQueries(sql.Objects)
	queries = pg.MustQueries(sql.Queries)
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewTransport returns a transport for settings built by schema.NewSettings.
// No connection is made until Connect or Attach is called.
func NewTransport(settings schema.Settings, opt ...Opt) (*Transport, error) {
	if settings.IsZero() {
		return nil, schema.ErrMissingConnection.With("settings have no connection string")
	}
	o, err := applyOpts(opt)
	if err != nil {
		return nil, err
	}
	return &Transport{
		opts:     o,
		settings: settings,
		registry: newRegistry(schema.NewResolver(settings.Backend()), settings.Schema()),
	}, nil
}

// Connect creates a connection pool from the connection string
func (t *Transport) Connect(ctx context.Context) error {
	opts := append([]pg.Opt{pg.WithConnectionString(t.settings.ConnectionString())}, t.opts.poolOpts...)
	pool, err := pg.NewPool(ctx, opts...)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Join(pg.ErrConnection.With("ping"), err)
	}
	if err := t.attach(pool, true); err != nil {
		pool.Close()
		return err
	}
	return nil
}

// Attach uses an existing connection pool, which the caller closes
func (t *Transport) Attach(pool pg.PoolConn) error {
	return t.attach(pool, false)
}

// Close releases the connection pool, if it was created by Connect
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pool != nil && t.owned {
		t.pool.Close()
	}
	t.pool, t.conn, t.owned = nil, nil, false
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (t *Transport) String() string {
	var b strings.Builder
	b.WriteString(schema.Protocol + "://" + t.settings.Schema())
	for _, q := range t.registry.Queues() {
		b.WriteString(" " + q.endpointName)
	}
	return b.String()
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Protocol returns the scheme of queue addresses
func (t *Transport) Protocol() string {
	return schema.Protocol
}

func (t *Transport) Settings() schema.Settings {
	return t.settings
}

func (t *Transport) Registry() *Registry {
	return t.registry
}

// ListenToQueue creates the queue if needed, marks it as a listener and
// returns its configuration
func (t *Transport) ListenToQueue(name string) (*ListenerConfiguration, error) {
	if t.started.Load() {
		return nil, schema.ErrConfiguration.Withf("cannot listen to %q after the transport has started", name)
	}
	q, err := t.registry.GetOrCreate(name)
	if err != nil {
		return nil, err
	}
	t.registry.MarkListener(q)
	if q.workers == 0 {
		q.workers = t.opts.workers
	}
	if q.pollingInterval == 0 {
		q.pollingInterval = t.opts.pollingInterval
	}
	return &ListenerConfiguration{queue: q}, nil
}

// Lookup returns the one transport of this kind in the host, failing when
// there are none or more than one
func Lookup(transports *bus.Transports) (*Transport, error) {
	if transports == nil {
		return nil, schema.ErrNotRegistered.With(schema.Protocol)
	}
	var found []*Transport
	for _, candidate := range transports.All() {
		if t, ok := candidate.(*Transport); ok {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return nil, schema.ErrNotRegistered.Withf("no %s transport has been registered", schema.Protocol)
	case 1:
		return found[0], nil
	default:
		return nil, schema.ErrMultipleRegistered.Withf("%d %s transports have been registered, expected one", len(found), schema.Protocol)
	}
}

// ListenToQueue listens to a queue of the one transport registered with
// the host options
func ListenToQueue(options *bus.Options, name string) (*ListenerConfiguration, error) {
	if options == nil {
		return nil, schema.ErrConfiguration.With("missing options")
	}
	t, err := Lookup(options.Transports())
	if err != nil {
		return nil, err
	}
	return t.ListenToQueue(name)
}

// ToQueue routes published messages to a queue of the registered
// transport. The queue is created and named first, then its address is
// added to the routes.
func ToQueue(p *bus.PublishingExpression, name string) (*SubscriberConfiguration, error) {
	if p == nil || p.Parent() == nil {
		return nil, schema.ErrConfiguration.With("missing publishing expression")
	}
	t, err := Lookup(p.Parent().Transports())
	if err != nil {
		return nil, err
	}
	if t.started.Load() {
		return nil, schema.ErrConfiguration.Withf("cannot route to %q after the transport has started", name)
	}

	// Create and name the queue
	q, err := t.registry.GetOrCreate(name)
	if err != nil {
		return nil, err
	}
	t.registry.MarkSubscriber(q)

	// Register the route
	p.To(q.URI())

	return &SubscriberConfiguration{queue: q}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) attach(pool pg.PoolConn, owned bool) error {
	if pool == nil {
		return pg.ErrBadParameter.With("nil connection pool")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pool != nil {
		return pg.ErrBadParameter.With("transport is already connected")
	}
	t.pool = pool
	t.owned = owned
	t.conn = pool.WithQueries(objects, queries).With(
		"schema", t.settings.Schema(),
		"channel", schema.Channel(t.settings.Schema()),
	)
	return nil
}

// Return the bound connection, or an error if not connected
func (t *Transport) connection() (pg.Conn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn == nil {
		return nil, pg.ErrConnection.With("transport is not connected")
	}
	return t.conn, nil
}

// Return the connection bound to the tables of a queue
func (t *Transport) queueConnection(name string) (pg.Conn, error) {
	conn, err := t.connection()
	if err != nil {
		return nil, err
	}
	args, err := schema.QueueName(name).Args()
	if err != nil {
		return nil, err
	}
	return conn.With(args...), nil
}

func (t *Transport) logger() *zap.Logger {
	return t.opts.log.With(zap.String("schema", t.settings.Schema()))
}
