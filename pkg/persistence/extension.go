package persistence

import (
	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	bus "github.com/mutablelogic/go-pgbus/pkg/bus"
	scheduler "github.com/mutablelogic/go-pgbus/pkg/scheduler"
	transport "github.com/mutablelogic/go-pgbus/pkg/transport"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Extension stores messages durably in a PostgreSQL schema. When it is
// created with a transport, including it registers the transport too.
type Extension struct {
	settings  schema.Settings
	store     *Store
	transport *transport.Transport
}

// Expression configures the transport created with the extension
type Expression struct {
	options   *bus.Options
	extension *Extension
}

var _ bus.Extension = (*Extension)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// PersistMessages includes durable storage for messages in the options. An
// empty schema is the default schema.
func PersistMessages(options *bus.Options, connectionString, schemaName string) (*Extension, error) {
	if options == nil {
		return nil, schema.ErrConfiguration.With("missing options")
	}
	settings, err := schema.NewSettings(schema.Postgres, connectionString, schemaName)
	if err != nil {
		return nil, err
	}
	ext := newExtension(settings, nil, zap.NewNop())
	if err := options.Include(ext); err != nil {
		return nil, err
	}
	return ext, nil
}

// UsePersistenceAndTransport includes durable storage and registers a
// transport for the same schema. Both share one set of settings, so they
// always agree on the schema and the scheduled job lock.
func UsePersistenceAndTransport(options *bus.Options, connectionString, schemaName string, opts ...transport.Opt) (*Expression, error) {
	if options == nil {
		return nil, schema.ErrConfiguration.With("missing options")
	}
	settings, err := schema.NewSettings(schema.Postgres, connectionString, schemaName)
	if err != nil {
		return nil, err
	}
	t, err := transport.NewTransport(settings, opts...)
	if err != nil {
		return nil, err
	}
	ext := newExtension(settings, t, zap.NewNop())
	if err := options.Include(ext); err != nil {
		return nil, err
	}
	return &Expression{options: options, extension: ext}, nil
}

func newExtension(settings schema.Settings, t *transport.Transport, log *zap.Logger) *Extension {
	return &Extension{
		settings:  settings,
		store:     newStore(settings, log),
		transport: t,
	}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - EXTENSION

// Configure registers the transport, if any, with the host
func (e *Extension) Configure(options *bus.Options) error {
	if e.transport != nil {
		options.Transports().Add(e.transport)
	}
	return nil
}

func (e *Extension) Settings() schema.Settings {
	return e.settings
}

func (e *Extension) Store() *Store {
	return e.store
}

// Transport returns the transport created with the extension, or nil
func (e *Extension) Transport() *transport.Transport {
	return e.transport
}

// Attach connects the store, and the transport if any, to a pool
func (e *Extension) Attach(pool pg.PoolConn) error {
	if err := e.store.Attach(pool); err != nil {
		return err
	}
	if e.transport != nil {
		return e.transport.Attach(pool)
	}
	return nil
}

// Coordinator returns a coordinator for the scheduled job lock of the
// schema, which dispatches the scheduled messages of the store and the
// transport. The extension must be attached to a pool first.
func (e *Extension) Coordinator(opts ...scheduler.Opt) (*scheduler.Coordinator, error) {
	pool, err := e.store.poolConn()
	if err != nil {
		return nil, err
	}
	c, err := scheduler.NewCoordinator(pool, e.settings.ScheduledJobLockID(), opts...)
	if err != nil {
		return nil, err
	}
	c.AddDispatcher(e.store)
	if e.transport != nil {
		c.AddDispatcher(e.transport)
	}
	return c, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - EXPRESSION

// ListenToQueue listens to a queue of the transport
func (x *Expression) ListenToQueue(name string) (*transport.ListenerConfiguration, error) {
	return x.extension.transport.ListenToQueue(name)
}

func (x *Expression) Transport() *transport.Transport {
	return x.extension.transport
}

func (x *Expression) Settings() schema.Settings {
	return x.extension.settings
}

func (x *Expression) Extension() *Extension {
	return x.extension
}

// Options returns the host options the expression configures
func (x *Expression) Options() *bus.Options {
	return x.options
}
