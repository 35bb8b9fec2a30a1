package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	pg "github.com/mutablelogic/go-pgbus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	sql "github.com/mutablelogic/go-pgbus/pkg/transport/sql"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Store keeps incoming envelopes in the durable table of a schema. Scheduled
// envelopes become incoming when they are due.
type Store struct {
	settings schema.Settings
	log      *zap.Logger

	mu   sync.RWMutex
	pool pg.PoolConn
	conn pg.Conn
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// Name of the store as a dispatcher
	DispatcherName = "persistence"
)

var (
	objects = pg.MustQueries(sql.Objects)
	queries = pg.MustQueries(sql.Queries)
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newStore(settings schema.Settings, log *zap.Logger) *Store {
	return &Store{settings: settings, log: log}
}

// Attach uses a connection pool, which the caller closes
func (s *Store) Attach(pool pg.PoolConn) error {
	if pool == nil {
		return pg.ErrBadParameter.With("nil connection pool")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil {
		return pg.ErrBadParameter.With("store is already connected")
	}
	s.pool = pool
	s.conn = pool.WithQueries(objects, queries).With(
		"schema", s.settings.Schema(),
		"incoming", schema.IncomingTable,
		"incoming_index", schema.IncomingTable+"_due",
	)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// SetLogger sets the logger, which otherwise discards output
func (s *Store) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// Provision creates the schema and the durable table
func (s *Store) Provision(ctx context.Context) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	for _, key := range []string{"pgbus.schema_create", "pgbus.incoming_create", "pgbus.incoming_index"} {
		if err := conn.Exec(ctx, objects.Get(key)); err != nil && !pg.IsExists(err) {
			return err
		}
	}
	return nil
}

// Store keeps an envelope for processing now
func (s *Store) Store(ctx context.Context, e *schema.Envelope) (*schema.IncomingEnvelope, error) {
	if e == nil {
		return nil, pg.ErrBadParameter.With("nil envelope")
	}
	return s.insert(ctx, schema.IncomingEnvelope{Envelope: *e, Status: schema.StatusIncoming})
}

// Schedule keeps an envelope until a time
func (s *Store) Schedule(ctx context.Context, e *schema.Envelope, at time.Time) (*schema.IncomingEnvelope, error) {
	if e == nil {
		return nil, pg.ErrBadParameter.With("nil envelope")
	} else if at.IsZero() {
		return nil, pg.ErrBadParameter.With("missing execution time")
	}
	at = at.UTC()
	return s.insert(ctx, schema.IncomingEnvelope{Envelope: *e, Status: schema.StatusScheduled, ExecutionTime: &at})
}

// Incoming returns envelopes ready for processing, oldest first
func (s *Store) Incoming(ctx context.Context, limit int) ([]schema.IncomingEnvelope, error) {
	return s.list(ctx, schema.IncomingListRequest{Status: schema.StatusIncoming, Limit: limit})
}

// Scheduled returns envelopes waiting for their execution time, earliest
// first
func (s *Store) Scheduled(ctx context.Context, limit int) ([]schema.IncomingEnvelope, error) {
	return s.list(ctx, schema.IncomingListRequest{Status: schema.StatusScheduled, Limit: limit})
}

// Get returns an envelope by id
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*schema.IncomingEnvelope, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	var e schema.IncomingEnvelope
	if err := conn.Get(ctx, &e, schema.IncomingID(id)); err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes an envelope once it has been processed, and returns it
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (*schema.IncomingEnvelope, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	var e schema.IncomingEnvelope
	if err := conn.Delete(ctx, &e, schema.IncomingID(id)); err != nil {
		return nil, err
	}
	return &e, nil
}

// Name returns the name of the dispatcher
func (s *Store) Name() string {
	return DispatcherName
}

// DispatchDue marks scheduled envelopes which are due as incoming, and
// returns the number marked
func (s *Store) DispatchDue(ctx context.Context) (int, error) {
	conn, err := s.connection()
	if err != nil {
		return 0, err
	}
	var total int
	for {
		var n schema.RowCount
		if err := conn.List(ctx, &n, schema.IncomingDueRequest{Limit: schema.DefaultBatchSize}); err != nil {
			if pg.IsNotExists(err) {
				return total, nil
			}
			return total, err
		}
		total += int(n)
		if int(n) < schema.DefaultBatchSize {
			break
		}
	}
	if total > 0 {
		s.log.Debug("incoming envelopes due", zap.String("schema", s.settings.Schema()), zap.Int("count", total))
	}
	return total, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *Store) insert(ctx context.Context, e schema.IncomingEnvelope) (*schema.IncomingEnvelope, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var result schema.IncomingEnvelope
	if err := conn.Insert(ctx, &result, e); err != nil {
		if errors.Is(err, pg.ErrConflict) {
			return nil, pg.ErrConflict.Withf("envelope %v already stored", e.ID)
		}
		return nil, err
	}
	return &result, nil
}

func (s *Store) list(ctx context.Context, req schema.IncomingListRequest) ([]schema.IncomingEnvelope, error) {
	conn, err := s.connection()
	if err != nil {
		return nil, err
	}
	var list schema.IncomingList
	if err := conn.List(ctx, &list, req); err != nil {
		return nil, err
	}
	return list.Body, nil
}

func (s *Store) connection() (pg.Conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil, pg.ErrConnection.With("store is not connected")
	}
	return s.conn, nil
}

func (s *Store) poolConn() (pg.PoolConn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, pg.ErrConnection.With("store is not connected")
	}
	return s.pool, nil
}
