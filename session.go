package pg

import (
	"context"
	"errors"
	"sync"

	// Packages
	pgx "github.com/jackc/pgx/v5"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Session is a single dedicated server connection. Advisory locks taken on
// a session are released by the server when the session ends, including
// when the process crashes or the connection is terminated.
type Session interface {
	// Try to take a session-level advisory lock without waiting, and
	// return true if the lock was taken
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)

	// Release a session-level advisory lock, and return true if the
	// lock was held
	AdvisoryUnlock(ctx context.Context, key int64) (bool, error)

	// Check the session is still alive
	Ping(context.Context) error

	// Backend process id, which can be used with pg_terminate_backend
	PID() uint32

	// Close the connection, which releases all session-level locks
	Close(context.Context) error
}

type session struct {
	sync.Mutex
	conn *pgx.Conn
}

var _ Session = (*session)(nil)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	sqlTryAdvisoryLock = `SELECT pg_try_advisory_lock($1)`
	sqlAdvisoryUnlock  = `SELECT pg_advisory_unlock($1)`
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newSession(ctx context.Context, config *pgx.ConnConfig) (*session, error) {
	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, errors.Join(ErrConnection.With("open session"), err)
	}
	return &session{conn: conn}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (s *session) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return s.queryBool(ctx, sqlTryAdvisoryLock, key)
}

func (s *session) AdvisoryUnlock(ctx context.Context, key int64) (bool, error) {
	return s.queryBool(ctx, sqlAdvisoryUnlock, key)
}

func (s *session) Ping(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return ErrConnection.With("session closed")
	}
	if err := s.conn.Ping(ctx); err != nil {
		return errors.Join(ErrConnection.With("ping session"), err)
	}
	return nil
}

func (s *session) PID() uint32 {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.PgConn().PID()
}

func (s *session) Close(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	return conn.Close(ctx)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *session) queryBool(ctx context.Context, query string, key int64) (bool, error) {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return false, ErrConnection.With("session closed")
	}

	var result bool
	if err := s.conn.QueryRow(ctx, query, key).Scan(&result); err != nil {
		if s.conn.IsClosed() {
			return false, errors.Join(ErrConnection.With("session lost"), err)
		}
		return false, pgerror(err)
	}
	return result, nil
}
