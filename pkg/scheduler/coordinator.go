package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	// Packages
	backoff "github.com/cenkalti/backoff/v4"
	pg "github.com/mutablelogic/go-pgbus"
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	otel "github.com/mutablelogic/go-pgbus/pkg/otel"
	attribute "go.opentelemetry.io/otel/attribute"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Locker opens dedicated sessions, outside of any pool, which hold the
// advisory lock
type Locker interface {
	Session(context.Context) (pg.Session, error)
}

// Dispatcher moves due scheduled work to where it is received, and
// returns the number of items moved
type Dispatcher interface {
	Name() string
	DispatchDue(context.Context) (int, error)
}

// Purger is a dispatcher which also removes expired work
type Purger interface {
	PurgeExpired(context.Context) (int, error)
}

// Coordinator makes sure scheduled work is dispatched by one process at a
// time for each lock key. Processes race for a session-level advisory
// lock; the holder dispatches, and the others retry until it goes away.
type Coordinator struct {
	opts
	key    int64
	locker Locker

	mu          sync.RWMutex
	dispatchers []Dispatcher
	state       State
	session     pg.Session
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewCoordinator returns a coordinator for a lock key, which opens
// sessions with the locker
func NewCoordinator(locker Locker, key int64, opt ...Opt) (*Coordinator, error) {
	if locker == nil {
		return nil, pg.ErrBadParameter.With("nil locker")
	}
	o, err := applyOpts(opt)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		opts:   o,
		key:    key,
		locker: locker,
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// AddDispatcher adds dispatchers which are called when the lock is held
func (c *Coordinator) AddDispatcher(dispatchers ...Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dispatchers {
		if d != nil {
			c.dispatchers = append(c.dispatchers, d)
		}
	}
}

// Key returns the advisory lock key
func (c *Coordinator) Key() int64 {
	return c.key
}

// State returns the current state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsLeader returns true when the lock is held
func (c *Coordinator) IsLeader() bool {
	return c.State() == Active
}

// Run takes the lock when it can, and dispatches due work while it holds
// it. Failures are retried rather than returned. When the context is
// cancelled the lock is released and Run returns nil.
func (c *Coordinator) Run(ctx context.Context) error {
	retry := c.newBackoff()
	for {
		switch c.State() {
		case Idle:
			if ctx.Err() != nil {
				return nil
			}
			session, err := c.locker.Session(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.fault(err)
				continue
			}
			c.mu.Lock()
			c.session = session
			c.mu.Unlock()
			retry.Reset()
			c.setState(AcquiringLock)
		case AcquiringLock:
			if !c.acquire(ctx, retry) {
				continue
			}
		case Active:
			if err := c.tick(ctx); err != nil && ctx.Err() == nil {
				c.fault(err)
				continue
			}
			if !c.wait(ctx, c.PollingInterval) {
				c.setState(Releasing)
			}
		case Releasing:
			c.release()
			c.setState(Idle)
			return nil
		case Faulted:
			if !c.wait(ctx, c.FaultBackoff) {
				c.setState(Idle)
				return nil
			}
			c.setState(Idle)
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// Try the lock once, and wait before the next attempt when another session
// holds it. Returns false when the state changed to something other than
// active.
func (c *Coordinator) acquire(ctx context.Context, retry backoff.BackOff) bool {
	if ctx.Err() != nil {
		c.setState(Releasing)
		return false
	}
	ok, err := c.currentSession().TryAdvisoryLock(ctx, c.key)
	switch {
	case err != nil && ctx.Err() != nil:
		c.setState(Releasing)
		return false
	case err != nil:
		c.metrics.IncLockAttempt(metrics.LockError)
		c.fault(err)
		return false
	case ok:
		c.metrics.IncLockAttempt(metrics.LockAcquired)
		c.log.Info("lock acquired", zap.Int64("key", c.key))
		c.setState(Active)
		return true
	default:
		c.metrics.IncLockAttempt(metrics.LockContended)
		if !c.wait(ctx, min(retry.NextBackOff(), c.LockRetryMax)) {
			c.setState(Releasing)
		}
		return false
	}
}

// Check the session, then dispatch and purge. Only a session failure is
// returned, since it means the lock may have been lost.
func (c *Coordinator) tick(ctx context.Context) (err error) {
	ctx, endspan := otel.StartSpan(c.tracer, ctx, "scheduler.tick", attribute.Int64("key", c.key))
	defer func() { endspan(err) }()

	if err := c.currentSession().Ping(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	dispatchers := append([]Dispatcher(nil), c.dispatchers...)
	c.mu.RUnlock()

	for _, d := range dispatchers {
		c.dispatch(ctx, d)
	}
	return nil
}

// Dispatch and purge within a span for the dispatcher. Failures are logged.
func (c *Coordinator) dispatch(ctx context.Context, d Dispatcher) {
	var errs error
	ctx, endspan := otel.StartSpan(c.tracer, ctx, "scheduler.dispatch."+d.Name())
	defer func() { endspan(errs) }()

	if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
		c.log.Warn("dispatch failed", zap.String("dispatcher", d.Name()), zap.Error(err))
		errs = errors.Join(errs, err)
	}
	if p, ok := d.(Purger); ok {
		if _, err := p.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("purge failed", zap.String("dispatcher", d.Name()), zap.Error(err))
			errs = errors.Join(errs, err)
		}
	}
}

// Release the lock within the release timeout, then close the session.
// The session is closed abruptly if the release stalls or fails, in which
// case the server releases the lock when it notices.
func (c *Coordinator) release() {
	session := c.takeSession()
	if session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.ReleaseTimeout)
	defer cancel()

	held, err := session.AdvisoryUnlock(ctx, c.key)
	if err != nil {
		c.log.Warn("release failed, closing session", zap.Int64("key", c.key), zap.Error(err))
		closeAbruptly(session)
		return
	}
	if held {
		c.log.Info("lock released", zap.Int64("key", c.key))
	}
	if err := session.Close(ctx); err != nil {
		closeAbruptly(session)
	}
}

// Close the session and wait before trying again
func (c *Coordinator) fault(err error) {
	if session := c.takeSession(); session != nil {
		closeAbruptly(session)
	}
	c.metrics.IncFault()
	c.log.Warn("session failed", zap.Int64("key", c.key), zap.Error(err))
	c.setState(Faulted)
}

func (c *Coordinator) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev == next {
		return
	}
	c.metrics.SetState(prev.String(), next.String())
	c.log.Debug("state", zap.Stringer("from", prev), zap.Stringer("to", next))
	if c.hook != nil {
		c.hook(prev, next)
	}
}

func (c *Coordinator) currentSession() pg.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Coordinator) takeSession() pg.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	session := c.session
	c.session = nil
	return session
}

// Wait for a duration, returning false if the context is done first
func (c *Coordinator) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

// Exponential retry with jitter which never gives up. Jitter can exceed
// the maximum interval, so callers cap each wait.
func (c *Coordinator) newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.LockRetryInitial
	b.MaxInterval = c.LockRetryMax
	b.MaxElapsedTime = 0
	b.Clock = c.clock
	b.Reset()
	return b
}

// Close with a cancelled context, which drops the connection without
// waiting for the server
func closeAbruptly(session pg.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = session.Close(ctx)
}

