package transport

import (
	"context"
	"errors"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	zap "go.uber.org/zap"
	errgroup "golang.org/x/sync/errgroup"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// wakers signals the workers of each queue, keyed by corrected name
type wakers map[string][]chan struct{}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Run receives messages for every listener queue until the context is
// cancelled. Queues are woken by notifications, and polled as a fallback.
// Configuration mistakes and provisioning failures are returned before
// anything starts, after which Run can be called again. No queues can be
// added while Run is running.
func (t *Transport) Run(ctx context.Context) (err error) {
	if !t.started.CompareAndSwap(false, true) {
		return schema.ErrConfiguration.With("transport is already running")
	}
	t.registry.freeze()
	defer func() {
		if err != nil {
			t.registry.thaw()
			t.started.Store(false)
		}
	}()

	// Check the configuration
	listeners := t.registry.Listeners()
	if err := t.validate(listeners); err != nil {
		return err
	}
	pool, err := t.poolConn()
	if err != nil {
		return err
	}

	// Create the tables which are received from
	for _, q := range listeners {
		if err := t.ProvisionQueue(ctx, q.endpointName); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	// Start the workers, and the notification loop which wakes them
	wake := make(wakers, len(listeners))
	g, ctx := errgroup.WithContext(ctx)
	for _, q := range listeners {
		for i := 0; i < q.workers; i++ {
			ch := make(chan struct{}, 1)
			wake[q.endpointName] = append(wake[q.endpointName], ch)
			g.Go(func() error {
				return t.work(ctx, q, ch)
			})
		}
		t.logger().Info("listening", zap.String("queue", q.endpointName), zap.Int("workers", q.workers))
	}
	if len(listeners) > 0 {
		g.Go(func() error {
			return t.notify(ctx, pool, wake)
		})
	}

	// Wait for cancellation
	<-ctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) validate(listeners []*Queue) error {
	var result error
	for _, q := range t.registry.Queues() {
		result = errors.Join(result, q.listenErr, q.subscribeErr)
	}
	for _, q := range listeners {
		if q.handler == nil {
			result = errors.Join(result, schema.ErrConfiguration.Withf("queue %q has no handler", q.endpointName))
		}
	}
	return result
}

func (t *Transport) poolConn() (pg.PoolConn, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.pool == nil {
		return nil, pg.ErrConnection.With("transport is not connected")
	}
	return t.pool, nil
}

// Receive until the queue is empty or an error occurs, then wait to be
// woken or for the polling interval
func (t *Transport) work(ctx context.Context, q *Queue, wake <-chan struct{}) error {
	log := t.logger().With(zap.String("queue", q.endpointName))
	for {
		for ctx.Err() == nil {
			received, err := t.receive(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("receive failed", zap.Error(err))
				}
				break
			} else if !received {
				break
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-t.opts.clock.After(q.pollingInterval):
		}
	}
}

// Listen for inserts and wake the workers of the queue named in each
// notification. A lost listener connection is opened again after the
// polling interval; workers keep polling in the meantime.
func (t *Transport) notify(ctx context.Context, pool pg.PoolConn, wake wakers) error {
	channel := schema.Channel(t.settings.Schema())
	for {
		err := t.listen(ctx, pool.Listener(), channel, wake)
		if ctx.Err() != nil {
			return nil
		}
		t.logger().Warn("listener lost", zap.String("channel", channel), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-t.opts.clock.After(t.opts.pollingInterval):
		}
	}
}

func (t *Transport) listen(ctx context.Context, listener pg.Listener, channel string, wake wakers) error {
	defer listener.Close(context.Background())
	if err := listener.Listen(ctx, channel); err != nil {
		return err
	}

	// Notifications may have been missed before listening
	for _, chans := range wake {
		signal(chans...)
	}

	for {
		n, err := listener.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		signal(wake[string(n.Payload)]...)
	}
}

func signal(chans ...chan struct{}) {
	for _, ch := range chans {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
