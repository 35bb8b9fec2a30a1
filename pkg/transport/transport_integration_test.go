//go:build integration

package transport_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Packages
	test "github.com/mutablelogic/go-pgbus/pkg/test"
	transport "github.com/mutablelogic/go-pgbus/pkg/transport"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	zaptest "go.uber.org/zap/zaptest"
)

func newConnectedTransport(t *testing.T, opts ...transport.Opt) (*transport.Transport, *test.Container) {
	t.Helper()
	ctx := context.Background()
	container, pool, err := test.NewPgxContainer(ctx, "pgbus", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Close()
		container.Close(context.Background())
	})

	settings, err := schema.NewSettings(schema.Postgres, container.URL(), "sales")
	require.NoError(t, err)
	tr, err := transport.NewTransport(settings, append([]transport.Opt{transport.WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, tr.Attach(pool))
	return tr, container
}

func Test_Integration_001(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	tr, _ := newConnectedTransport(t)

	_, err := tr.ListenToQueue("orders")
	require.NoError(t, err)

	t.Run("ProvisionTwice", func(t *testing.T) {
		assert.NoError(tr.Provision(ctx))
		assert.NoError(tr.Provision(ctx))
	})

	t.Run("ProvisionConcurrently", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = tr.ProvisionQueue(ctx, "concurrent")
			}(i)
		}
		wg.Wait()
		assert.NoError(errors.Join(errs...))
	})

	t.Run("DepthsFromCatalog", func(t *testing.T) {
		depths, err := tr.QueueDepths(ctx)
		assert.NoError(err)
		names := make([]string, 0, len(depths))
		for _, d := range depths {
			names = append(names, d.Queue)
		}
		assert.Equal([]string{"concurrent", "orders"}, names)
	})
}

func Test_Integration_002(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	tr, _ := newConnectedTransport(t)

	var attempts atomic.Int32
	c, err := tr.ListenToQueue("orders")
	require.NoError(t, err)
	c.Handle(func(ctx context.Context, e *schema.Envelope) error {
		if attempts.Add(1) == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	})

	t.Run("RedeliveredAfterFailure", func(t *testing.T) {
		// Sending creates the tables on demand
		assert.NoError(tr.Send(ctx, "Orders", schema.NewEnvelope("OrderPlaced", []byte("{}"))))

		received, err := tr.Receive(ctx, "orders")
		assert.True(received)
		assert.Error(err)

		received, err = tr.Receive(ctx, "orders")
		assert.True(received)
		assert.NoError(err)

		received, err = tr.Receive(ctx, "orders")
		assert.False(received)
		assert.NoError(err)
		assert.Equal(int32(2), attempts.Load())
	})

	t.Run("HandlerPanic", func(t *testing.T) {
		p, err := tr.ListenToQueue("panics")
		require.NoError(t, err)
		p.Handle(func(context.Context, *schema.Envelope) error {
			panic("boom")
		})
		assert.NoError(tr.Send(ctx, "panics", schema.NewEnvelope("Boom", nil)))
		received, err := tr.Receive(ctx, "panics")
		assert.True(received)
		assert.ErrorContains(err, "panic: boom")
	})
}

func Test_Integration_003(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	tr, _ := newConnectedTransport(t)
	require.NoError(t, tr.ProvisionQueue(ctx, "orders"))

	t.Run("DueMovedOnce", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			e := schema.NewEnvelope("Reminder", nil)
			at := time.Now().Add(200 * time.Millisecond)
			e.ScheduledTime = &at
			assert.NoError(tr.Send(ctx, "orders", e))
		}

		// Nothing is due yet
		moved, err := tr.DispatchDue(ctx)
		assert.NoError(err)
		assert.Equal(0, moved)

		time.Sleep(300 * time.Millisecond)

		// Two dispatchers race, and each message moves once
		var wg sync.WaitGroup
		var total atomic.Int32
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := tr.DispatchDue(ctx)
				assert.NoError(err)
				total.Add(int32(n))
			}()
		}
		wg.Wait()
		assert.Equal(int32(3), total.Load())

		depths, err := tr.QueueDepths(ctx)
		assert.NoError(err)
		if assert.Len(depths, 1) {
			assert.Equal(uint64(3), depths[0].Ready)
			assert.Equal(uint64(0), depths[0].Scheduled)
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		e := schema.NewEnvelope("Expiring", nil)
		until := time.Now().Add(-time.Second)
		e.KeepUntil = &until
		assert.NoError(tr.Send(ctx, "orders", e))
		n, err := tr.PurgeExpired(ctx)
		assert.NoError(err)
		assert.Equal(1, n)
	})
}

func Test_Integration_004(t *testing.T) {
	assert := assert.New(t)
	tr, _ := newConnectedTransport(t, transport.WithPollingInterval(time.Minute))

	received := make(chan string, 10)
	c, err := tr.ListenToQueue("orders")
	require.NoError(t, err)
	c.Handle(func(ctx context.Context, e *schema.Envelope) error {
		received <- e.MessageType
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx)
	}()

	t.Run("WokenByNotification", func(t *testing.T) {
		// Wait for the tables and listener before sending
		time.Sleep(time.Second)
		assert.NoError(tr.Send(context.Background(), "orders", schema.NewEnvelope("OrderPlaced", nil)))
		select {
		case messageType := <-received:
			assert.Equal("OrderPlaced", messageType)
		case <-time.After(10 * time.Second):
			assert.Fail("message was not received")
		}
	})

	cancel()
	assert.NoError(<-done)
}
