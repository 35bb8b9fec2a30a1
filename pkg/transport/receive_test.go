package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	transport "github.com/mutablelogic/go-pgbus/pkg/transport"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	assert "github.com/stretchr/testify/assert"
	attribute "go.opentelemetry.io/otel/attribute"
	codes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracetest "go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func Test_Receive_001(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	newReceiver := func(t *testing.T, fn transport.Handler) (*transport.Transport, *conn, *tracetest.SpanRecorder) {
		recorder := tracetest.NewSpanRecorder()
		tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
		pool := newPool()
		tr := newTransport(t, "", transport.WithTracer(tracer))
		assert.NoError(tr.Attach(pool))
		c, err := tr.ListenToQueue("orders")
		assert.NoError(err)
		c.Handle(fn)
		return tr, pool, recorder
	}

	t.Run("Empty", func(t *testing.T) {
		tr, _, recorder := newReceiver(t, nop)
		received, err := tr.Receive(ctx, "orders")
		assert.NoError(err)
		assert.False(received)
		assert.Empty(recorder.Ended())
	})

	t.Run("HandledInSpan", func(t *testing.T) {
		var got *schema.Envelope
		tr, pool, recorder := newReceiver(t, func(ctx context.Context, e *schema.Envelope) error {
			got = e
			return nil
		})
		e := &schema.Envelope{ID: uuid.New(), MessageType: "order.placed", Timestamp: time.Now()}
		pool.ready = append(pool.ready, e)

		received, err := tr.Receive(ctx, "orders")
		assert.NoError(err)
		assert.True(received)
		if assert.NotNil(got) {
			assert.Equal(e.ID, got.ID)
		}
		assert.Empty(pool.ready)

		spans := recorder.Ended()
		if !assert.Len(spans, 1) {
			t.FailNow()
		}
		assert.Equal("pgbus.receive.orders", spans[0].Name())
		assert.Contains(spans[0].Attributes(), attribute.String("id", e.ID.String()))
		assert.Contains(spans[0].Attributes(), attribute.String("type", "order.placed"))
		assert.Equal(codes.Unset, spans[0].Status().Code)
	})

	t.Run("FailedHandlerKeepsMessage", func(t *testing.T) {
		failed := errors.New("failed")
		tr, pool, recorder := newReceiver(t, func(context.Context, *schema.Envelope) error {
			return failed
		})
		pool.ready = append(pool.ready, &schema.Envelope{ID: uuid.New()})

		received, err := tr.Receive(ctx, "orders")
		assert.True(received)
		assert.ErrorIs(err, failed)
		assert.Len(pool.ready, 1)

		spans := recorder.Ended()
		if assert.Len(spans, 1) {
			assert.Equal(codes.Error, spans[0].Status().Code)
		}
	})
}
