package transport_test

import (
	"context"
	"testing"

	// Packages
	pgconn "github.com/jackc/pgx/v5/pgconn"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	assert "github.com/stretchr/testify/assert"
)

func Test_Send_001(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	t.Run("ProvisionCreatesSchema", func(t *testing.T) {
		pool := newPool()
		tr := newTransport(t, "sales")
		assert.NoError(tr.Attach(pool))
		assert.NoError(tr.ProvisionQueue(ctx, "orders"))

		execs := pool.Execs()
		if !assert.Len(execs, 4) {
			t.FailNow()
		}
		assert.Equal(`CREATE SCHEMA IF NOT EXISTS "sales"`, execs[0])
		assert.Contains(execs[1], `CREATE TABLE IF NOT EXISTS "sales"."`)
	})

	t.Run("SendToMissingSchema", func(t *testing.T) {
		pool := newPool()
		pool.fail = []error{&pgconn.PgError{Code: "3F000"}}
		tr := newTransport(t, "sales")
		assert.NoError(tr.Attach(pool))
		assert.NoError(tr.Send(ctx, "orders", &schema.Envelope{MessageType: "order.placed"}))

		// The schema and tables are created, then the message is sent again
		execs := pool.Execs()
		if !assert.Len(execs, 5) {
			t.FailNow()
		}
		assert.Equal(`CREATE SCHEMA IF NOT EXISTS "sales"`, execs[0])
		assert.Equal("SELECT pg_notify(@channel, @queue)", execs[4])
		assert.Equal(1, pool.inserts)
	})

	t.Run("SendFailsOtherwise", func(t *testing.T) {
		pool := newPool()
		pool.fail = []error{&pgconn.PgError{Code: "23505"}}
		tr := newTransport(t, "sales")
		assert.NoError(tr.Attach(pool))
		assert.Error(tr.Send(ctx, "orders", &schema.Envelope{}))
		assert.Empty(pool.Execs())
	})
}
