package schema_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	assert "github.com/stretchr/testify/assert"
)

////////////////////////////////////////////////////////////////////////////////
// RESOLVER

func Test_Resolver_Correct(t *testing.T) {
	assert := assert.New(t)
	r := schema.NewResolver(schema.Postgres)

	tests := []struct {
		In  string
		Out string
	}{
		{"orders", "orders"},
		{"Orders", "orders"},
		{"  Orders  ", "orders"},
		{"order-events", "order_events"},
		{"Order.Events v2", "order_events_v2"},
		{"2fast", "_2fast"},
		{"_private", "_private"},
		{"café", "caf_"},
	}
	for _, test := range tests {
		t.Run(test.In, func(t *testing.T) {
			out, err := r.Correct(test.In)
			assert.NoError(err)
			assert.Equal(test.Out, out)
		})
	}

	for _, in := range []string{"", "   ", "___", "-.-", strings.Repeat("a", schema.MaxNameLength+1)} {
		t.Run(fmt.Sprintf("Invalid%q", in), func(t *testing.T) {
			_, err := r.Correct(in)
			assert.ErrorIs(err, schema.ErrInvalidName)
		})
	}

	t.Run("MaxLength", func(t *testing.T) {
		name := strings.Repeat("a", schema.MaxNameLength)
		out, err := r.Correct(name)
		assert.NoError(err)
		assert.Equal(name, out)
		assert.Equal(63, len(schema.ScheduledTable(out)))
	})
}

func Test_Resolver_Idempotent(t *testing.T) {
	assert := assert.New(t)
	r := schema.NewResolver(schema.Postgres)
	rnd := rand.New(rand.NewSource(1))
	alphabet := []rune("abcXYZ019_-. $é")

	for i := 0; i < 1000; i++ {
		n := 1 + rnd.Intn(20)
		name := make([]rune, n)
		for j := range name {
			name[j] = alphabet[rnd.Intn(len(alphabet))]
		}
		once, err := r.Correct(string(name))
		if err != nil {
			continue
		}
		twice, err := r.Correct(once)
		assert.NoError(err)
		assert.Equal(once, twice, "correcting %q", string(name))
	}
}

func Test_Resolver_Schema(t *testing.T) {
	assert := assert.New(t)

	t.Run("PostgresDefault", func(t *testing.T) {
		name, err := schema.NewResolver(schema.Postgres).Schema("")
		assert.NoError(err)
		assert.Equal("public", name)
	})

	t.Run("SQLServerDefault", func(t *testing.T) {
		name, err := schema.NewResolver(schema.SQLServer).Schema("  ")
		assert.NoError(err)
		assert.Equal("dbo", name)
	})

	t.Run("Corrected", func(t *testing.T) {
		name, err := schema.NewResolver(schema.Postgres).Schema("Billing")
		assert.NoError(err)
		assert.Equal("billing", name)
	})
}

////////////////////////////////////////////////////////////////////////////////
// LOCK KEY

func Test_LockKey_Golden(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int64(1297642771460747643), schema.DeriveLockKey("public", schema.ScheduledJobsPurpose))
	assert.Equal(int64(242175475146308822), schema.DeriveLockKey("dbo", schema.ScheduledJobsPurpose))
	assert.Equal(int64(-3318153587648176329), schema.DeriveLockKey("orders", schema.ScheduledJobsPurpose))

	assert.Equal(int32(-1538828734), schema.FoldLockKey32(schema.DeriveLockKey("public", schema.ScheduledJobsPurpose)))
	assert.Equal(int32(-1036755559), schema.FoldLockKey32(schema.DeriveLockKey("dbo", schema.ScheduledJobsPurpose)))
}

func Test_LockKey_Deterministic(t *testing.T) {
	assert := assert.New(t)
	for i := 0; i < 10; i++ {
		assert.Equal(schema.DeriveLockKey("tenant", "scheduled-jobs"), schema.DeriveLockKey("tenant", "scheduled-jobs"))
	}
	assert.NotEqual(schema.DeriveLockKey("tenant", "scheduled-jobs"), schema.DeriveLockKey("tenant", "other"))
}

func Test_LockKey_Collisions(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(42))
	seen := make(map[int64]string, 100000)
	folded := 0
	seen32 := make(map[int32]struct{}, 100000)

	for i := 0; i < 100000; i++ {
		s := fmt.Sprintf("tenant_%d_%x", i, rnd.Int63())
		key := schema.DeriveLockKey(s, schema.ScheduledJobsPurpose)
		if prev, exists := seen[key]; exists {
			assert.Fail("collision", "%q and %q", prev, s)
		}
		seen[key] = s
		if _, exists := seen32[schema.FoldLockKey32(key)]; exists {
			folded++
		}
		seen32[schema.FoldLockKey32(key)] = struct{}{}
	}

	// Expected 32-bit collisions for 1e5 keys is about 1.2
	assert.Less(folded, 20)
}

////////////////////////////////////////////////////////////////////////////////
// SETTINGS

func Test_Settings_001(t *testing.T) {
	assert := assert.New(t)

	t.Run("DefaultSchema", func(t *testing.T) {
		s, err := schema.NewSettings(schema.Postgres, "postgres://localhost/db", "")
		assert.NoError(err)
		assert.Equal("public", s.Schema())
		assert.Equal("postgres://localhost/db", s.ConnectionString())
		assert.Equal(schema.DeriveLockKey("public", schema.ScheduledJobsPurpose), s.ScheduledJobLockID())
		assert.False(s.IsZero())
	})

	t.Run("WithSchema", func(t *testing.T) {
		s, err := schema.NewSettings(schema.Postgres, "postgres://localhost/db", "")
		assert.NoError(err)
		s2, err := s.WithSchema("Orders")
		assert.NoError(err)
		assert.Equal("orders", s2.Schema())
		assert.Equal(schema.DeriveLockKey("orders", schema.ScheduledJobsPurpose), s2.ScheduledJobLockID())
		assert.Equal("public", s.Schema())
	})

	t.Run("MissingConnection", func(t *testing.T) {
		_, err := schema.NewSettings(schema.Postgres, " ", "orders")
		assert.ErrorIs(err, schema.ErrMissingConnection)
		assert.ErrorIs(err, schema.ErrConfiguration)
	})

	t.Run("InvalidSchema", func(t *testing.T) {
		_, err := schema.NewSettings(schema.Postgres, "postgres://localhost/db", "---")
		assert.ErrorIs(err, schema.ErrInvalidName)
		assert.NotErrorIs(err, schema.ErrConfiguration)
	})

	t.Run("StringHidesConnection", func(t *testing.T) {
		s, err := schema.NewSettings(schema.SQLServer, "password=secret", "")
		assert.NoError(err)
		assert.Equal("dbo", s.Schema())
		assert.NotContains(s.String(), "secret")
	})

	t.Run("Zero", func(t *testing.T) {
		assert.True(schema.Settings{}.IsZero())
	})
}

////////////////////////////////////////////////////////////////////////////////
// ERRORS

func Test_Errors_001(t *testing.T) {
	assert := assert.New(t)

	assert.ErrorIs(schema.ErrNotRegistered.With("postgresql"), schema.ErrConfiguration)
	assert.ErrorIs(schema.ErrMultipleRegistered.With("postgresql"), schema.ErrConfiguration)
	assert.NotErrorIs(schema.ErrNotRegistered.With("postgresql"), schema.ErrMultipleRegistered)
	assert.NotErrorIs(schema.ErrConfiguration, schema.ErrNotRegistered)
	assert.Equal("transport not registered: postgresql", schema.ErrNotRegistered.With("postgresql").Error())
}

////////////////////////////////////////////////////////////////////////////////
// ROW BINDING

func Test_Envelope_Insert(t *testing.T) {
	assert := assert.New(t)

	t.Run("Send", func(t *testing.T) {
		bind := pg.NewBind("pgbus.send", "SEND", "pgbus.schedule", "SCHEDULE")
		e := schema.NewEnvelope("OrderPlaced", []byte("{}"))
		query, err := e.Insert(bind)
		assert.NoError(err)
		assert.Equal("SEND", query)
		assert.Equal(e.ID, bind.Get("id"))
		assert.Equal("OrderPlaced", bind.Get("message_type"))
	})

	t.Run("Schedule", func(t *testing.T) {
		bind := pg.NewBind("pgbus.send", "SEND", "pgbus.schedule", "SCHEDULE")
		e := schema.NewEnvelope("OrderPlaced", nil)
		at := e.Timestamp.Add(60e9)
		e.ScheduledTime = &at
		query, err := e.Insert(bind)
		assert.NoError(err)
		assert.Equal("SCHEDULE", query)
		assert.Equal(at, bind.Get("execution_time"))
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := schema.Envelope{}.Insert(pg.NewBind())
		assert.ErrorIs(err, pg.ErrBadParameter)
	})
}

func Test_QueueName_Select(t *testing.T) {
	assert := assert.New(t)

	t.Run("Pop", func(t *testing.T) {
		bind := pg.NewBind("pgbus.pop", "POP")
		query, err := schema.QueueName("orders").Select(bind, pg.Delete)
		assert.NoError(err)
		assert.Equal("POP", query)
		assert.Equal("pgbus_queue_orders", bind.Get("table"))
		assert.Equal("pgbus_queue_orders_scheduled", bind.Get("scheduled"))
		assert.Equal("pgbus_queue_orders_due", bind.Get("index"))
		assert.Equal("orders", bind.Get("queue"))
	})

	t.Run("Uncorrected", func(t *testing.T) {
		_, err := schema.QueueName("Orders").Select(pg.NewBind(), pg.Delete)
		assert.ErrorIs(err, schema.ErrInvalidName)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := schema.QueueName("orders").Select(pg.NewBind(), pg.Insert)
		assert.ErrorIs(err, pg.ErrNotImplemented)
	})

	t.Run("DueLimit", func(t *testing.T) {
		bind := pg.NewBind("pgbus.move_due", "MOVE")
		query, err := schema.DueRequest{Queue: "orders", Limit: 1e6}.Select(bind, pg.List)
		assert.NoError(err)
		assert.Equal("MOVE", query)
		assert.Equal(schema.MaxBatchSize, bind.Get("limit"))
	})
}

func Test_LockHolder_Select(t *testing.T) {
	assert := assert.New(t)

	bind := pg.NewBind("pgbus.lock_holder", "HOLDER")
	query, err := schema.LockHolder{Key: -1}.Select(bind, pg.Get)
	assert.NoError(err)
	assert.Equal("HOLDER", query)
	assert.Equal(int64(0xFFFFFFFF), bind.Get("classid"))
	assert.Equal(int64(0xFFFFFFFF), bind.Get("objid"))
}
