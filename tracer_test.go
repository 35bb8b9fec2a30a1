package pg

import (
	"context"
	"errors"
	"testing"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	assert "github.com/stretchr/testify/assert"
)

func Test_Tracer_001(t *testing.T) {
	assert := assert.New(t)

	t.Run("SpanName", func(t *testing.T) {
		assert.Equal("pgbus.query.select", spanName("  SELECT 1", nil))
		assert.Equal("pgbus.query", spanName("", nil))
		assert.Equal("send", spanName("INSERT", []any{pgx.NamedArgs{TraceSpanNameArg: "send"}}))
	})

	t.Run("Query", func(t *testing.T) {
		var sql string
		var values any
		tr := NewTracer(func(_ context.Context, query string, args any, err error) {
			sql, values = query, args
			assert.NoError(err)
		})
		ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: " SELECT 1 ", Args: []any{1}})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
		assert.Equal("SELECT 1", sql)
		assert.Equal(1, values)
	})

	t.Run("QueryEndWithoutStart", func(t *testing.T) {
		called := false
		tr := NewTracer(func(context.Context, string, any, error) { called = true })
		tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		assert.False(called)
	})

	t.Run("Batch", func(t *testing.T) {
		failed := errors.New("failed")
		var got []error
		tr := NewTracer(func(_ context.Context, _ string, _ any, err error) {
			got = append(got, err)
		})
		batch := new(pgx.Batch)
		batch.Queue("SELECT 1")
		batch.Queue("SELECT 2")
		ctx := tr.TraceBatchStart(context.Background(), nil, pgx.TraceBatchStartData{Batch: batch})
		tr.TraceBatchQuery(ctx, nil, pgx.TraceBatchQueryData{SQL: "SELECT 1"})
		tr.TraceBatchQuery(ctx, nil, pgx.TraceBatchQueryData{SQL: "SELECT 2", Err: failed})
		tr.TraceBatchEnd(ctx, nil, pgx.TraceBatchEndData{Err: failed})
		assert.Equal([]error{nil, failed}, got)
	})
}
