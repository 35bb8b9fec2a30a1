package pg

import (
	"context"
	"strings"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	attribute "go.opentelemetry.io/otel/attribute"
	codes "go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	trace "go.opentelemetry.io/otel/trace"
)

//////////////////////////////////////////////////////////////////////////////
// TYPES

// tracer implements pgx.QueryTracer and pgx.BatchTracer, either calling a
// function or emitting OpenTelemetry spans. It is safe for concurrent use.
type tracer struct {
	TraceFn
	otel trace.Tracer
}

type queryData struct {
	span trace.Span
	sql  string
	args []any
}

type batchData struct {
	span trace.Span
}

type ctxKey struct{}
type batchKey struct{}

// TraceFn is called when a query completes, with the SQL, the arguments
// and the error if any was generated
type TraceFn func(context.Context, string, any, error)

var _ pgx.QueryTracer = (*tracer)(nil)
var _ pgx.BatchTracer = (*tracer)(nil)

//////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// Bind this variable to name the span for a query
	TraceSpanNameArg = "otelspan"

	defaultSpanName = "pgbus.query"
)

//////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewTracer returns a query tracer which calls fn on query end
func NewTracer(fn TraceFn) *tracer {
	return &tracer{TraceFn: fn}
}

// NewOTELTracer returns a query tracer which emits a client span per query
func NewOTELTracer(t trace.Tracer) *tracer {
	return &tracer{otel: t}
}

//////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (t *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qd := &queryData{sql: data.SQL, args: data.Args}
	if t.otel != nil {
		ctx, qd.span = t.otel.Start(ctx, spanName(data.SQL, data.Args),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				attribute.String("db.statement", data.SQL),
			),
		)
	}
	return context.WithValue(ctx, ctxKey{}, qd)
}

func (t *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qd, ok := ctx.Value(ctxKey{}).(*queryData)
	if !ok {
		return
	}
	if qd.span != nil {
		if data.Err != nil {
			qd.span.RecordError(data.Err)
			qd.span.SetStatus(codes.Error, data.Err.Error())
		} else {
			qd.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
		}
		qd.span.End()
	}
	if t.TraceFn != nil {
		t.TraceFn(ctx, strings.TrimSpace(qd.sql), args(qd.args), data.Err)
	}
}

// A batch is traced as one span. The function is called for each queued
// statement as its result is read.
func (t *tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	bd := &batchData{}
	if t.otel != nil {
		ctx, bd.span = t.otel.Start(ctx, defaultSpanName+".batch",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				attribute.Int("db.batch.size", data.Batch.Len()),
			),
		)
	}
	return context.WithValue(ctx, batchKey{}, bd)
}

func (t *tracer) TraceBatchQuery(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	if bd, ok := ctx.Value(batchKey{}).(*batchData); ok && bd.span != nil && data.Err != nil {
		bd.span.RecordError(data.Err)
	}
	if t.TraceFn != nil {
		t.TraceFn(ctx, strings.TrimSpace(data.SQL), args(data.Args), data.Err)
	}
}

func (t *tracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	bd, ok := ctx.Value(batchKey{}).(*batchData)
	if !ok || bd.span == nil {
		return
	}
	if data.Err != nil {
		bd.span.SetStatus(codes.Error, data.Err.Error())
	}
	bd.span.End()
}

//////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// Span name from the bound otelspan variable, or the leading SQL keyword
func spanName(sql string, values []any) string {
	if named, ok := args(values).(pgx.NamedArgs); ok {
		if s, ok := named[TraceSpanNameArg].(string); ok && s != "" {
			return s
		}
	}
	if fields := strings.Fields(sql); len(fields) > 0 {
		return defaultSpanName + "." + strings.ToLower(fields[0])
	}
	return defaultSpanName
}

func args(args []any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return args
	}
}
