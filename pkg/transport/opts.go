package transport

import (
	"time"

	// Packages
	clock "github.com/juju/clock"
	pg "github.com/mutablelogic/go-pgbus"
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	trace "go.opentelemetry.io/otel/trace"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for a transport
type Opt func(*opts) error

type opts struct {
	log             *zap.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	clock           clock.Clock
	workers         int
	pollingInterval time.Duration
	poolOpts        []pg.Opt
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithLogger sets the logger. The default discards log output.
func WithLogger(log *zap.Logger) Opt {
	return func(o *opts) error {
		if log == nil {
			return pg.ErrBadParameter.With("nil logger")
		}
		o.log = log
		return nil
	}
}

// WithMetrics sets the metrics to record sends and receives
func WithMetrics(m *metrics.Metrics) Opt {
	return func(o *opts) error {
		o.metrics = m
		return nil
	}
}

// WithTracer sets the tracer for spans around sends, receives and dispatch
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock sets the time source for polling
func WithClock(c clock.Clock) Opt {
	return func(o *opts) error {
		if c == nil {
			return pg.ErrBadParameter.With("nil clock")
		}
		o.clock = c
		return nil
	}
}

// WithWorkers sets the default number of receivers for each listener queue
func WithWorkers(n int) Opt {
	return func(o *opts) error {
		if n < 1 {
			return pg.ErrBadParameter.Withf("workers must be at least one, got %d", n)
		}
		o.workers = n
		return nil
	}
}

// WithPollingInterval sets the default polling interval for listener queues
func WithPollingInterval(d time.Duration) Opt {
	return func(o *opts) error {
		if d < time.Millisecond {
			return pg.ErrBadParameter.Withf("polling interval must be at least 1ms, got %v", d)
		}
		o.pollingInterval = d
		return nil
	}
}

// WithPoolOpts adds connection pool options used by Connect
func WithPoolOpts(opt ...pg.Opt) Opt {
	return func(o *opts) error {
		o.poolOpts = append(o.poolOpts, opt...)
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	o := opts{
		log:             zap.NewNop(),
		clock:           clock.WallClock,
		workers:         schema.DefaultWorkers,
		pollingInterval: schema.DefaultPollingInterval,
	}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	return o, nil
}
