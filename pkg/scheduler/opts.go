package scheduler

import (
	// Packages
	clock "github.com/juju/clock"
	pg "github.com/mutablelogic/go-pgbus"
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	trace "go.opentelemetry.io/otel/trace"
	zap "go.uber.org/zap"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for a coordinator
type Opt func(*opts) error

type opts struct {
	Config
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   clock.Clock
	hook    StateHook
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithConfig sets the timing of the coordinator
func WithConfig(cfg Config) Opt {
	return func(o *opts) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.Config = cfg
		return nil
	}
}

func WithLogger(log *zap.Logger) Opt {
	return func(o *opts) error {
		if log == nil {
			return pg.ErrBadParameter.With("nil logger")
		}
		o.log = log
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) Opt {
	return func(o *opts) error {
		o.metrics = m
		return nil
	}
}

// WithTracer sets the tracer for a span around each dispatch tick
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock sets the time source for waits and retries
func WithClock(c clock.Clock) Opt {
	return func(o *opts) error {
		if c == nil {
			return pg.ErrBadParameter.With("nil clock")
		}
		o.clock = c
		return nil
	}
}

// WithStateHook sets a function called on every state change
func WithStateHook(fn StateHook) Opt {
	return func(o *opts) error {
		o.hook = fn
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(opt []Opt) (opts, error) {
	o := opts{
		Config: DefaultConfig(),
		log:    zap.NewNop(),
		clock:  clock.WallClock,
	}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	return o, nil
}
