package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	pg "github.com/mutablelogic/go-pgbus"
	bus "github.com/mutablelogic/go-pgbus/pkg/bus"
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	otel "github.com/mutablelogic/go-pgbus/pkg/otel"
	persistence "github.com/mutablelogic/go-pgbus/pkg/persistence"
	transport "github.com/mutablelogic/go-pgbus/pkg/transport"
	version "github.com/mutablelogic/go-pgbus/pkg/version"
	global "go.opentelemetry.io/otel"
	trace "go.opentelemetry.io/otel/trace"
	zap "go.uber.org/zap"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	// Debug option
	Debug   bool             `name:"debug" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Print version and exit"`

	// Tracing options
	OtelEndpoint string `name:"otel-endpoint" env:"PGBUS_OTEL_ENDPOINT" help:"OTLP/gRPC collector address (host:port) to export spans to"`
	OtelInsecure bool   `name:"otel-insecure" env:"PGBUS_OTEL_INSECURE" help:"Export spans without TLS"`

	// Database options
	URL    string `name:"url" env:"PGBUS_URL" help:"Database connection string"`
	Schema string `name:"schema" env:"PGBUS_SCHEMA" help:"Schema for queues and envelopes"`

	// Metrics options
	Metrics string `name:"metrics" env:"PGBUS_METRICS_ADDR" help:"Metrics listen address, for example :9090"`

	// Private fields
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
	tracer trace.Tracer
}

type CLI struct {
	Globals
	Run       RunCommand       `cmd:"" name:"run" help:"Receive from queues and dispatch scheduled messages." group:"BUS"`
	Provision ProvisionCommand `cmd:"" name:"provision" help:"Create the schema and queue tables." group:"BUS"`
	Send      SendCommand      `cmd:"" name:"send" help:"Send a message to a queue." group:"BUS"`
	LockID    LockIDCommand    `cmd:"" name:"lock-id" help:"Print the scheduled job lock for a schema." group:"BUS"`
	Ver       VersionCommand   `cmd:"" name:"version" help:"Print version." group:"MISC"`
}

// app holds what a command works with once connected
type app struct {
	options   *bus.Options
	pool      pg.PoolConn
	expr      *persistence.Expression
	metrics   *metrics.Metrics
	transport *transport.Transport
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func main() {
	cli := new(CLI)
	ctx := kong.Parse(cli,
		kong.Name("pgbus"),
		kong.Description("PostgreSQL message bus transport"),
		kong.Vars{
			"version": VersionJSON(),
		},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	// Create the logger
	log, err := cli.Globals.logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer log.Sync()
	cli.Globals.log = log

	// Create the context and cancel function
	cli.Globals.ctx, cli.Globals.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cli.Globals.cancel()

	// Export spans when a collector is set, and flush them before exit
	flush := func() {}
	if cli.Globals.OtelEndpoint != "" {
		provider, err := otel.NewProvider(cli.Globals.ctx, cli.Globals.OtelEndpoint, cli.Globals.OtelInsecure, version.ExecName())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		flush = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				log.Warn("trace shutdown", zap.Error(err))
			}
		}
		global.SetTracerProvider(provider)
		cli.Globals.tracer = provider.Tracer("pgbus")
	}

	// Call the Run() method of the selected parsed command.
	err = ctx.Run(&cli.Globals)
	flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (g *Globals) logger() (*zap.Logger, error) {
	if g.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Connect to the database, and return the persistence extension and
// transport for the schema. The caller closes the pool.
func (g *Globals) connect(m *metrics.Metrics) (*app, error) {
	if g.URL == "" {
		return nil, pg.ErrBadParameter.With("missing --url or PGBUS_URL")
	}
	options := bus.NewOptions()
	expr, err := persistence.UsePersistenceAndTransport(options, g.URL, g.Schema,
		transport.WithLogger(g.log),
		transport.WithMetrics(m),
		transport.WithTracer(g.tracer),
	)
	if err != nil {
		return nil, err
	}

	// Create the pool
	opts := []pg.Opt{pg.WithConnectionString(g.URL)}
	if g.tracer != nil {
		opts = append(opts, pg.WithTracer(g.tracer))
	} else if g.Debug {
		opts = append(opts, pg.WithTrace(func(_ context.Context, query string, args any, err error) {
			g.log.Debug("query", zap.String("sql", query), zap.Any("args", args), zap.Error(err))
		}))
	}
	pool, err := pg.NewPool(g.ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(g.ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := expr.Extension().Attach(pool); err != nil {
		pool.Close()
		return nil, err
	}
	expr.Extension().Store().SetLogger(g.log)

	return &app{
		options:   options,
		pool:      pool,
		expr:      expr,
		metrics:   m,
		transport: expr.Transport(),
	}, nil
}
