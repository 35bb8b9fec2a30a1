package main

import (
	"context"
	"time"

	// Packages
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	scheduler "github.com/mutablelogic/go-pgbus/pkg/scheduler"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
	prometheus "github.com/prometheus/client_golang/prometheus"
	zap "go.uber.org/zap"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type RunCommand struct {
	Queues          []string      `arg:"" optional:"" name:"queue" help:"Queues to receive from"`
	Workers         int           `name:"workers" help:"Receivers for each queue" default:"1"`
	PollingInterval time.Duration `name:"polling-interval" help:"Interval between polls when no notification arrives" default:"5s"`
	Scheduler       bool          `name:"scheduler" negatable:"" help:"Dispatch scheduled messages when holding the lock" default:"true"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	shutdownTimeout = 5 * time.Second
)

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunCommand) Run(ctx *Globals) error {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	app, err := ctx.connect(m)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	// Listen to queues, logging each message received
	for _, name := range cmd.Queues {
		c, err := app.expr.ListenToQueue(name)
		if err != nil {
			return err
		}
		log := ctx.log.With(zap.String("queue", c.Queue().EndpointName()))
		c.Workers(cmd.Workers).PollingInterval(cmd.PollingInterval).Handle(func(_ context.Context, e *schema.Envelope) error {
			log.Info("received", zap.Stringer("id", e.ID), zap.String("type", e.MessageType), zap.Int("size", len(e.Body)))
			return nil
		})
		if err := c.Err(); err != nil {
			return err
		}
	}

	// Create the durable table and queue tables
	if err := app.expr.Extension().Store().Provision(ctx.ctx); err != nil {
		return err
	}
	if err := app.transport.Provision(ctx.ctx); err != nil {
		return err
	}
	if err := reg.Register(app.transport.Collector()); err != nil {
		return err
	}

	// Create the coordinator
	cfg, err := scheduler.ConfigFromEnv()
	if err != nil {
		return err
	}
	coordinator, err := app.expr.Extension().Coordinator(
		scheduler.WithConfig(cfg),
		scheduler.WithLogger(ctx.log.With(zap.String("schema", app.expr.Settings().Schema()))),
		scheduler.WithMetrics(m),
		scheduler.WithTracer(ctx.tracer),
	)
	if err != nil {
		return err
	}

	// Run until interrupted
	g, child := errgroup.WithContext(ctx.ctx)
	g.Go(func() error {
		return app.transport.Run(child)
	})
	if cmd.Scheduler {
		g.Go(func() error {
			return coordinator.Run(child)
		})
	}
	if ctx.Metrics != "" {
		server := metrics.NewServer(ctx.Metrics, reg)
		ctx.log.Info("serving metrics", zap.String("addr", server.Addr()))
		g.Go(func() error {
			return server.Run(child, shutdownTimeout)
		})
	}
	ctx.log.Info("running", zap.Stringer("settings", app.expr.Settings()), zap.Int("queues", len(cmd.Queues)))
	return g.Wait()
}
