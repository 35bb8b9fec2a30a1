package main

import (
	"fmt"
	"io"
	"os"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type SendCommand struct {
	Queue   string        `arg:"" name:"queue" help:"Queue name"`
	Body    string        `arg:"" optional:"" name:"body" help:"Message body, or - to read standard input"`
	Type    string        `name:"type" help:"Message type"`
	Delay   time.Duration `name:"delay" help:"Deliver after a delay"`
	KeepFor time.Duration `name:"keep-for" help:"Discard if not received within this time"`
	Durable bool          `name:"durable" help:"Store in the durable incoming table instead of the queue"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *SendCommand) Run(ctx *Globals) error {
	body := []byte(cmd.Body)
	if cmd.Body == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		body = data
	}

	app, err := ctx.connect(nil)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	// Create the envelope
	e := schema.NewEnvelope(cmd.Type, body)
	if cmd.KeepFor > 0 {
		until := e.Timestamp.Add(cmd.KeepFor)
		e.KeepUntil = &until
	}

	// Store durably
	if cmd.Durable {
		store := app.expr.Extension().Store()
		if err := store.Provision(ctx.ctx); err != nil {
			return err
		}
		if cmd.Delay > 0 {
			_, err = store.Schedule(ctx.ctx, e, e.Timestamp.Add(cmd.Delay))
		} else {
			_, err = store.Store(ctx.ctx, e)
		}
		if err != nil {
			return err
		}
		fmt.Println(e.ID)
		return nil
	}

	// Send to the queue
	if cmd.Delay > 0 {
		at := e.Timestamp.Add(cmd.Delay)
		e.ScheduledTime = &at
	}
	if err := app.transport.Send(ctx.ctx, cmd.Queue, e); err != nil {
		return err
	}
	fmt.Println(e.ID)
	return nil
}
