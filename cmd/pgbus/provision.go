package main

import (
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ProvisionCommand struct {
	Queues []string `arg:"" optional:"" name:"queue" help:"Queues to create"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ProvisionCommand) Run(ctx *Globals) error {
	app, err := ctx.connect(nil)
	if err != nil {
		return err
	}
	defer app.pool.Close()

	for _, name := range cmd.Queues {
		if _, err := app.transport.Registry().GetOrCreate(name); err != nil {
			return err
		}
	}
	if err := app.expr.Extension().Store().Provision(ctx.ctx); err != nil {
		return err
	}
	if err := app.transport.Provision(ctx.ctx); err != nil {
		return err
	}

	for _, q := range app.transport.Registry().Queues() {
		fmt.Println(q.URI())
	}
	return nil
}
