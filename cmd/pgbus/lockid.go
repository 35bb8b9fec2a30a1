package main

import (
	"errors"
	"fmt"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	schema "github.com/mutablelogic/go-pgbus/pkg/transport/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type LockIDCommand struct {
	Schema string `arg:"" optional:"" name:"schema" help:"Schema name, defaults to --schema or public"`
	Holder bool   `name:"holder" help:"Also print the process which holds the lock"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *LockIDCommand) Run(ctx *Globals) error {
	name := cmd.Schema
	if name == "" {
		name = ctx.Schema
	}
	name, err := schema.NewResolver(schema.Postgres).Schema(name)
	if err != nil {
		return err
	}
	key := schema.DeriveLockKey(name, schema.ScheduledJobsPurpose)
	fmt.Printf("schema=%s key=%d key32=%d\n", name, key, schema.FoldLockKey32(key))
	if !cmd.Holder {
		return nil
	}

	// Report the holder of the lock
	ctx.Schema = name
	app, err := ctx.connect(nil)
	if err != nil {
		return err
	}
	defer app.pool.Close()
	holder, err := app.transport.LockHolder(ctx.ctx)
	if errors.Is(err, pg.ErrNotFound) {
		fmt.Println("holder=none")
		return nil
	} else if err != nil {
		return err
	}
	fmt.Printf("holder=%d\n", holder.PID)
	return nil
}
