package test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pgbus"
	testcontainers "github.com/testcontainers/testcontainers-go"
	wait "github.com/testcontainers/testcontainers-go/wait"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Container is a PostgreSQL server running in docker
type Container struct {
	testcontainers.Container
	url string
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	pgxImage    = "postgres:17-alpine"
	pgxPort     = "5432/tcp"
	pgxUser     = "postgres"
	pgxPassword = "password"
	pgxTimeout  = 60 * time.Second
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPgxContainer starts a PostgreSQL container with a database called name,
// and returns the container and a connection pool to it
func NewPgxContainer(ctx context.Context, name string, tracer pg.TraceFn) (*Container, pg.PoolConn, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgxImage,
			ExposedPorts: []string{pgxPort},
			Env: map[string]string{
				"POSTGRES_USER":     pgxUser,
				"POSTGRES_PASSWORD": pgxPassword,
				"POSTGRES_DB":       name,
			},
			// The server restarts once after initdb
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(pgxTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, nil, errors.Join(err, container.Terminate(ctx))
	}
	port, err := container.MappedPort(ctx, pgxPort)
	if err != nil {
		return nil, nil, errors.Join(err, container.Terminate(ctx))
	}
	c := &Container{
		Container: container,
		url:       fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgxUser, pgxPassword, net.JoinHostPort(host, port.Port()), name),
	}

	// Create a connection pool
	opts := []pg.Opt{pg.WithURL(c.url)}
	if tracer != nil {
		opts = append(opts, pg.WithTrace(tracer))
	}
	pool, err := pg.NewPool(ctx, opts...)
	if err != nil {
		return nil, nil, errors.Join(err, c.Close(ctx))
	} else if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.Join(err, c.Close(ctx))
	}

	// Return success
	return c, pool, nil
}

// Close stops and removes the container
func (c *Container) Close(ctx context.Context) error {
	return c.Terminate(ctx)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// URL returns the connection string for the database
func (c *Container) URL() string {
	return c.url
}
