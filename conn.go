package pg

import (
	"context"
	"errors"

	// Packages
	pgx "github.com/jackc/pgx/v5"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Conn runs statements against the pool, or within a transaction. Statements
// are bound to the variables and named queries carried by the connection.
type Conn interface {
	// Return a connection with additional bound variables
	With(...any) Conn

	// Return a connection with named statements bound, so that ${key}
	// expands to the statement text
	WithQueries(...*Queries) Conn

	// Run fn within a transaction (or a savepoint when nested). The
	// transaction is committed when fn returns nil, and rolled back otherwise
	Tx(context.Context, func(Conn) error) error

	// Queue inserts made by fn, and send them in a single round trip
	Bulk(context.Context, func(Conn) error) error

	// Execute a statement which returns no rows
	Exec(context.Context, string) error

	// Insert rows, scanning any returned rows into the reader
	Insert(context.Context, Reader, Writer) error

	// Delete rows, returning ErrNotFound when nothing was deleted
	Delete(context.Context, Reader, Selector) error

	// Get one row, returning ErrNotFound when there is none
	Get(context.Context, Reader, Selector) error

	// List rows, which succeeds when there are none
	List(context.Context, Reader, Selector) error
}

// Op is the kind of statement a Selector is asked to produce
type Op uint

// Row is a pgx.Row for scanning query results
type Row pgx.Row

// Reader scans one returned row
type Reader interface {
	Scan(Row) error
}

// Writer binds the fields of a row to insert, and returns the statement
type Writer interface {
	Insert(*Bind) (string, error)
}

// Selector binds the parameters for an operation, and returns the statement
type Selector interface {
	Select(*Bind, Op) (string, error)
}

// conn runs statements on a pgx.Tx, which is either a transaction or the
// pool wrapped to look like one
type conn struct {
	tx   pgx.Tx
	bind *Bind
}

var _ Conn = (*conn)(nil)

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	None Op = iota
	Get
	Insert
	Delete
	List
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (o Op) String() string {
	switch o {
	case Get:
		return "GET"
	case Insert:
		return "INSERT"
	case Delete:
		return "DELETE"
	case List:
		return "LIST"
	}
	return "NONE"
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (c *conn) With(params ...any) Conn {
	return &conn{c.tx, c.bind.Copy(params...)}
}

func (c *conn) WithQueries(queries ...*Queries) Conn {
	return &conn{c.tx, c.bind.withQueries(queries...)}
}

func (c *conn) Tx(ctx context.Context, fn func(Conn) error) error {
	tx, err := c.tx.Begin(ctx)
	if err != nil {
		return pgerror(err)
	}
	if err := fn(&conn{tx, c.bind.Copy()}); err != nil {
		return errors.Join(pgerror(err), tx.Rollback(ctx))
	}
	return pgerror(tx.Commit(ctx))
}

func (c *conn) Bulk(ctx context.Context, fn func(Conn) error) error {
	batch := &bulkconn{conn: conn{c.tx, c.bind}, batch: new(pgx.Batch)}
	if err := fn(batch); err != nil {
		return pgerror(err)
	}
	return batch.send(ctx)
}

func (c *conn) Exec(ctx context.Context, query string) error {
	return pgerror(c.bind.Exec(ctx, c.tx, query))
}

func (c *conn) Insert(ctx context.Context, reader Reader, writer Writer) error {
	query, err := writer.Insert(c.bind)
	if err != nil {
		return err
	}
	return c.run(ctx, query, reader)
}

func (c *conn) Delete(ctx context.Context, reader Reader, sel Selector) error {
	return c.selectAndRun(ctx, Delete, reader, sel)
}

func (c *conn) Get(ctx context.Context, reader Reader, sel Selector) error {
	return c.selectAndRun(ctx, Get, reader, sel)
}

func (c *conn) List(ctx context.Context, reader Reader, sel Selector) error {
	err := c.selectAndRun(ctx, List, reader, sel)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c *conn) selectAndRun(ctx context.Context, op Op, reader Reader, sel Selector) error {
	query, err := sel.Select(c.bind, op)
	if err != nil {
		return err
	}
	return c.run(ctx, query, reader)
}

// run executes the query, scanning each row into the reader. ErrNotFound is
// returned when a reader is given and no rows are returned.
func (c *conn) run(ctx context.Context, query string, reader Reader) error {
	if reader == nil {
		return pgerror(c.bind.Exec(ctx, c.tx, query))
	}

	rows, err := c.bind.Query(ctx, c.tx, query)
	if err != nil {
		return pgerror(err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := reader.Scan(rows); err != nil {
			return pgerror(err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return pgerror(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
