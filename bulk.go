package pg

import (
	"context"

	// Packages
	pgx "github.com/jackc/pgx/v5"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// bulkconn collects statements into a batch, which is sent when the Bulk
// function returns. Only Exec and Insert can be batched.
type bulkconn struct {
	conn
	batch *pgx.Batch
}

var _ Conn = (*bulkconn)(nil)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (b *bulkconn) With(params ...any) Conn {
	return &bulkconn{conn{b.tx, b.bind.Copy(params...)}, b.batch}
}

func (b *bulkconn) WithQueries(queries ...*Queries) Conn {
	return &bulkconn{conn{b.tx, b.bind.withQueries(queries...)}, b.batch}
}

func (b *bulkconn) Exec(_ context.Context, query string) error {
	b.bind.Copy().queue(b.batch, query, nil)
	return nil
}

// Insert binds the row immediately. The reader scans the returned row when
// the batch is sent.
func (b *bulkconn) Insert(_ context.Context, reader Reader, writer Writer) error {
	bind := b.bind.Copy()
	query, err := writer.Insert(bind)
	if err != nil {
		return err
	}
	bind.queue(b.batch, query, reader)
	return nil
}

func (b *bulkconn) Tx(context.Context, func(Conn) error) error {
	return ErrNotImplemented.With("transaction in a batch")
}

func (b *bulkconn) Bulk(context.Context, func(Conn) error) error {
	return ErrNotImplemented.With("nested batch")
}

func (b *bulkconn) Delete(context.Context, Reader, Selector) error {
	return ErrNotImplemented.With("delete in a batch")
}

func (b *bulkconn) Get(context.Context, Reader, Selector) error {
	return ErrNotImplemented.With("get in a batch")
}

func (b *bulkconn) List(context.Context, Reader, Selector) error {
	return ErrNotImplemented.With("list in a batch")
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *bulkconn) send(ctx context.Context) error {
	if b.batch.Len() == 0 {
		return nil
	}
	return pgerror(b.tx.SendBatch(ctx, b.batch).Close())
}
