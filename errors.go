package pg

import (
	"context"
	"errors"
	"fmt"

	// Packages
	pgx "github.com/jackc/pgx/v5"
	pgconn "github.com/jackc/pgx/v5/pgconn"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Err is an error kind. Wrap it with With or Withf and match it with errors.Is.
type Err int

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	ErrSuccess Err = iota
	ErrBadParameter
	ErrNotFound
	ErrNotImplemented
	ErrConflict
	ErrConnection
)

// PostgreSQL error codes which indicate that an object already exists
const (
	codeUniqueViolation = "23505"
	codeDuplicateSchema = "42P06"
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
)

// PostgreSQL error codes which indicate that a database object is missing
const (
	codeUndefinedTable  = "42P01"
	codeInvalidSchema   = "3F000"
	codeUndefinedObject = "42704"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e Err) Error() string {
	switch e {
	case ErrSuccess:
		return "success"
	case ErrBadParameter:
		return "bad parameter"
	case ErrNotFound:
		return "not found"
	case ErrNotImplemented:
		return "not implemented"
	case ErrConflict:
		return "conflict"
	case ErrConnection:
		return "connection error"
	}
	return fmt.Sprintf("error code %d", int(e))
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// With returns the error kind wrapped with additional context
func (e Err) With(args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprint(args...))
}

// Withf returns the error kind wrapped with formatted context
func (e Err) Withf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// IsExists returns true if the error reports that a database object or row
// already exists. Concurrent "CREATE ... IF NOT EXISTS" statements can race
// on the system catalogs and report these codes even though the object is there.
func IsExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return errors.Is(err, ErrConflict)
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeDuplicateSchema, codeDuplicateTable, codeDuplicateObject:
		return true
	}
	return false
}

// IsNotExists returns true if the error reports that a table or schema
// does not exist
func IsNotExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeUndefinedTable, codeInvalidSchema, codeUndefinedObject:
		return true
	}
	return false
}

// IsConnection returns true if the error indicates the connection to the
// server is unusable.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P01-57P03 are admin shutdown/termination
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:3] == "57P")
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func pgerror(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.Join(ErrConflict.With(pgErr.Message), err)
	}
	return err
}
