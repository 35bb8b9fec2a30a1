package schema

import (
	"fmt"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Err is a transport configuration error kind, matched with errors.Is
type Err int

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	// ErrConfiguration is returned for any configuration mistake, and
	// is always fatal at startup
	ErrConfiguration Err = iota + 1

	// ErrNotRegistered, ErrMultipleRegistered and ErrMissingConnection
	// also match ErrConfiguration
	ErrNotRegistered
	ErrMultipleRegistered
	ErrMissingConnection

	// ErrInvalidName is returned when a name cannot be made into an
	// identifier
	ErrInvalidName
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e Err) Error() string {
	switch e {
	case ErrConfiguration:
		return "configuration error"
	case ErrNotRegistered:
		return "transport not registered"
	case ErrMultipleRegistered:
		return "multiple transports registered"
	case ErrMissingConnection:
		return "missing connection string"
	case ErrInvalidName:
		return "invalid name"
	}
	return fmt.Sprintf("transport error %d", int(e))
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Is makes the configuration sub-kinds match ErrConfiguration
func (e Err) Is(target error) bool {
	kind, ok := target.(Err)
	if !ok {
		return false
	}
	if kind == e {
		return true
	}
	return kind == ErrConfiguration && e.configuration()
}

// With returns the error kind wrapped with additional context
func (e Err) With(args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprint(args...))
}

// Withf returns the error kind wrapped with formatted context
func (e Err) Withf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e Err) configuration() bool {
	switch e {
	case ErrNotRegistered, ErrMultipleRegistered, ErrMissingConnection:
		return true
	}
	return false
}
