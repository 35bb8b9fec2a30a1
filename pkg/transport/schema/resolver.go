package schema

import (
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Resolver corrects queue and schema names into identifiers. All defaulting
// of an empty schema happens here, so the backend default is decided in
// one place.
type Resolver struct {
	backend Backend
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewResolver(backend Backend) Resolver {
	return Resolver{backend: backend}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (r Resolver) Backend() Backend {
	return r.backend
}

// Correct returns a name which is safe as an unquoted identifier and as a
// registry key: trimmed, lower case, with characters outside [a-z0-9_]
// replaced by an underscore, and an underscore prefix when the name starts
// with a digit. Correcting a corrected name returns it unchanged.
// Names which are too long are rejected rather than truncated, so two
// long names can never collide.
func (r Resolver) Correct(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", ErrInvalidName.With("empty name")
	}

	var b strings.Builder
	var alnum bool
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			alnum = true
			b.WriteRune(c)
		case c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	if !alnum {
		return "", ErrInvalidName.Withf("%q has no letters or digits", name)
	}

	result := b.String()
	if result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}
	if len(result) > MaxNameLength {
		return "", ErrInvalidName.Withf("%q is longer than %d characters", result, MaxNameLength)
	}
	return result, nil
}

// Schema returns the corrected schema name, or the backend default when
// the name is empty
func (r Resolver) Schema(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return r.backend.DefaultSchema(), nil
	}
	return r.Correct(name)
}

// QueueTable returns the table name for the ready messages of a corrected
// queue name
func QueueTable(name string) string {
	return QueueTablePrefix + name
}

// ScheduledTable returns the table name for the scheduled messages of a
// corrected queue name
func ScheduledTable(name string) string {
	return QueueTablePrefix + name + ScheduledTableSuffix
}

// Channel returns the notification channel for sends within a schema
func Channel(schema string) string {
	return schema + TopicQueueInsert
}
