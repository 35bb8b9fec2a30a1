package schema

import (
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Settings are the connection string, schema and scheduled job lock id
// shared by a transport and the persistence store. The lock id is derived
// from the schema when the settings are built, and the fields can only be
// read, so the two never disagree.
type Settings struct {
	backend            Backend
	connectionString   string
	schema             string
	scheduledJobLockID int64
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewSettings returns settings for a connection string and an optional
// schema. An empty schema is replaced by the backend default.
func NewSettings(backend Backend, connectionString, schema string) (Settings, error) {
	if strings.TrimSpace(connectionString) == "" {
		return Settings{}, ErrMissingConnection.With("connection string is required")
	}
	name, err := NewResolver(backend).Schema(schema)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		backend:            backend,
		connectionString:   connectionString,
		schema:             name,
		scheduledJobLockID: DeriveLockKey(name, ScheduledJobsPurpose),
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

// String does not include the connection string, which may contain a password
func (s Settings) String() string {
	return stringify(struct {
		Backend            string `json:"backend"`
		Schema             string `json:"schema"`
		ScheduledJobLockID int64  `json:"scheduled_job_lock_id"`
	}{s.backend.String(), s.schema, s.scheduledJobLockID})
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithSchema returns a copy of the settings with a different schema and a
// recomputed lock id
func (s Settings) WithSchema(schema string) (Settings, error) {
	return NewSettings(s.backend, s.connectionString, schema)
}

func (s Settings) Backend() Backend {
	return s.backend
}

func (s Settings) ConnectionString() string {
	return s.connectionString
}

func (s Settings) Schema() string {
	return s.schema
}

func (s Settings) ScheduledJobLockID() int64 {
	return s.scheduledJobLockID
}

// IsZero returns true for settings which were not built with NewSettings
func (s Settings) IsZero() bool {
	return s.connectionString == ""
}
