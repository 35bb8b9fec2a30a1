package schema

import (
	"encoding/json"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Backend is the database family, which decides the default schema
type Backend uint

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	Postgres Backend = iota
	SQLServer
)

const (
	// Transport kind, and the scheme of queue addresses
	Protocol = "postgresql"

	// Lock purpose for scheduled message dispatch
	ScheduledJobsPurpose = "scheduled-jobs"

	// Longest corrected name, so that the scheduled table name for a
	// queue fits in a 63 byte identifier
	MaxNameLength = 63 - len(QueueTablePrefix) - len(ScheduledTableSuffix)

	QueueTablePrefix     = "pgbus_queue_"
	ScheduledTableSuffix = "_scheduled"
	IncomingTable        = "pgbus_incoming_envelopes"
	TopicQueueInsert     = "_queue_insert" // pg_notify channel suffix for sends

	DefaultPollingInterval = 5 * time.Second
	DefaultWorkers         = 1
	DefaultBatchSize       = 100
	MaxBatchSize           = 1000
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (b Backend) String() string {
	switch b {
	case Postgres:
		return "postgres"
	case SQLServer:
		return "sqlserver"
	}
	return "unknown"
}

// DefaultSchema returns the schema used when none is given
func (b Backend) DefaultSchema() string {
	switch b {
	case SQLServer:
		return "dbo"
	default:
		return "public"
	}
}

func stringify[T any](v T) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}
