package schema

import (
	"time"

	// Packages
	uuid "github.com/google/uuid"
	pg "github.com/mutablelogic/go-pgbus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Status of a durable incoming envelope
type Status string

// IncomingEnvelope is an envelope held in the durable store
type IncomingEnvelope struct {
	Envelope
	Status        Status     `json:"status"`
	ExecutionTime *time.Time `json:"execution_time,omitempty"`
	Attempts      int        `json:"attempts"`
}

type IncomingList struct {
	Body []IncomingEnvelope `json:"body,omitempty"`
}

// IncomingID selects one durable envelope
type IncomingID uuid.UUID

// IncomingListRequest lists envelopes with a status
type IncomingListRequest struct {
	Status Status
	Limit  int
}

// IncomingDueRequest marks scheduled envelopes which are due as incoming
type IncomingDueRequest struct {
	Limit int
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	StatusIncoming  Status = "Incoming"
	StatusScheduled Status = "Scheduled"
)

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e IncomingEnvelope) String() string {
	return stringify(e)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (e *IncomingEnvelope) Scan(row pg.Row) error {
	return row.Scan(&e.ID, &e.Status, &e.ExecutionTime, &e.Attempts, &e.MessageType, &e.Body, &e.KeepUntil, &e.Timestamp)
}

func (l *IncomingList) Scan(row pg.Row) error {
	var e IncomingEnvelope
	if err := e.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, e)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

func (e IncomingEnvelope) Insert(bind *pg.Bind) (string, error) {
	if e.ID == uuid.Nil {
		return "", pg.ErrBadParameter.With("missing envelope id")
	}
	switch e.Status {
	case StatusIncoming:
		bind.Set("execution_time", nil)
	case StatusScheduled:
		if e.ExecutionTime == nil {
			return "", pg.ErrBadParameter.With("scheduled envelope without execution time")
		}
		bind.Set("execution_time", *e.ExecutionTime)
	default:
		return "", pg.ErrBadParameter.Withf("invalid status %q", e.Status)
	}
	bind.Set("id", e.ID)
	bind.Set("status", string(e.Status))
	bind.Set("attempts", e.Attempts)
	bind.Set("message_type", e.MessageType)
	bind.Set("body", e.Body)
	bind.Set("keep_until", e.KeepUntil)
	if e.Timestamp.IsZero() {
		bind.Set("timestamp", time.Now().UTC())
	} else {
		bind.Set("timestamp", e.Timestamp)
	}
	return bind.Replace("${pgbus.incoming_insert}"), nil
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (id IncomingID) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if uuid.UUID(id) == uuid.Nil {
		return "", pg.ErrBadParameter.With("missing envelope id")
	}
	bind.Set("id", uuid.UUID(id))
	switch op {
	case pg.Get:
		return bind.Replace("${pgbus.incoming_get}"), nil
	case pg.Delete:
		return bind.Replace("${pgbus.incoming_delete}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported IncomingID operation %q", op)
	}
}

func (r IncomingListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	status := r.Status
	if status == "" {
		status = StatusIncoming
	}
	bind.Set("status", string(status))
	bind.Set("limit", batchLimit(r.Limit))
	switch op {
	case pg.List:
		return bind.Replace("${pgbus.incoming_list}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported IncomingListRequest operation %q", op)
	}
}

func (r IncomingDueRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	bind.Set("limit", batchLimit(r.Limit))
	switch op {
	case pg.List:
		return bind.Replace("${pgbus.incoming_due}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported IncomingDueRequest operation %q", op)
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func batchLimit(limit int) int {
	if limit <= 0 {
		return DefaultBatchSize
	}
	return min(limit, MaxBatchSize)
}
