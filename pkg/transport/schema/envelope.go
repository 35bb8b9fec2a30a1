package schema

import (
	"strings"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	pg "github.com/mutablelogic/go-pgbus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Envelope is a message stored in a queue table. The body is opaque.
type Envelope struct {
	ID            uuid.UUID  `json:"id"`
	MessageType   string     `json:"message_type,omitempty"`
	Body          []byte     `json:"body,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	KeepUntil     *time.Time `json:"keep_until,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// EnvelopeList collects envelopes when more than one row is returned
type EnvelopeList struct {
	Body []Envelope `json:"body,omitempty"`
}

// QueueName selects the tables for one corrected queue name
type QueueName string

// DueRequest moves scheduled messages which are due into the ready table
type DueRequest struct {
	Queue string
	Limit int
}

// ExpiredRequest deletes messages past their keep_until time
type ExpiredRequest struct {
	Queue string
}

// QueueDepth is the number of ready and scheduled messages in a queue
type QueueDepth struct {
	Queue     string `json:"queue"`
	Ready     uint64 `json:"ready"`
	Scheduled uint64 `json:"scheduled"`
}

// QueueListRequest lists the queues which have tables in the schema
type QueueListRequest struct{}

// QueueList is the sorted list of queue names with both tables present
type QueueList struct {
	tables map[string]bool
	Body   []string `json:"body,omitempty"`
}

// RowCount counts returned rows
type RowCount int

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewEnvelope returns an envelope with a new id and the current time
func NewEnvelope(messageType string, body []byte) *Envelope {
	return &Envelope{
		ID:          uuid.New(),
		MessageType: messageType,
		Body:        body,
		Timestamp:   time.Now().UTC(),
	}
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e Envelope) String() string {
	return stringify(e)
}

func (q QueueDepth) String() string {
	return stringify(q)
}

////////////////////////////////////////////////////////////////////////////////
// READER

func (e *Envelope) Scan(row pg.Row) error {
	return row.Scan(&e.ID, &e.MessageType, &e.Body, &e.ScheduledTime, &e.KeepUntil, &e.Timestamp)
}

func (l *EnvelopeList) Scan(row pg.Row) error {
	var e Envelope
	if err := e.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, e)
	return nil
}

// Scan collects table names, and keeps the queues which have a ready
// table and a scheduled table
func (l *QueueList) Scan(row pg.Row) error {
	var table string
	if err := row.Scan(&table); err != nil {
		return err
	}
	if l.tables == nil {
		l.tables = make(map[string]bool)
	}
	l.tables[table] = true

	var name string
	if strings.HasSuffix(table, ScheduledTableSuffix) {
		name = strings.TrimSuffix(strings.TrimPrefix(table, QueueTablePrefix), ScheduledTableSuffix)
		if !l.tables[QueueTable(name)] {
			return nil
		}
	} else {
		name = strings.TrimPrefix(table, QueueTablePrefix)
		if !l.tables[ScheduledTable(name)] {
			return nil
		}
	}
	if validName(name) {
		l.Body = append(l.Body, name)
	}
	return nil
}

func (q *QueueDepth) Scan(row pg.Row) error {
	return row.Scan(&q.Queue, &q.Ready, &q.Scheduled)
}

// Scan ignores the row contents
func (c *RowCount) Scan(row pg.Row) error {
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		return err
	}
	*c++
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// WRITER

// Insert binds the envelope, and returns the statement for the ready table,
// or the scheduled table when the envelope has a scheduled time. The queue
// tables are bound by the caller with QueueName.Bind.
func (e Envelope) Insert(bind *pg.Bind) (string, error) {
	if e.ID == uuid.Nil {
		return "", pg.ErrBadParameter.With("missing envelope id")
	}
	bind.Set("id", e.ID)
	bind.Set("message_type", e.MessageType)
	bind.Set("body", e.Body)
	bind.Set("keep_until", e.KeepUntil)
	if e.Timestamp.IsZero() {
		bind.Set("timestamp", time.Now().UTC())
	} else {
		bind.Set("timestamp", e.Timestamp)
	}
	if e.ScheduledTime != nil {
		bind.Set("execution_time", *e.ScheduledTime)
		return bind.Replace("${pgbus.schedule}"), nil
	}
	return bind.Replace("${pgbus.send}"), nil
}

////////////////////////////////////////////////////////////////////////////////
// SELECTOR

// Args returns name/value pairs for the table names and notification
// payload of a queue
func (q QueueName) Args() ([]any, error) {
	name := string(q)
	if !validName(name) {
		return nil, ErrInvalidName.Withf("%q is not a corrected queue name", name)
	}
	return []any{
		"queue", name,
		"table", QueueTable(name),
		"scheduled", ScheduledTable(name),
		"index", QueueTablePrefix + name + "_due",
	}, nil
}

// Bind sets the table names and notification payload for a queue
func (q QueueName) Bind(bind *pg.Bind) error {
	args, err := q.Args()
	if err != nil {
		return err
	}
	for i := 0; i < len(args); i += 2 {
		bind.Set(args[i].(string), args[i+1])
	}
	return nil
}

// Select returns the statement to pop the next ready message (delete), or
// count the messages in the queue (get)
func (q QueueName) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if err := q.Bind(bind); err != nil {
		return "", err
	}
	switch op {
	case pg.Delete:
		return bind.Replace("${pgbus.pop}"), nil
	case pg.Get:
		return bind.Replace("${pgbus.count}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported QueueName operation %q", op)
	}
}

func (QueueListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	switch op {
	case pg.List:
		return bind.Replace("${pgbus.queue_list}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported QueueListRequest operation %q", op)
	}
}

func (d DueRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if err := QueueName(d.Queue).Bind(bind); err != nil {
		return "", err
	}
	bind.Set("limit", batchLimit(d.Limit))

	switch op {
	case pg.List:
		return bind.Replace("${pgbus.move_due}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported DueRequest operation %q", op)
	}
}

func (d ExpiredRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if err := QueueName(d.Queue).Bind(bind); err != nil {
		return "", err
	}
	switch op {
	case pg.List:
		return bind.Replace("${pgbus.purge_expired}"), nil
	default:
		return "", pg.ErrNotImplemented.Withf("unsupported ExpiredRequest operation %q", op)
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// A corrected name corrects to itself
func validName(name string) bool {
	corrected, err := NewResolver(Postgres).Correct(name)
	return err == nil && corrected == name
}
