// Package metrics holds the prometheus metrics for the transport and the
// scheduled job coordinator. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	// Packages
	prometheus "github.com/prometheus/client_golang/prometheus"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Metrics struct {
	// Coordinator
	state        *prometheus.GaugeVec
	lockAttempts *prometheus.CounterVec
	faults       prometheus.Counter
	dispatched   *prometheus.CounterVec
	purged       prometheus.Counter

	// Transport
	sent           *prometheus.CounterVec
	handled        *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
}

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	Namespace = "pgbus"

	Coordinator = "coordinator"
	Transport   = "transport"

	// Status label values
	StatusSuccess = "success"
	StatusError   = "error"

	// Lock attempt results
	LockAcquired  = "acquired"
	LockContended = "contended"
	LockError     = "error"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates the metrics and registers them
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Coordinator,
			Name:      "state",
			Help:      "Current coordinator state, one for the active state and zero otherwise",
		}, []string{"state"}),
		lockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Coordinator,
			Name:      "lock_attempts_total",
			Help:      "Scheduled job lock attempts by result",
		}, []string{"result"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Coordinator,
			Name:      "faults_total",
			Help:      "Number of times the coordinator lost its session",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Coordinator,
			Name:      "dispatched_total",
			Help:      "Scheduled messages made ready, by dispatcher",
		}, []string{"dispatcher"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Coordinator,
			Name:      "purged_total",
			Help:      "Expired messages deleted",
		}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Transport,
			Name:      "sent_total",
			Help:      "Messages sent, by queue",
		}, []string{"queue"}),
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Transport,
			Name:      "handled_total",
			Help:      "Messages handled, by queue and status",
		}, []string{"queue", "status"}),
		handleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Transport,
			Name:      "handle_duration_seconds",
			Help:      "Time taken to handle a message, including the transaction",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
	}

	if err := errors.Join(
		reg.Register(m.state),
		reg.Register(m.lockAttempts),
		reg.Register(m.faults),
		reg.Register(m.dispatched),
		reg.Register(m.purged),
		reg.Register(m.sent),
		reg.Register(m.handled),
		reg.Register(m.handleDuration),
	); err != nil {
		return nil, err
	}

	return m, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - COORDINATOR

// SetState marks one state as current, and clears the previous one
func (m *Metrics) SetState(prev, next string) {
	if m == nil {
		return
	}
	if prev != "" {
		m.state.WithLabelValues(prev).Set(0)
	}
	m.state.WithLabelValues(next).Set(1)
}

func (m *Metrics) IncLockAttempt(result string) {
	if m == nil {
		return
	}
	m.lockAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}

func (m *Metrics) AddDispatched(dispatcher string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatched.WithLabelValues(dispatcher).Add(float64(n))
}

func (m *Metrics) AddPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - TRANSPORT

func (m *Metrics) AddSent(queue string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sent.WithLabelValues(queue).Add(float64(n))
}

// ObserveHandled records the result and duration of handling one message
func (m *Metrics) ObserveHandled(queue string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.handled.WithLabelValues(queue, status).Inc()
	m.handleDuration.WithLabelValues(queue).Observe(d.Seconds())
}
