package transport

import (
	"context"
	"time"

	// Packages
	prometheus "github.com/prometheus/client_golang/prometheus"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type collector struct {
	transport *Transport
	timeout   time.Duration
	messages  *prometheus.Desc
}

var _ prometheus.Collector = (*collector)(nil)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	collectTimeout = 10 * time.Second
)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// Collector returns a prometheus collector which reports the number of
// ready and scheduled messages in each queue when scraped
func (t *Transport) Collector() prometheus.Collector {
	return &collector{
		transport: t,
		timeout:   collectTimeout,
		messages: prometheus.NewDesc(
			"pgbus_queue_messages",
			"Number of messages in each queue by state",
			[]string{"schema", "queue", "state"}, nil,
		),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	depths, err := c.transport.QueueDepths(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.messages, err)
		return
	}
	schemaName := c.transport.settings.Schema()
	for _, depth := range depths {
		ch <- prometheus.MustNewConstMetric(c.messages, prometheus.GaugeValue, float64(depth.Ready), schemaName, depth.Queue, "ready")
		ch <- prometheus.MustNewConstMetric(c.messages, prometheus.GaugeValue, float64(depth.Scheduled), schemaName, depth.Queue, "scheduled")
	}
}
