// Package metric provides Prometheus metrics for the httpsink connector.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "httpsink"

// SinkMetrics contains the delivery metrics for one sink writer.
type SinkMetrics struct {
	RecordsBuffered prometheus.Counter
	Flushes         *prometheus.CounterVec
	SendAttempts    prometheus.Counter
	Retries         prometheus.Counter
	Failures        *prometheus.CounterVec
	FlushDuration   prometheus.Histogram
}

// NewSinkMetrics creates the full set of sink metrics.
func NewSinkMetrics() *SinkMetrics {
	return &SinkMetrics{
		RecordsBuffered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "records_buffered_total",
			Help:      "Total number of records accepted into the message buffer",
		}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "flushes_total",
			Help:      "Total number of batch flushes by outcome",
		}, []string{"status"}),
		SendAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "send_attempts_total",
			Help:      "Total number of HTTP send attempts including retries",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "retries_total",
			Help:      "Total number of retried send attempts",
		}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "failures_total",
			Help:      "Total number of terminally failed flushes by reason",
		}, []string{"reason"}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "flush_duration_seconds",
			Help:      "Flush duration in seconds including retries and backoff waits",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register registers all sink metrics with the given registerer.
func (m *SinkMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.RecordsBuffered,
		m.Flushes,
		m.SendAttempts,
		m.Retries,
		m.Failures,
		m.FlushDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry creates a registry pre-populated with process and Go runtime
// collectors alongside the sink metrics.
func NewRegistry(m *SinkMetrics) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler returns an HTTP handler exposing the registry in Prometheus format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
