// Package metrics defines the prometheus collectors exported by the server.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "smokewatch"

// Metrics groups the collectors updated by ingestion and transport code.
type Metrics struct {
	// ReadingsTotal counts stored readings by source.
	ReadingsTotal *prometheus.CounterVec
	// PayloadRejectedTotal counts payloads discarded by adapters by source.
	PayloadRejectedTotal *prometheus.CounterVec
	// AlarmTransitionsTotal counts logged alarm transitions by type.
	AlarmTransitionsTotal *prometheus.CounterVec
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration observes HTTP request latency by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		ReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readings_total",
				Help:      "Total number of telemetry readings stored.",
			},
			[]string{"source"},
		),
		PayloadRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_rejected_total",
				Help:      "Total number of inbound payloads discarded as undecodable.",
			},
			[]string{"source"},
		),
		AlarmTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alarm_transitions_total",
				Help:      "Total number of alarm transitions logged.",
			},
			[]string{"type"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Register adds the collectors, state gauges and the Go runtime collectors to reg.
// devices and logEntries are sampled at scrape time.
func (m *Metrics) Register(reg prometheus.Registerer, devices, logEntries func() int) error {
	toRegister := []prometheus.Collector{
		m.ReadingsTotal,
		m.PayloadRejectedTotal,
		m.AlarmTransitionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "devices",
				Help:      "Number of devices with a current record.",
			},
			func() float64 { return float64(devices()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alarm_log_entries",
				Help:      "Number of alarm transitions currently retained.",
			},
			func() float64 { return float64(logEntries()) },
		),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}

	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	return nil
}
