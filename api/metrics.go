package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the API client.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs the client metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshop_api_requests_total",
			Help: "Total marketplace API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookshop_api_request_duration_seconds",
			Help:    "Marketplace API request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshop_api_errors_total",
			Help: "Total marketplace API errors by type.",
		},
		[]string{"error_type"},
	)

	if registry != nil {
		registry.MustRegister(requests, requestDuration, errorsTotal)
	}

	return &Metrics{
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest counts a finished request.
func (m *Metrics) IncRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
