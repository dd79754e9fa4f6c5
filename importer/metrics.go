package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the importer.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	ListingsFoundTotal prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics constructs the importer metrics and registers them on registry
// when it is non-nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshop_import_requests_total",
			Help: "Total catalog requests issued by the importer.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookshop_import_request_duration_seconds",
			Help:    "Catalog request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listingsFound := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookshop_import_listings_found_total",
			Help: "Total number of listings sent to the pipeline.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookshop_import_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshop_import_errors_total",
			Help: "Total number of importer errors by type.",
		},
		[]string{"error_type"},
	)

	if registry != nil {
		registry.MustRegister(requests, requestDuration, listingsFound, retries, errorsTotal)
	}

	return &Metrics{
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		ListingsFoundTotal: listingsFound,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a catalog request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncListings increments the listings found counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsFoundTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
