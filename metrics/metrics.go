// Package metrics holds the Prometheus collectors of the launcher and the
// server that exposes them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for node startup and the reference node.
type Metrics struct {
	// Time the host spent blocked waiting for the node to become ready
	ReadyWait prometheus.Histogram

	// Startup outcomes: ready, failed, timeout, dropped
	StartupOutcome *prometheus.CounterVec

	// Schema migrations by result: applied, unchanged, failed
	Migrations *prometheus.CounterVec

	// Schemas currently recorded in the node database
	SchemasActive prometheus.Gauge

	// Blob requests by operation and status
	BlobRequests *prometheus.CounterVec

	BlobBytesStored prometheus.Counter
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the collectors and registers them with reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReadyWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "startup_ready_wait_seconds",
			Help:      "Time spent waiting for the node to signal readiness",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StartupOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "startup_outcomes_total",
			Help:      "Node startup outcomes",
		}, []string{"outcome"}),
		Migrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_migrations_total",
			Help:      "Schema migrations by result",
		}, []string{"result"}),
		SchemasActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schemas_active",
			Help:      "Number of schemas recorded in the node database",
		}),
		BlobRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_requests_total",
			Help:      "Blob API requests by operation and status",
		}, []string{"op", "status"}),
		BlobBytesStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_bytes_stored_total",
			Help:      "Bytes accepted by the blob API",
		}),
	}
}

// ObserveReadyWait records how long the host waited and how it ended.
func (m *Metrics) ObserveReadyWait(outcome string, d time.Duration) {
	if m != nil {
		m.ReadyWait.Observe(d.Seconds())
		m.StartupOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementMigration records a migration result.
func (m *Metrics) IncrementMigration(result string) {
	if m != nil {
		m.Migrations.WithLabelValues(result).Inc()
	}
}

// SetSchemasActive records the current schema count.
func (m *Metrics) SetSchemasActive(n int) {
	if m != nil {
		m.SchemasActive.Set(float64(n))
	}
}

// IncrementBlobRequest records a blob API request.
func (m *Metrics) IncrementBlobRequest(op, status string) {
	if m != nil {
		m.BlobRequests.WithLabelValues(op, status).Inc()
	}
}

// AddBlobBytes records stored blob bytes.
func (m *Metrics) AddBlobBytes(n int) {
	if m != nil {
		m.BlobBytesStored.Add(float64(n))
	}
}
