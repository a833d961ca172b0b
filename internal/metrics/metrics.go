package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus metrics for the order calculation service.
type Metrics struct {
	registry       *prometheus.Registry
	dispatchTotal  *prometheus.CounterVec
	dispatchLat    prometheus.Histogram
	orderErrors    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	snapshotErrors *prometheus.CounterVec
}

// New creates a metrics registry and registers service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercalc_dispatch_total",
		Help: "Total number of dispatched order actions.",
	}, []string{"action"})

	dispatchLat := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ordercalc_dispatch_latency_seconds",
		Help:    "Latency of a dispatch including snapshot fetch and recomputation.",
		Buckets: prometheus.DefBuckets,
	})

	orderErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercalc_order_error_total",
		Help: "Validation results produced after dispatches.",
	}, []string{"error"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ordercalc_active_sessions",
		Help: "Current number of live order sessions.",
	})

	snapshotErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordercalc_snapshot_errors_total",
		Help: "Total number of failed market snapshot reads.",
	}, []string{"source"})

	registry.MustRegister(dispatchTotal, dispatchLat, orderErrors, activeSessions, snapshotErrors)

	return &Metrics{
		registry:       registry,
		dispatchTotal:  dispatchTotal,
		dispatchLat:    dispatchLat,
		orderErrors:    orderErrors,
		activeSessions: activeSessions,
		snapshotErrors: snapshotErrors,
	}
}

// Handler exposes the metrics registry via HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncDispatch increments the dispatch counter.
func (m *Metrics) IncDispatch(action string) {
	m.dispatchTotal.WithLabelValues(action).Inc()
}

// ObserveDispatchLatency records dispatch latency.
func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	m.dispatchLat.Observe(d.Seconds())
}

// IncOrderError counts a validation result.
func (m *Metrics) IncOrderError(key string) {
	m.orderErrors.WithLabelValues(key).Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// IncSnapshotError increments the snapshot error counter.
func (m *Metrics) IncSnapshotError(source string) {
	m.snapshotErrors.WithLabelValues(source).Inc()
}
