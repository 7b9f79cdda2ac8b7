package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector provides Prometheus metrics for query and extract operations
type MetricsCollector struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheEntries      prometheus.Gauge
	registry          *prometheus.Registry
}

var _ Collector = (*MetricsCollector)(nil)

// NewCollector creates a new Prometheus metrics collector on a private registry
func NewCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airesponse_operations_total",
			Help: "Total number of operations by type and status",
		},
		[]string{"operation", "status"},
	)

	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airesponse_operation_duration_seconds",
			Help:    "Duration of whole operations by type and status",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"operation", "status"},
	)

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airesponse_stage_duration_seconds",
			Help:    "Duration of operation stages",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"operation", "stage"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airesponse_errors_total",
			Help: "Total number of errors by operation and error type",
		},
		[]string{"operation", "error_type"},
	)

	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airesponse_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, corrupt)",
		},
		[]string{"result"},
	)

	cacheEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "airesponse_cache_entries",
			Help: "Current number of entries in the response cache",
		},
	)

	registry.MustRegister(operationsTotal, operationDuration, stageDuration, errorsTotal, cacheLookups, cacheEntries)

	return &MetricsCollector{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
		stageDuration:     stageDuration,
		errorsTotal:       errorsTotal,
		cacheLookups:      cacheLookups,
		cacheEntries:      cacheEntries,
		registry:          registry,
	}
}

// RecordOperation records the completion of an operation
func (m *MetricsCollector) RecordOperation(ctx context.Context, operation string, status string, durationMs int64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation, status).Observe(float64(durationMs) / 1000.0)
}

// RecordStage records the duration of a specific stage within an operation
func (m *MetricsCollector) RecordStage(ctx context.Context, operation string, stage string, durationMs int64) {
	m.stageDuration.WithLabelValues(operation, stage).Observe(float64(durationMs) / 1000.0)
}

// RecordError records an error occurrence
func (m *MetricsCollector) RecordError(ctx context.Context, operation string, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordCacheLookup counts a cache lookup outcome
func (m *MetricsCollector) RecordCacheLookup(ctx context.Context, result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetCacheEntries sets the current cache size
func (m *MetricsCollector) SetCacheEntries(ctx context.Context, count int64) {
	m.cacheEntries.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}
