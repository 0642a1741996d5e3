// Package metrics provides the Prometheus-backed MetricsCollector used
// to observe executor behavior: event throughput, eviction volume,
// window emissions, and history depth across replica groups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/opflow/internal/ports"
)

// Metric names recognized by RecordCounter and RecordGauge. Anything
// else is routed to the generic operation counter or state gauge.
const (
	MetricEventsProcessed = "events_processed"
	MetricRowsEvicted     = "rows_evicted"
	MetricWindowsEmitted  = "windows_emitted"
	MetricHistoryDepth    = "history_depth"
)

// ExecutorMetrics implements the ports.MetricsCollector interface using
// Prometheus. It tracks event throughput per graph and group, eviction
// and emission volume, history ring depth, and batch execution latency.
type ExecutorMetrics struct {
	eventsProcessed *prometheus.CounterVec
	rowsEvicted     *prometheus.CounterVec
	windowsEmitted  *prometheus.CounterVec
	historyDepth    *prometheus.GaugeVec
	batchLatency    *prometheus.HistogramVec
	operationCount  *prometheus.CounterVec
	stateGauges     *prometheus.GaugeVec
}

// NewExecutorMetrics creates an ExecutorMetrics instance registered with
// reg. Passing nil registers in the default Prometheus registry.
func NewExecutorMetrics(reg prometheus.Registerer) *ExecutorMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ExecutorMetrics{
		eventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opflow_events_processed_total",
				Help: "Total number of events absorbed by the executor.",
			},
			[]string{"graph", "group"},
		),
		rowsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opflow_rows_evicted_total",
				Help: "Total number of history rows retracted from windowed operators.",
			},
			[]string{"graph", "group"},
		),
		windowsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opflow_windows_emitted_total",
				Help: "Total number of tumbling windows closed and flushed.",
			},
			[]string{"graph", "group"},
		),
		historyDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opflow_history_depth_rows",
				Help: "Rows currently retained in a group's history ring buffer.",
			},
			[]string{"graph", "group"},
		),
		batchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opflow_batch_duration_seconds",
				Help:    "Wall time spent driving one batch of events across groups.",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
			[]string{"operation", "graph"},
		),
		operationCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opflow_operations_total",
				Help: "Total number of executor operations by outcome.",
			},
			[]string{"operation", "status", "graph"},
		),
		stateGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opflow_executor_state",
				Help: "Current executor state values.",
			},
			[]string{"metric", "graph"},
		),
	}
}

func graphLabel(labels map[string]string) string {
	if g, ok := labels["graph"]; ok {
		return g
	}
	return "unknown"
}

func groupLabel(labels map[string]string) string {
	if g, ok := labels["group"]; ok {
		return g
	}
	return "all"
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in the batch duration histogram.
func (em *ExecutorMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	em.batchLatency.WithLabelValues(operation, graphLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by routing the
// named metric to its counter vector, falling back to the generic
// operation counter for unrecognized names.
func (em *ExecutorMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	graph := graphLabel(labels)
	group := groupLabel(labels)

	switch metric {
	case MetricEventsProcessed:
		em.eventsProcessed.WithLabelValues(graph, group).Add(value)
	case MetricRowsEvicted:
		em.rowsEvicted.WithLabelValues(graph, group).Add(value)
	case MetricWindowsEmitted:
		em.windowsEmitted.WithLabelValues(graph, group).Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "ok"
		}
		em.operationCount.WithLabelValues(metric, status, graph).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting the
// named gauge.
func (em *ExecutorMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	graph := graphLabel(labels)

	switch metric {
	case MetricHistoryDepth:
		em.historyDepth.WithLabelValues(graph, groupLabel(labels)).Set(value)
	default:
		em.stateGauges.WithLabelValues(metric, graph).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// the value as a batch-duration observation, in seconds.
func (em *ExecutorMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	em.batchLatency.WithLabelValues(metric, graphLabel(labels)).Observe(value)
}

// Compile-time verification that ExecutorMetrics implements
// MetricsCollector.
var _ ports.MetricsCollector = (*ExecutorMetrics)(nil)
