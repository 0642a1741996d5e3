package ports

import "time"

// MetricsCollector is the interface the execution layer reports
// operational metrics through. Implementations integrate with an
// observability backend such as Prometheus; a nil collector disables
// reporting. Collectors are never invoked per event on the hot path,
// only at batch or lifecycle granularity.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation. The
	// labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric by value.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
