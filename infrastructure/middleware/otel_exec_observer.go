// Package middleware provides cross-cutting concerns layered around the
// executor: span-based observation of batch execution and forwarding of
// operational metrics. Nothing here touches the per-event hot path.
package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/opflow/internal/ports"
)

// ExecObserver receives begin/end callbacks around one batch of events
// driven through an executor. Implementations must be cheap relative to
// a batch; they are never called per event.
type ExecObserver interface {
	// BatchStart is called before a batch of numEvents events is driven
	// across numGroups groups. The returned context carries any tracing
	// state the observer wants propagated.
	BatchStart(ctx context.Context, numEvents, numGroups int) context.Context

	// BatchEnd is called after the batch completes. emitted is the number
	// of window emissions observed; err is non-nil if any group failed.
	BatchEnd(ctx context.Context, emitted int, elapsed time.Duration, err error)
}

var _ ExecObserver = (*OTelExecObserver)(nil)

// OTelExecObserver implements ExecObserver using OpenTelemetry tracing.
// It opens a span per batch, annotates it with graph and volume
// attributes, records emission counts as span events, and forwards
// batch latency to the metrics collector.
type OTelExecObserver struct {
	metrics   ports.MetricsCollector
	graphName string
	span      trace.Span
}

// NewOTelExecObserver creates an observer for the named graph. metrics
// may be nil, in which case only spans are produced.
func NewOTelExecObserver(metrics ports.MetricsCollector, graphName string) *OTelExecObserver {
	return &OTelExecObserver{metrics: metrics, graphName: graphName}
}

// BatchStart implements the ExecObserver interface. It starts an
// OpenTelemetry span and records the batch shape.
func (o *OTelExecObserver) BatchStart(ctx context.Context, numEvents, numGroups int) context.Context {
	tracer := otel.Tracer("opflow-exec")
	ctx, span := tracer.Start(ctx, "Engine.Broadcast")
	o.span = span

	span.SetAttributes(
		attribute.String("exec.graph", o.graphName),
		attribute.Int("exec.events", numEvents),
		attribute.Int("exec.groups", numGroups),
	)
	return ctx
}

// BatchEnd implements the ExecObserver interface. It finalizes the span,
// records metrics, and reports any error through the span status.
func (o *OTelExecObserver) BatchEnd(ctx context.Context, emitted int, elapsed time.Duration, err error) {
	defer o.span.End()

	labels := map[string]string{"graph": o.graphName}

	if o.metrics != nil {
		o.metrics.RecordLatency("broadcast", elapsed, labels)
	}

	if err != nil {
		o.span.SetStatus(codes.Error, err.Error())
		if o.metrics != nil {
			o.metrics.RecordCounter("broadcast_failures", 1, labels)
		}
		return
	}

	if emitted > 0 {
		o.span.AddEvent("exec.windows_emitted", trace.WithAttributes(
			attribute.Int("count", emitted),
		))
		if o.metrics != nil {
			o.metrics.RecordCounter("windows_emitted", float64(emitted), labels)
		}
	}
	o.span.SetStatus(codes.Ok, "batch completed")
}
