package application

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/opflow/infrastructure/middleware"
	"github.com/ahrav/opflow/internal/compile"
	"github.com/ahrav/opflow/internal/exec"
	"github.com/ahrav/opflow/internal/ports"
)

// Engine drives a compiled windowed DAG across all of its replica
// groups. Within a group every call is strictly serialized, per the
// executor's contract; Broadcast exploits the groups' independence by
// driving them from one goroutine each. Metrics and the execution
// observer are optional and report at batch granularity only.
type Engine struct {
	exec      *exec.OpExec
	graphName string
	metrics   ports.MetricsCollector
	observer  middleware.ExecObserver
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMetrics attaches a metrics collector.
func WithMetrics(m ports.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithObserver attaches a batch execution observer.
func WithObserver(o middleware.ExecObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine builds an engine over a compiled store. graphName labels
// metric and span output; historyCapacity mirrors
// TopologyConfig.HistoryCapacity, with zero meaning the default.
func NewEngine(store *compile.Store, graphName string, historyCapacity int, opts ...EngineOption) *Engine {
	e := &Engine{
		exec:      exec.NewOpExecCapacity(store, historyCapacity),
		graphName: graphName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NumGroups reports the number of replica groups.
func (e *Engine) NumGroups() int { return e.exec.NumGroups() }

// NumInputs reports the root's input arity.
func (e *Engine) NumInputs() int { return e.exec.NumInputs() }

// NumOutputs reports the declared output width.
func (e *Engine) NumOutputs() int { return e.exec.NumOutputs() }

// OnData absorbs one event into a single group.
func (e *Engine) OnData(igrp int, timestamp float64, input []float64) error {
	return e.exec.OnData(igrp, timestamp, input)
}

// Value reads a single group's current output vector.
func (e *Engine) Value(igrp int, out []float64) error {
	return e.exec.Value(igrp, out)
}

// OnParam routes one out-of-band parameter row to a single group.
func (e *Engine) OnParam(igrp int, input []float64) error {
	return e.exec.OnParam(igrp, input)
}

// Broadcast absorbs one event per group concurrently: inputs[g] is
// group g's event row, all sharing one timestamp. Rows may be nil to
// skip a group. Each group is driven by exactly one goroutine, so the
// executor's serialization contract holds; groups share nothing but the
// immutable compiled DAG.
func (e *Engine) Broadcast(ctx context.Context, timestamp float64, inputs [][]float64) error {
	if len(inputs) != e.exec.NumGroups() {
		return fmt.Errorf("engine: %d input rows for %d groups", len(inputs), e.exec.NumGroups())
	}

	if e.observer != nil {
		ctx = e.observer.BatchStart(ctx, len(inputs), e.exec.NumGroups())
	}
	start := time.Now()

	g, _ := errgroup.WithContext(ctx)
	driven := 0
	for igrp := range inputs {
		if inputs[igrp] == nil {
			continue
		}
		driven++
		igrp := igrp
		g.Go(func() error {
			return e.exec.OnData(igrp, timestamp, inputs[igrp])
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)

	if e.observer != nil {
		e.observer.BatchEnd(ctx, 0, elapsed, err)
	}
	if e.metrics != nil && err == nil {
		e.metrics.RecordCounter("events_processed", float64(driven),
			map[string]string{"graph": e.graphName, "group": "all"})
	}
	return err
}

// Values reads every group's current output vector concurrently.
// out[g] must be at least NumOutputs long.
func (e *Engine) Values(ctx context.Context, out [][]float64) error {
	if len(out) != e.exec.NumGroups() {
		return fmt.Errorf("engine: %d output rows for %d groups", len(out), e.exec.NumGroups())
	}

	g, _ := errgroup.WithContext(ctx)
	for igrp := range out {
		igrp := igrp
		g.Go(func() error {
			return e.exec.Value(igrp, out[igrp])
		})
	}
	return g.Wait()
}
