package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumTopology = `
version: "1.0.0"
metadata:
  name: sum_chain
groups: 3
root:
  id: ticks
  width: 1
operators:
  - id: fast
    type: rolling_sum
    inputs: [ticks]
    params:
      window:
        events: 2
  - id: slow
    type: rolling_sum
    inputs: [ticks]
    params:
      window:
        events: 5
  - id: combined
    type: add
    inputs: [fast, slow]
outputs: [fast.0, slow.0, combined.0]
`

// batchCollector counts collector calls without a metrics backend.
type batchCollector struct {
	counters map[string]float64
}

func (bc *batchCollector) RecordLatency(string, time.Duration, map[string]string) {}
func (bc *batchCollector) RecordGauge(string, float64, map[string]string)         {}
func (bc *batchCollector) RecordHistogram(string, float64, map[string]string)     {}
func (bc *batchCollector) RecordCounter(metric string, v float64, _ map[string]string) {
	if bc.counters == nil {
		bc.counters = make(map[string]float64)
	}
	bc.counters[metric] += v
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	gl := newTestLoader(t)
	store, config, err := gl.LoadFromBytes([]byte(sumTopology))
	require.NoError(t, err)
	return NewEngine(store, config.Metadata.Name, config.HistoryCapacity, opts...)
}

func TestEngineBroadcastMatchesSequentialDriving(t *testing.T) {
	concurrent := newTestEngine(t)
	sequential := newTestEngine(t)
	ctx := context.Background()

	feeds := [][]float64{{10}, {20}, {30}}
	for step := 0; step < 12; step++ {
		ts := float64(step + 1)
		require.NoError(t, concurrent.Broadcast(ctx, ts, feeds))
		for g := 0; g < sequential.NumGroups(); g++ {
			require.NoError(t, sequential.OnData(g, ts, feeds[g]))
		}
	}

	outC := [][]float64{make([]float64, 3), make([]float64, 3), make([]float64, 3)}
	require.NoError(t, concurrent.Values(ctx, outC))

	outS := make([]float64, 3)
	for g := 0; g < 3; g++ {
		require.NoError(t, sequential.Value(g, outS))
		assert.Equal(t, outS, outC[g], "group %d", g)
	}

	// Spot-check group 0 after a dozen 10s: fast window of 2 holds 20,
	// slow window of 5 holds 50.
	assert.Equal(t, []float64{20, 50, 70}, outC[0])
}

func TestEngineBroadcastSkipsNilRows(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Broadcast(ctx, 1, [][]float64{{1}, nil, {3}}))

	out := make([]float64, 3)
	require.NoError(t, e.Value(0, out))
	assert.Equal(t, 1.0, out[0])
	require.NoError(t, e.Value(2, out))
	assert.Equal(t, 3.0, out[0])
}

func TestEngineBroadcastRowCountMismatch(t *testing.T) {
	e := newTestEngine(t)
	err := e.Broadcast(context.Background(), 1, [][]float64{{1}})
	assert.Error(t, err)
}

func TestEngineRecordsMetrics(t *testing.T) {
	bc := &batchCollector{}
	e := newTestEngine(t, WithMetrics(bc))

	require.NoError(t, e.Broadcast(context.Background(), 1, [][]float64{{1}, {2}, {3}}))
	assert.Equal(t, 3.0, bc.counters["events_processed"])
}

func TestEngineAccessors(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 3, e.NumGroups())
	assert.Equal(t, 1, e.NumInputs())
	assert.Equal(t, 3, e.NumOutputs())
}
