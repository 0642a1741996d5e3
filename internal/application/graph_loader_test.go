package application

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opflow/internal/exec"
)

const vwapTopology = `
version: "1.0.0"
metadata:
  name: vwap_demo
  description: VWAP with trade count over the last 100 trades
  tags: [market_data]
groups: 2
history_capacity: 128
root:
  id: quotes
  width: 2
  aliases: [price, volume]
operators:
  - id: vwap
    type: vwap
    inputs: [price, volume]
    params:
      window:
        events: 100
  - id: trades
    type: event_count
    params:
      window:
        events: 100
outputs: [vwap.0, trades.0]
`

func newTestLoader(t *testing.T) *GraphLoader {
	t.Helper()
	reg := NewOperatorRegistry()
	RegisterBuiltinOperators(reg)
	gl, err := NewGraphLoader(reg)
	require.NoError(t, err)
	return gl
}

func TestLoadFromBytes(t *testing.T) {
	gl := newTestLoader(t)

	store, config, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)
	require.NotNil(t, store)

	assert.Equal(t, "vwap_demo", config.Metadata.Name)
	assert.Equal(t, 2, store.NumGroups())
	assert.Equal(t, 3, store.NumNodes())
	assert.Equal(t, 2, store.NumInputs())
	assert.Len(t, store.OutputOffset, 2)
}

func TestLoadedStoreExecutes(t *testing.T) {
	gl := newTestLoader(t)

	store, config, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)

	e := exec.NewOpExecCapacity(store, config.HistoryCapacity)
	require.NoError(t, e.OnData(0, 1, []float64{100, 10}))
	require.NoError(t, e.OnData(0, 2, []float64{110, 30}))

	out := make([]float64, 2)
	require.NoError(t, e.Value(0, out))
	assert.InDelta(t, 107.5, out[0], 1e-9)
	assert.Equal(t, 2.0, out[1])

	// Group 1 saw no events beyond its zero state.
	require.NoError(t, e.OnData(1, 1, []float64{50, 1}))
	require.NoError(t, e.Value(1, out))
	assert.InDelta(t, 50, out[0], 1e-9)
	assert.Equal(t, 1.0, out[1])
}

func TestLoadFromFile(t *testing.T) {
	gl := newTestLoader(t)

	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(vwapTopology), 0o644))

	store, _, err := gl.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, store.NumGroups())

	_, _, err = gl.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCachesByContentHash(t *testing.T) {
	gl := newTestLoader(t)

	_, _, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)
	require.Len(t, gl.cache, 1)

	// A second identical load reuses the cached build...
	store2, _, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)
	assert.Len(t, gl.cache, 1)
	assert.NotNil(t, store2)

	// ...while concurrent identical loads still each get a usable store.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _, err := gl.LoadFromBytes([]byte(vwapTopology))
			assert.NoError(t, err)
			assert.NotNil(t, s)
		}()
	}
	wg.Wait()
	assert.Len(t, gl.cache, 1)
}

func TestLoadedStoresAreIndependent(t *testing.T) {
	gl := newTestLoader(t)

	s1, _, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)
	s2, _, err := gl.LoadFromBytes([]byte(vwapTopology))
	require.NoError(t, err)

	e1 := exec.NewOpExec(s1)
	e2 := exec.NewOpExec(s2)

	require.NoError(t, e1.OnData(0, 1, []float64{100, 10}))
	out := make([]float64, 2)
	require.NoError(t, e2.OnData(0, 1, []float64{200, 10}))
	require.NoError(t, e2.Value(0, out))
	assert.InDelta(t, 200, out[0], 1e-9)
	require.NoError(t, e1.Value(0, out))
	assert.InDelta(t, 100, out[0], 1e-9)
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing version",
			yaml: `
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2}}}]
outputs: [s.0]
`,
		},
		{
			name: "zero groups",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 0
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2}}}]
outputs: [s.0]
`,
		},
		{
			name: "unknown operator type",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: quantum_sum, inputs: [r]}]
outputs: [s.0]
`,
		},
		{
			name: "duplicate node id",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators:
  - {id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2}}}
  - {id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2}}}
outputs: [s.0]
`,
		},
		{
			name: "dangling input reference",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: [ghost], params: {window: {events: 2}}}]
outputs: [s.0]
`,
		},
		{
			name: "bad edge reference syntax",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: ["R.Port"], params: {window: {events: 2}}}]
outputs: [s.0]
`,
		},
		{
			name: "window both events and span",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2, span: 3}}}]
outputs: [s.0]
`,
		},
		{
			name: "unknown yaml field",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1}
operators: [{id: s, type: rolling_sum, inputs: [r], params: {window: {events: 2}}}]
outputs: [s.0]
surprise: true
`,
		},
		{
			name: "more aliases than root ports",
			yaml: `
version: "1.0.0"
metadata: {name: x}
groups: 1
root: {id: r, width: 1, aliases: [a, b]}
operators: [{id: s, type: rolling_sum, inputs: [a], params: {window: {events: 2}}}]
outputs: [s.0]
`,
		},
	}

	gl := newTestLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := gl.LoadFromBytes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewOperatorRegistry()
	RegisterBuiltinOperators(reg)

	assert.Contains(t, reg.Types(), "vwap")
	assert.Panics(t, func() {
		reg.Register("vwap", nil)
	})
}
