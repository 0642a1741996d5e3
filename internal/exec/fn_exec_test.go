package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opflow/internal/compile"
	"github.com/ahrav/opflow/internal/graph"
	"github.com/ahrav/opflow/internal/ports"
)

// doubleOp is a pure functor: it emits twice its input and keeps no
// state across events beyond the latest result.
type doubleOp struct{ last float64 }

func (d *doubleOp) OnData(in []float64)            { d.last = 2 * in[0] }
func (d *doubleOp) Value(out []float64)            { out[0] = d.last }
func (d *doubleOp) OnEvict(in []float64)           {}
func (d *doubleOp) Reset()                         { d.last = 0 }
func (d *doubleOp) WindowMode() ports.WindowMode   { return ports.Cumulative }
func (d *doubleOp) WindowEventCount() int          { return 0 }
func (d *doubleOp) WindowDuration() float64        { return 0 }
func (d *doubleOp) SizeBytes() uintptr             { return 0 }
func (d *doubleOp) Alignment() uintptr             { return 8 }
func (d *doubleOp) NumInputs() int                 { return 1 }
func (d *doubleOp) NumOutputs() int                { return 1 }
func (d *doubleOp) CloneInto(mem []byte) ports.Operator { return &doubleOp{} }

// add2Op sums its two inputs, statelessly.
type add2Op struct{ last float64 }

func (a *add2Op) OnData(in []float64)            { a.last = in[0] + in[1] }
func (a *add2Op) Value(out []float64)            { out[0] = a.last }
func (a *add2Op) OnEvict(in []float64)           {}
func (a *add2Op) Reset()                         { a.last = 0 }
func (a *add2Op) WindowMode() ports.WindowMode   { return ports.Cumulative }
func (a *add2Op) WindowEventCount() int          { return 0 }
func (a *add2Op) WindowDuration() float64        { return 0 }
func (a *add2Op) SizeBytes() uintptr             { return 0 }
func (a *add2Op) Alignment() uintptr             { return 8 }
func (a *add2Op) NumInputs() int                 { return 2 }
func (a *add2Op) NumOutputs() int                { return 1 }
func (a *add2Op) CloneInto(mem []byte) ports.Operator { return &add2Op{} }

func buildFnStore(t *testing.T, groups int) *compile.Store {
	t.Helper()
	g := graph.NewGraph()
	root, err := g.Root(newEcho(2))
	require.NoError(t, err)
	dbl := g.Add(&doubleOp{})
	join := g.Add(&add2Op{})
	require.NoError(t, g.Depends(dbl, root.Port(0)))
	require.NoError(t, g.Depends(join, dbl.Port(0), root.Port(1)))
	require.NoError(t, g.SetOutput(join.Port(0), dbl.Port(0)))

	store, err := compile.Compile(g, groups)
	require.NoError(t, err)
	return store
}

func TestFnExecEvaluatesDAGPerEvent(t *testing.T) {
	store := buildFnStore(t, 1)
	e := NewFnExec(store)

	assert.Equal(t, 1, e.NumGroups())
	assert.Equal(t, 2, e.NumInputs())
	assert.Equal(t, 2, e.NumOutputs())

	require.NoError(t, e.OnData(0, 10, []float64{3, 4}))

	out := make([]float64, 2)
	ts, err := e.Value(0, out)
	require.NoError(t, err)
	assert.Equal(t, 10.0, ts)
	assert.Equal(t, []float64{10, 6}, out) // 2*3+4, 2*3
}

func TestFnExecNoHistoryBetweenEvents(t *testing.T) {
	store := buildFnStore(t, 1)
	e := NewFnExec(store)

	require.NoError(t, e.OnData(0, 1, []float64{100, 100}))
	require.NoError(t, e.OnData(0, 2, []float64{1, 1}))

	// The second event fully determines the outputs; nothing from the
	// first is retained.
	out := make([]float64, 2)
	ts, err := e.Value(0, out)
	require.NoError(t, err)
	assert.Equal(t, 2.0, ts)
	assert.Equal(t, []float64{3, 2}, out)
}

func TestFnExecGroupsAreIndependent(t *testing.T) {
	store := buildFnStore(t, 3)
	e := NewFnExec(store)

	for g := 0; g < 3; g++ {
		v := float64((g + 1) * 10)
		require.NoError(t, e.OnData(g, 1, []float64{v, 0}))
	}

	out := make([]float64, 2)
	for g := 0; g < 3; g++ {
		_, err := e.Value(g, out)
		require.NoError(t, err)
		assert.Equal(t, float64((g+1)*20), out[0], "group %d", g)
	}
}

func TestFnExecRejectsOutOfRangeGroup(t *testing.T) {
	store := buildFnStore(t, 1)
	e := NewFnExec(store)

	err := e.OnData(9, 0, []float64{1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrGroupOutOfRange)
}

func TestFnExecParamBroadcast(t *testing.T) {
	g := graph.NewGraph()
	_, err := g.Root(newEcho(1))
	require.NoError(t, err)
	supp, err := g.SuppRoot(newEcho(1))
	require.NoError(t, err)
	scale := g.Add(&scaleOp{mult: 1})
	require.NoError(t, g.DependsParam(scale, supp.Port(0)))
	require.NoError(t, g.SetOutput(scale.Port(0)))

	store, err := compile.Compile(g, 1)
	require.NoError(t, err)
	e := NewFnExec(store)

	require.NoError(t, e.OnParam(0, []float64{9}))
	require.NoError(t, e.OnData(0, 1, []float64{0}))

	out := make([]float64, 1)
	_, err = e.Value(0, out)
	require.NoError(t, err)
	assert.Equal(t, 9.0, out[0])
}
