package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opflow/internal/ports"
)

type stubOp struct {
	nin, nout int
}

func (s *stubOp) OnData(in []float64)                {}
func (s *stubOp) Value(out []float64)                 {}
func (s *stubOp) OnEvict(in []float64)                {}
func (s *stubOp) Reset()                              {}
func (s *stubOp) WindowMode() ports.WindowMode         { return ports.Cumulative }
func (s *stubOp) WindowEventCount() int                { return 0 }
func (s *stubOp) WindowDuration() float64              { return 0 }
func (s *stubOp) CloneInto(mem []byte) ports.Operator  { return s }
func (s *stubOp) SizeBytes() uintptr                   { return 0 }
func (s *stubOp) Alignment() uintptr                   { return 1 }
func (s *stubOp) NumInputs() int                       { return s.nin }
func (s *stubOp) NumOutputs() int                       { return s.nout }

func op(nin, nout int) *stubOp { return &stubOp{nin: nin, nout: nout} }

// paramStubOp is a stubOp that also implements ports.ParamOperator, for
// exercising the supplementary-root dispatch path.
type paramStubOp struct{ stubOp }

func (s *paramStubOp) OnParam(in []float64) {}

func paramOp(nin, nout int) *paramStubOp { return &paramStubOp{stubOp{nin: nin, nout: nout}} }

func TestGraphLinearChain(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)

	sum := g.Add(op(1, 1))
	require.NoError(t, g.Depends(sum, root.Port(0)))
	require.NoError(t, g.AddOutput(sum.Port(0)))

	require.NoError(t, g.Validate())
}

func TestGraphSecondRootRejected(t *testing.T) {
	g := NewGraph()
	_, err := g.Root(op(1, 1))
	require.NoError(t, err)

	_, err = g.Root(op(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrMultipleRoots))
}

func TestGraphValidateCatchesPortOutOfRange(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)

	consumer := g.Add(op(1, 1))
	require.NoError(t, g.Depends(consumer, root.Port(5)))

	err = g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrPortOutOfRange))
}

func TestGraphAddOutputRejectsDanglingNode(t *testing.T) {
	g := NewGraph()
	_, err := g.Root(op(1, 1))
	require.NoError(t, err)

	err = g.AddOutput(Edge{Producer: Handle(999), Port: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDanglingNode))
}

func TestGraphAuxMustTargetRoot(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)

	other := g.Add(op(1, 1))
	require.NoError(t, g.Depends(other, root.Port(0)))

	aux, err := g.Aux(op(1, 1))
	require.NoError(t, err)
	require.NoError(t, g.Depends(aux, other.Port(0)))

	err = g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrAuxTargetInvalid))
}

func TestGraphRemoveClearsEdgesAndOutputs(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)

	sum := g.Add(op(1, 1))
	require.NoError(t, g.Depends(sum, root.Port(0)))
	require.NoError(t, g.SetOutput(sum.Port(0)))

	require.NoError(t, g.Remove(sum))

	snap := g.Snapshot()
	assert.Empty(t, snap.Outputs)
	_, stillThere := snap.Nodes[sum]
	assert.False(t, stillThere)
}

func TestGraphReplaceEdge(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)
	alt := g.Add(op(1, 1))

	consumer := g.Add(op(1, 1))
	require.NoError(t, g.Depends(consumer, root.Port(0)))

	require.NoError(t, g.ReplaceEdge(consumer, root.Port(0), alt.Port(0)))

	snap := g.Snapshot()
	require.Len(t, snap.Preds[consumer], 1)
	assert.Equal(t, alt, snap.Preds[consumer][0].Producer)
}

func TestGraphDependsParamAcceptsParamOperatorFromSupp(t *testing.T) {
	g := NewGraph()
	_, err := g.Root(op(1, 1))
	require.NoError(t, err)
	supp, err := g.SuppRoot(op(1, 1))
	require.NoError(t, err)

	scale := g.Add(paramOp(0, 1))
	require.NoError(t, g.DependsParam(scale, supp.Port(0)))

	require.NoError(t, g.Validate())
}

func TestGraphDependsParamRejectsNonParamOperator(t *testing.T) {
	g := NewGraph()
	_, err := g.Root(op(1, 1))
	require.NoError(t, err)
	supp, err := g.SuppRoot(op(1, 1))
	require.NoError(t, err)

	notParam := g.Add(op(0, 1))
	require.NoError(t, g.DependsParam(notParam, supp.Port(0)))

	err = g.Validate()
	require.Error(t, err)
}

func TestGraphDependsParamRejectsNonSuppProducer(t *testing.T) {
	g := NewGraph()
	root, err := g.Root(op(1, 1))
	require.NoError(t, err)
	_, err = g.SuppRoot(op(1, 1))
	require.NoError(t, err)

	scale := g.Add(paramOp(0, 1))
	err = g.DependsParam(scale, root.Port(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrAuxTargetInvalid))
}

func TestGraphDependsParamRequiresDeclaredSupp(t *testing.T) {
	g := NewGraph()
	_, err := g.Root(op(1, 1))
	require.NoError(t, err)

	scale := g.Add(paramOp(0, 1))
	err = g.DependsParam(scale, Handle(999).Port(0))
	require.Error(t, err)
}

func TestGraphMergePrefersExistingOnConflict(t *testing.T) {
	a := NewGraph()
	h, err := a.Root(op(1, 1))
	require.NoError(t, err)

	b := NewGraph()
	_, err = b.Root(op(2, 2))
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))

	snap := a.Snapshot()
	assert.Equal(t, 1, snap.Nodes[h].NumInputs())
}
