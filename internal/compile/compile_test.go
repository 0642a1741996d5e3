package compile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opflow/internal/graph"
	"github.com/ahrav/opflow/internal/ports"
)

// constOp is a minimal fixed-arity operator used to exercise the
// compiler without depending on any real aggregation logic.
type constOp struct {
	nin, nout int
	size      uintptr
	align     uintptr
}

func (c *constOp) OnData(in []float64)        {}
func (c *constOp) Value(out []float64)        {}
func (c *constOp) OnEvict(in []float64)       {}
func (c *constOp) Reset()                     {}
func (c *constOp) WindowMode() ports.WindowMode { return ports.Cumulative }
func (c *constOp) WindowEventCount() int        { return 0 }
func (c *constOp) WindowDuration() float64      { return 0 }
func (c *constOp) SizeBytes() uintptr           { return c.size }
func (c *constOp) Alignment() uintptr           { return c.align }
func (c *constOp) NumInputs() int               { return c.nin }
func (c *constOp) NumOutputs() int              { return c.nout }
func (c *constOp) CloneInto(mem []byte) ports.Operator {
	return &constOp{nin: c.nin, nout: c.nout, size: c.size, align: c.align}
}

func newOp(nin, nout int) *constOp {
	return &constOp{nin: nin, nout: nout, size: 8, align: 8}
}

func TestCompileLinearChain(t *testing.T) {
	g := graph.NewGraph()
	root, err := g.Root(newOp(1, 1))
	require.NoError(t, err)
	sum := g.Add(newOp(1, 1))
	require.NoError(t, g.Depends(sum, root.Port(0)))
	require.NoError(t, g.SetOutput(sum.Port(0)))

	s, err := Compile(g, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, s.NumGroups())
	assert.Equal(t, 2, s.NumNodes())
	assert.Equal(t, 2, s.RecordSize)
	assert.Equal(t, []int{0, 1}, s.RecordOffset)
	assert.Equal(t, []int{0}, s.OutputOffset)

	for g := 0; g < 3; g++ {
		require.Len(t, s.Nodes(g), 2)
	}
}

func TestCompileDiamond(t *testing.T) {
	g := graph.NewGraph()
	root, err := g.Root(newOp(1, 2))
	require.NoError(t, err)
	left := g.Add(newOp(1, 1))
	right := g.Add(newOp(1, 1))
	join := g.Add(newOp(2, 1))

	require.NoError(t, g.Depends(left, root.Port(0)))
	require.NoError(t, g.Depends(right, root.Port(1)))
	require.NoError(t, g.Depends(join, left.Port(0), right.Port(0)))
	require.NoError(t, g.SetOutput(join.Port(0)))

	s, err := Compile(g, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, s.NumNodes())

	// join's gathered inputs must point at left's and right's record slots.
	joinRow := s.InputOffsetRow(3)
	require.Len(t, joinRow, 2)
}

func TestCompileDetectsCycle(t *testing.T) {
	g := graph.NewGraph()
	root, err := g.Root(newOp(1, 1))
	require.NoError(t, err)
	a := g.Add(newOp(1, 1))
	b := g.Add(newOp(1, 1))
	require.NoError(t, g.Depends(a, root.Port(0), b.Port(0)))
	require.NoError(t, g.Depends(b, a.Port(0)))

	_, err = Compile(g, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrCycle))
}

func TestCompileRejectsZeroGroups(t *testing.T) {
	g := graph.NewGraph()
	_, err := g.Root(newOp(1, 1))
	require.NoError(t, err)

	_, err = Compile(g, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrZeroGroups))
}

func TestCompileWithAuxiliaryNode(t *testing.T) {
	g := graph.NewGraph()
	root, err := g.Root(newOp(1, 3))
	require.NoError(t, err)
	sum := g.Add(newOp(1, 1))
	require.NoError(t, g.Depends(sum, root.Port(0)))

	aux, err := g.Aux(newOp(2, 0))
	require.NoError(t, err)
	require.NoError(t, g.Depends(aux, root.Port(0), root.Port(1)))
	require.NoError(t, g.SetOutput(sum.Port(0)))

	s, err := Compile(g, 2)
	require.NoError(t, err)
	require.True(t, s.HasAux())

	auxRow := s.AuxInputOffsetRow()
	assert.Equal(t, []int{0, 1}, auxRow)

	for i := 0; i < s.NumGroups(); i++ {
		assert.NotNil(t, s.Aux(i))
	}
}

func TestCompileGroupsAreIndependentClones(t *testing.T) {
	g := graph.NewGraph()
	_, err := g.Root(newOp(1, 1))
	require.NoError(t, err)

	s, err := Compile(g, 2)
	require.NoError(t, err)

	a := s.Nodes(0)[0]
	b := s.Nodes(1)[0]
	assert.NotSame(t, a, b)
}
