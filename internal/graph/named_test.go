package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opflow/internal/ports"
)

func TestNamedLinearChainCompiles(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 2)))
	require.NoError(t, n.Add("sum", op(1, 1)))
	require.NoError(t, n.Depends("sum", "quote.0"))
	require.NoError(t, n.AddOutput("sum"))
	require.NoError(t, n.Validate())

	g, handles, err := n.ToHandleGraph()
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	snap := g.Snapshot()
	sumPreds := snap.Preds[handles["sum"]]
	require.Len(t, sumPreds, 1)
	assert.Equal(t, handles["quote"], sumPreds[0].Producer)
}

func TestNamedForwardReferenceAllowed(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 1)))
	// "sum" depends on "derived" before "derived" is declared.
	require.NoError(t, n.Add("sum", op(1, 1)))
	require.NoError(t, n.Depends("sum", "derived"))
	require.NoError(t, n.Add("derived", op(1, 1)))
	require.NoError(t, n.Depends("derived", "quote"))

	require.NoError(t, n.Validate())
}

func TestNamedValidateCatchesUndeclaredReference(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 1)))
	require.NoError(t, n.Add("sum", op(1, 1)))
	require.NoError(t, n.Depends("sum", "missing"))

	err := n.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDanglingNode))
}

func TestNamedAliasResolvesToRootPort(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 2)))
	require.NoError(t, n.Alias("quote", "bid", "ask"))

	require.NoError(t, n.Add("spread", op(1, 1)))
	require.NoError(t, n.Depends("spread", "bid", "ask"))
	require.NoError(t, n.AddOutput("spread"))

	require.NoError(t, n.Validate())

	g, handles, err := n.ToHandleGraph()
	require.NoError(t, err)
	snap := g.Snapshot()
	preds := snap.Preds[handles["spread"]]
	require.Len(t, preds, 2)
	assert.Equal(t, 0, preds[0].Port)
	assert.Equal(t, 1, preds[1].Port)
}

func TestNamedRenamePropagatesToEdgesAndOutputs(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 1)))
	require.NoError(t, n.Add("sum", op(1, 1)))
	require.NoError(t, n.Depends("sum", "quote"))
	require.NoError(t, n.AddOutput("sum"))

	require.NoError(t, n.Rename("sum", "total"))
	require.NoError(t, n.Validate())

	g, handles, err := n.ToHandleGraph()
	require.NoError(t, err)
	snap := g.Snapshot()
	require.Len(t, snap.Outputs, 1)
	assert.Equal(t, handles["total"], snap.Outputs[0].Producer)
}

func TestNamedDuplicateNameRejected(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Add("a", op(1, 1)))
	err := n.Add("a", op(1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateNode))
}

func TestNamedDependsParamResolvesToSuppRoot(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 1)))
	require.NoError(t, n.SuppRoot("cfg", op(1, 1)))
	require.NoError(t, n.Add("scale", paramOp(0, 1)))
	require.NoError(t, n.DependsParam("scale", "cfg.0"))
	require.NoError(t, n.AddOutput("scale"))

	require.NoError(t, n.Validate())

	g, handles, err := n.ToHandleGraph()
	require.NoError(t, err)
	snap := g.Snapshot()
	paramPreds := snap.ParamPreds[handles["scale"]]
	require.Len(t, paramPreds, 1)
	assert.Equal(t, handles["cfg"], paramPreds[0].Producer)
}

func TestNamedDependsParamRejectsNonSuppTarget(t *testing.T) {
	n := NewNamed()
	require.NoError(t, n.Root("quote", op(1, 1)))
	require.NoError(t, n.SuppRoot("cfg", op(1, 1)))
	require.NoError(t, n.Add("scale", paramOp(0, 1)))
	require.NoError(t, n.DependsParam("scale", "quote.0"))

	err := n.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrAuxTargetInvalid))
}

func TestNamedMergePrefersExistingOnConflict(t *testing.T) {
	a := NewNamed()
	require.NoError(t, a.Add("x", op(1, 1)))

	b := NewNamed()
	require.NoError(t, b.Add("x", op(2, 2)))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 1, a.ops["x"].NumInputs())
}
