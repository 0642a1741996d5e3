package operators

import "github.com/ahrav/opflow/internal/ports"

var _ ports.Operator = (*Add)(nil)

// Add sums its two input ports. It is stateless beyond the latest
// result and suits both fn_exec and windowed DAGs that need a combining
// node.
type Add struct {
	cumulative
	state []float64 // [0] latest sum
}

// NewAdd creates a two-input adder.
func NewAdd() *Add { return &Add{state: make([]float64, 1)} }

func (a *Add) OnData(in []float64) { a.state[0] = in[0] + in[1] }
func (a *Add) Value(out []float64) { out[0] = a.state[0] }
func (a *Add) Reset()              { a.state[0] = 0 }

func (a *Add) NumInputs() int  { return 2 }
func (a *Add) NumOutputs() int { return 1 }

func (a *Add) SizeBytes() uintptr { return floatStateBytes(1) }
func (a *Add) Alignment() uintptr { return floatAlign }

func (a *Add) CloneInto(mem []byte) ports.Operator {
	return &Add{state: stateFloats(mem, 1)}
}

var (
	_ ports.Operator      = (*Scale)(nil)
	_ ports.ParamOperator = (*Scale)(nil)
)

// Scale multiplies its input by a gain. The gain is set at construction
// and can be updated out of band through the supplementary-root
// parameter path.
type Scale struct {
	cumulative
	state []float64 // [0] gain, [1] latest input
}

// NewScale creates a scaler with the given initial gain.
func NewScale(gain float64) *Scale {
	s := &Scale{state: make([]float64, 2)}
	s.state[0] = gain
	return s
}

func (s *Scale) OnData(in []float64)  { s.state[1] = in[0] }
func (s *Scale) Value(out []float64)  { out[0] = s.state[0] * s.state[1] }
func (s *Scale) OnParam(in []float64) { s.state[0] = in[0] }

func (s *Scale) Reset() { s.state[1] = 0 }

func (s *Scale) NumInputs() int  { return 1 }
func (s *Scale) NumOutputs() int { return 1 }

func (s *Scale) SizeBytes() uintptr { return floatStateBytes(2) }
func (s *Scale) Alignment() uintptr { return floatAlign }

func (s *Scale) CloneInto(mem []byte) ports.Operator {
	clone := &Scale{state: stateFloats(mem, 2)}
	clone.state[0] = s.state[0]
	return clone
}
