package operators

import "github.com/ahrav/opflow/internal/ports"

var _ ports.Operator = (*PassthroughRoot)(nil)

// PassthroughRoot copies its input row straight through to its outputs.
// It is the conventional root for DAGs whose downstream operators
// consume raw event fields directly.
type PassthroughRoot struct {
	cumulative
	width int
	state []float64
}

// NewPassthroughRoot creates a root of the given width. Every input
// column is exposed as the output port with the same index.
func NewPassthroughRoot(width int) (*PassthroughRoot, error) {
	if width <= 0 {
		return nil, ErrBadArity
	}
	return &PassthroughRoot{width: width, state: make([]float64, width)}, nil
}

func (r *PassthroughRoot) OnData(in []float64) { copy(r.state, in) }
func (r *PassthroughRoot) Value(out []float64) { copy(out, r.state) }

func (r *PassthroughRoot) Reset() {
	for i := range r.state {
		r.state[i] = 0
	}
}

func (r *PassthroughRoot) NumInputs() int  { return r.width }
func (r *PassthroughRoot) NumOutputs() int { return r.width }

func (r *PassthroughRoot) SizeBytes() uintptr { return floatStateBytes(r.width) }
func (r *PassthroughRoot) Alignment() uintptr { return floatAlign }

func (r *PassthroughRoot) CloneInto(mem []byte) ports.Operator {
	return &PassthroughRoot{width: r.width, state: stateFloats(mem, r.width)}
}
