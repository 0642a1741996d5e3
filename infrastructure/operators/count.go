package operators

import "github.com/ahrav/opflow/internal/ports"

var _ ports.Operator = (*EventCount)(nil)

// EventCount counts the rows inside a sliding window. It is a zero-input
// operator: the executor skips the gather step and calls OnData with an
// empty argument span.
type EventCount struct {
	window
	state []float64 // [0] live row count
}

// NewEventCount creates an event counter over the given window.
func NewEventCount(spec WindowSpec) (*EventCount, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &EventCount{window: w, state: make([]float64, 1)}, nil
}

func (c *EventCount) OnData(in []float64)  { c.state[0]++ }
func (c *EventCount) OnEvict(in []float64) { c.state[0]-- }
func (c *EventCount) Value(out []float64)  { out[0] = c.state[0] }
func (c *EventCount) Reset()               { c.state[0] = 0 }

func (c *EventCount) NumInputs() int  { return 0 }
func (c *EventCount) NumOutputs() int { return 1 }

func (c *EventCount) SizeBytes() uintptr { return floatStateBytes(1) }
func (c *EventCount) Alignment() uintptr { return floatAlign }

func (c *EventCount) CloneInto(mem []byte) ports.Operator {
	return &EventCount{window: c.window, state: stateFloats(mem, 1)}
}
