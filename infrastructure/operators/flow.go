package operators

import "github.com/ahrav/opflow/internal/ports"

var _ ports.Operator = (*VWAP)(nil)

// VWAP maintains the volume-weighted average price over a sliding
// window. Input port 0 is price, port 1 is volume; the output is
// Σ(price·volume) / Σvolume, or 0 when the window holds no volume.
type VWAP struct {
	window
	state []float64 // [0] turnover, [1] volume
}

// NewVWAP creates a VWAP operator over the given window.
func NewVWAP(spec WindowSpec) (*VWAP, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &VWAP{window: w, state: make([]float64, 2)}, nil
}

func (v *VWAP) OnData(in []float64) {
	v.state[0] += in[0] * in[1]
	v.state[1] += in[1]
}

func (v *VWAP) OnEvict(in []float64) {
	v.state[0] -= in[0] * in[1]
	v.state[1] -= in[1]
}

func (v *VWAP) Value(out []float64) {
	if verySmall(v.state[1]) {
		out[0] = 0
		return
	}
	out[0] = v.state[0] / v.state[1]
}

func (v *VWAP) Reset() { v.state[0], v.state[1] = 0, 0 }

func (v *VWAP) NumInputs() int  { return 2 }
func (v *VWAP) NumOutputs() int { return 1 }

func (v *VWAP) SizeBytes() uintptr { return floatStateBytes(2) }
func (v *VWAP) Alignment() uintptr { return floatAlign }

func (v *VWAP) CloneInto(mem []byte) ports.Operator {
	return &VWAP{window: v.window, state: stateFloats(mem, 2)}
}

var _ ports.Operator = (*OrderFlow)(nil)

// OrderFlow maintains net order flow over a sliding window. Input port 0
// is buy volume, port 1 is sell volume; the output is Σbuy − Σsell.
type OrderFlow struct {
	window
	state []float64 // [0] buy volume, [1] sell volume
}

// NewOrderFlow creates a net order flow operator over the given window.
func NewOrderFlow(spec WindowSpec) (*OrderFlow, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &OrderFlow{window: w, state: make([]float64, 2)}, nil
}

func (f *OrderFlow) OnData(in []float64) {
	f.state[0] += in[0]
	f.state[1] += in[1]
}

func (f *OrderFlow) OnEvict(in []float64) {
	f.state[0] -= in[0]
	f.state[1] -= in[1]
}

func (f *OrderFlow) Value(out []float64) { out[0] = f.state[0] - f.state[1] }
func (f *OrderFlow) Reset()              { f.state[0], f.state[1] = 0, 0 }

func (f *OrderFlow) NumInputs() int  { return 2 }
func (f *OrderFlow) NumOutputs() int { return 1 }

func (f *OrderFlow) SizeBytes() uintptr { return floatStateBytes(2) }
func (f *OrderFlow) Alignment() uintptr { return floatAlign }

func (f *OrderFlow) CloneInto(mem []byte) ports.Operator {
	return &OrderFlow{window: f.window, state: stateFloats(mem, 2)}
}

var _ ports.Operator = (*BookImbalance)(nil)

// BookImbalance maintains order book imbalance over a sliding window.
// Input port 0 is bid size, port 1 is ask size; the output is
// (Σbid − Σask) / (Σbid + Σask), or 0 when the book is empty.
type BookImbalance struct {
	window
	state []float64 // [0] bid size, [1] ask size
}

// NewBookImbalance creates a book imbalance operator over the given
// window.
func NewBookImbalance(spec WindowSpec) (*BookImbalance, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &BookImbalance{window: w, state: make([]float64, 2)}, nil
}

func (b *BookImbalance) OnData(in []float64) {
	b.state[0] += in[0]
	b.state[1] += in[1]
}

func (b *BookImbalance) OnEvict(in []float64) {
	b.state[0] -= in[0]
	b.state[1] -= in[1]
}

func (b *BookImbalance) Value(out []float64) {
	total := b.state[0] + b.state[1]
	if verySmall(total) {
		out[0] = 0
		return
	}
	out[0] = (b.state[0] - b.state[1]) / total
}

func (b *BookImbalance) Reset() { b.state[0], b.state[1] = 0, 0 }

func (b *BookImbalance) NumInputs() int  { return 2 }
func (b *BookImbalance) NumOutputs() int { return 1 }

func (b *BookImbalance) SizeBytes() uintptr { return floatStateBytes(2) }
func (b *BookImbalance) Alignment() uintptr { return floatAlign }

func (b *BookImbalance) CloneInto(mem []byte) ports.Operator {
	return &BookImbalance{window: b.window, state: stateFloats(mem, 2)}
}
