package operators

import (
	"math"

	"github.com/ahrav/opflow/internal/ports"
)

var _ ports.Operator = (*OHLC)(nil)

// OHLC accumulates the open, high, low, and close of one input column
// since its last reset. It is cumulative and relies on the tumble
// executor's reset to delimit bars; output ports are 0=open, 1=high,
// 2=low, 3=close.
type OHLC struct {
	cumulative
	state []float64 // [0] open, [1] high, [2] low, [3] close, [4] seen flag
}

// NewOHLC creates an OHLC bar aggregate.
func NewOHLC() *OHLC { return &OHLC{state: make([]float64, 5)} }

func (o *OHLC) OnData(in []float64) {
	v := in[0]
	if o.state[4] == 0 {
		o.state[0], o.state[1], o.state[2] = v, v, v
		o.state[4] = 1
	} else {
		if v > o.state[1] {
			o.state[1] = v
		}
		if v < o.state[2] {
			o.state[2] = v
		}
	}
	o.state[3] = v
}

func (o *OHLC) Value(out []float64) {
	out[0], out[1], out[2], out[3] = o.state[0], o.state[1], o.state[2], o.state[3]
}

func (o *OHLC) Reset() {
	for i := range o.state {
		o.state[i] = 0
	}
}

func (o *OHLC) NumInputs() int  { return 1 }
func (o *OHLC) NumOutputs() int { return 4 }

func (o *OHLC) SizeBytes() uintptr { return floatStateBytes(5) }
func (o *OHLC) Alignment() uintptr { return floatAlign }

func (o *OHLC) CloneInto(mem []byte) ports.Operator {
	return &OHLC{state: stateFloats(mem, 5)}
}

var _ ports.Operator = (*LogReturn)(nil)

// LogReturn reports ln(last/first) of one input column since its last
// reset, or 0 while the first value is too small to divide by.
type LogReturn struct {
	cumulative
	state []float64 // [0] first, [1] last, [2] seen flag
}

// NewLogReturn creates a log return aggregate.
func NewLogReturn() *LogReturn { return &LogReturn{state: make([]float64, 3)} }

func (r *LogReturn) OnData(in []float64) {
	if r.state[2] == 0 {
		r.state[0] = in[0]
		r.state[2] = 1
	}
	r.state[1] = in[0]
}

func (r *LogReturn) Value(out []float64) {
	if r.state[2] == 0 || verySmall(r.state[0]) {
		out[0] = 0
		return
	}
	out[0] = math.Log(r.state[1] / r.state[0])
}

func (r *LogReturn) Reset() { r.state[0], r.state[1], r.state[2] = 0, 0, 0 }

func (r *LogReturn) NumInputs() int  { return 1 }
func (r *LogReturn) NumOutputs() int { return 1 }

func (r *LogReturn) SizeBytes() uintptr { return floatStateBytes(3) }
func (r *LogReturn) Alignment() uintptr { return floatAlign }

func (r *LogReturn) CloneInto(mem []byte) ports.Operator {
	return &LogReturn{state: stateFloats(mem, 3)}
}

var _ ports.Operator = (*SimpleReturn)(nil)

// SimpleReturn reports (last − first) / first of one input column since
// its last reset, or 0 while the first value is too small to divide by.
type SimpleReturn struct {
	cumulative
	state []float64 // [0] first, [1] last, [2] seen flag
}

// NewSimpleReturn creates a simple return aggregate.
func NewSimpleReturn() *SimpleReturn { return &SimpleReturn{state: make([]float64, 3)} }

func (r *SimpleReturn) OnData(in []float64) {
	if r.state[2] == 0 {
		r.state[0] = in[0]
		r.state[2] = 1
	}
	r.state[1] = in[0]
}

func (r *SimpleReturn) Value(out []float64) {
	if r.state[2] == 0 || verySmall(r.state[0]) {
		out[0] = 0
		return
	}
	out[0] = (r.state[1] - r.state[0]) / r.state[0]
}

func (r *SimpleReturn) Reset() { r.state[0], r.state[1], r.state[2] = 0, 0, 0 }

func (r *SimpleReturn) NumInputs() int  { return 1 }
func (r *SimpleReturn) NumOutputs() int { return 1 }

func (r *SimpleReturn) SizeBytes() uintptr { return floatStateBytes(3) }
func (r *SimpleReturn) Alignment() uintptr { return floatAlign }

func (r *SimpleReturn) CloneInto(mem []byte) ports.Operator {
	return &SimpleReturn{state: stateFloats(mem, 3)}
}
