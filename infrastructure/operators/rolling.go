package operators

import (
	"fmt"
	"math"

	"github.com/ahrav/opflow/internal/ports"
)

var _ ports.Operator = (*RollingSum)(nil)

// RollingSum maintains the sum of one input column over a sliding
// window, retracting evicted rows by subtraction.
type RollingSum struct {
	window
	state []float64 // [0] running sum
}

// NewRollingSum creates a rolling sum over the given window.
func NewRollingSum(spec WindowSpec) (*RollingSum, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &RollingSum{window: w, state: make([]float64, 1)}, nil
}

func (s *RollingSum) OnData(in []float64)  { s.state[0] += in[0] }
func (s *RollingSum) OnEvict(in []float64) { s.state[0] -= in[0] }
func (s *RollingSum) Value(out []float64)  { out[0] = s.state[0] }
func (s *RollingSum) Reset()               { s.state[0] = 0 }

func (s *RollingSum) NumInputs() int  { return 1 }
func (s *RollingSum) NumOutputs() int { return 1 }

func (s *RollingSum) SizeBytes() uintptr { return floatStateBytes(1) }
func (s *RollingSum) Alignment() uintptr { return floatAlign }

func (s *RollingSum) CloneInto(mem []byte) ports.Operator {
	return &RollingSum{window: s.window, state: stateFloats(mem, 1)}
}

var _ ports.Operator = (*RollingMean)(nil)

// RollingMean maintains the arithmetic mean of one input column over a
// sliding window.
type RollingMean struct {
	window
	state []float64 // [0] sum, [1] live row count
}

// NewRollingMean creates a rolling mean over the given window.
func NewRollingMean(spec WindowSpec) (*RollingMean, error) {
	w, err := newWindow(spec)
	if err != nil {
		return nil, err
	}
	return &RollingMean{window: w, state: make([]float64, 2)}, nil
}

func (m *RollingMean) OnData(in []float64) {
	m.state[0] += in[0]
	m.state[1]++
}

func (m *RollingMean) OnEvict(in []float64) {
	m.state[0] -= in[0]
	m.state[1]--
}

func (m *RollingMean) Value(out []float64) {
	if m.state[1] == 0 {
		out[0] = 0
		return
	}
	out[0] = m.state[0] / m.state[1]
}

func (m *RollingMean) Reset() { m.state[0], m.state[1] = 0, 0 }

func (m *RollingMean) NumInputs() int  { return 1 }
func (m *RollingMean) NumOutputs() int { return 1 }

func (m *RollingMean) SizeBytes() uintptr { return floatStateBytes(2) }
func (m *RollingMean) Alignment() uintptr { return floatAlign }

func (m *RollingMean) CloneInto(mem []byte) ports.Operator {
	return &RollingMean{window: m.window, state: stateFloats(mem, 2)}
}

var _ ports.Operator = (*RollingStdDev)(nil)

// RollingStdDevConfig configures a RollingStdDev operator.
type RollingStdDevConfig struct {
	// Window selects the retention window.
	Window WindowSpec `yaml:"window"`
	// DDof is the delta degrees of freedom: the divisor is n - DDof.
	// 1 gives the sample standard deviation and 0 the population one.
	// NewRollingStdDev applies no default, so the zero value means 0; the
	// registry's rolling_stddev factory defaults it to 1.
	DDof int `yaml:"ddof" validate:"min=0,max=1"`
}

// RollingStdDev maintains the standard deviation of one input column
// over a sliding window, from running sum and sum-of-squares.
type RollingStdDev struct {
	window
	ddof  float64
	state []float64 // [0] sum, [1] sum of squares, [2] live row count
}

// NewRollingStdDev creates a rolling standard deviation operator.
func NewRollingStdDev(cfg RollingStdDevConfig) (*RollingStdDev, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("rolling stddev config: %w", err)
	}
	w, err := newWindow(cfg.Window)
	if err != nil {
		return nil, err
	}
	return &RollingStdDev{window: w, ddof: float64(cfg.DDof), state: make([]float64, 3)}, nil
}

func (d *RollingStdDev) OnData(in []float64) {
	d.state[0] += in[0]
	d.state[1] += in[0] * in[0]
	d.state[2]++
}

func (d *RollingStdDev) OnEvict(in []float64) {
	d.state[0] -= in[0]
	d.state[1] -= in[0] * in[0]
	d.state[2]--
}

func (d *RollingStdDev) Value(out []float64) {
	n := d.state[2]
	if n <= d.ddof {
		out[0] = 0
		return
	}
	mean := d.state[0] / n
	variance := (d.state[1] - n*mean*mean) / (n - d.ddof)
	// Cancellation can push a near-zero variance slightly negative.
	if variance < 0 {
		variance = 0
	}
	out[0] = math.Sqrt(variance)
}

func (d *RollingStdDev) Reset() { d.state[0], d.state[1], d.state[2] = 0, 0, 0 }

func (d *RollingStdDev) NumInputs() int  { return 1 }
func (d *RollingStdDev) NumOutputs() int { return 1 }

func (d *RollingStdDev) SizeBytes() uintptr { return floatStateBytes(3) }
func (d *RollingStdDev) Alignment() uintptr { return floatAlign }

func (d *RollingStdDev) CloneInto(mem []byte) ports.Operator {
	return &RollingStdDev{window: d.window, ddof: d.ddof, state: stateFloats(mem, 3)}
}
