package operators

import (
	"fmt"
	"math"

	"github.com/ahrav/opflow/internal/ports"
)

// FillPolicy selects what a Lag operator reports before its window has
// produced a lagged value.
type FillPolicy string

const (
	// FillNaN reports NaN until a value has aged out of the window.
	FillNaN FillPolicy = "nan"
	// FillZero reports 0 until a value has aged out of the window.
	FillZero FillPolicy = "zero"
	// FillLast reports the most recent input until a value has aged out.
	FillLast FillPolicy = "last"
	// FillOldest reports the first input seen until a value has aged out.
	FillOldest FillPolicy = "oldest"
)

// LagConfig configures a Lag operator.
type LagConfig struct {
	// Period is the number of events the output trails the input by.
	Period int `yaml:"period" validate:"required,min=1"`
	// Fill selects the warm-up behavior before Period events have passed.
	Fill FillPolicy `yaml:"fill" validate:"omitempty,oneof=nan zero last oldest"`
}

var _ ports.Operator = (*Lag)(nil)

// Lag reports its input delayed by a fixed number of events. The lagged
// value is whatever the eviction machinery last retracted; until the
// window first overflows, the configured fill policy applies.
type Lag struct {
	window
	fill  FillPolicy
	state []float64 // [0] lagged value
}

// NewLag creates a lag operator. An empty fill policy defaults to NaN.
func NewLag(cfg LagConfig) (*Lag, error) {
	if cfg.Fill == "" {
		cfg.Fill = FillNaN
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("lag config: %w", err)
	}
	w, err := newWindow(WindowSpec{Events: cfg.Period})
	if err != nil {
		return nil, err
	}
	l := &Lag{window: w, fill: cfg.Fill, state: make([]float64, 1)}
	l.Reset()
	return l, nil
}

func (l *Lag) OnData(in []float64) {
	switch l.fill {
	case FillLast:
		l.state[0] = in[0]
	case FillOldest:
		if math.IsNaN(l.state[0]) {
			l.state[0] = in[0]
		}
	}
}

func (l *Lag) OnEvict(in []float64) { l.state[0] = in[0] }
func (l *Lag) Value(out []float64)  { out[0] = l.state[0] }

func (l *Lag) Reset() {
	if l.fill == FillZero {
		l.state[0] = 0
	} else {
		l.state[0] = math.NaN()
	}
}

func (l *Lag) NumInputs() int  { return 1 }
func (l *Lag) NumOutputs() int { return 1 }

func (l *Lag) SizeBytes() uintptr { return floatStateBytes(1) }
func (l *Lag) Alignment() uintptr { return floatAlign }

func (l *Lag) CloneInto(mem []byte) ports.Operator {
	clone := &Lag{window: l.window, fill: l.fill, state: stateFloats(mem, 1)}
	clone.Reset()
	return clone
}
