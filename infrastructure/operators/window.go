package operators

import "github.com/ahrav/opflow/internal/ports"

// WindowSpec selects an operator's retention window: a fixed count of
// recent events or a fixed time span in timestamp units. Exactly one
// field must be set.
type WindowSpec struct {
	// Events retains the most recent Events rows.
	Events int `yaml:"events" validate:"omitempty,min=1"`
	// Span retains rows within Span of the latest timestamp.
	Span float64 `yaml:"span" validate:"omitempty,gt=0"`
}

// mode maps the spec to the executor's window mode tag.
func (w WindowSpec) mode() (ports.WindowMode, error) {
	switch {
	case w.Events > 0 && w.Span > 0:
		return 0, ErrWindowSpec
	case w.Events > 0:
		return ports.EventWindow, nil
	case w.Span > 0:
		return ports.TimeWindow, nil
	default:
		return 0, ErrWindowSpec
	}
}

// window carries the resolved retention configuration every windowed
// operator embeds. It answers the mode/size half of the operator
// contract so each operator only implements its own arithmetic.
type window struct {
	wmode  ports.WindowMode
	events int
	span   float64
}

func newWindow(spec WindowSpec) (window, error) {
	m, err := spec.mode()
	if err != nil {
		return window{}, err
	}
	return window{wmode: m, events: spec.Events, span: spec.Span}, nil
}

func (w window) WindowMode() ports.WindowMode { return w.wmode }
func (w window) WindowEventCount() int        { return w.events }
func (w window) WindowDuration() float64      { return w.span }

// cumulative is the embeddable counterpart for operators that never
// evict.
type cumulative struct{}

func (cumulative) WindowMode() ports.WindowMode { return ports.Cumulative }
func (cumulative) WindowEventCount() int        { return 0 }
func (cumulative) WindowDuration() float64      { return 0 }
func (cumulative) OnEvict(in []float64)         {}
