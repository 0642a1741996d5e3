package operators

import "github.com/ahrav/opflow/internal/ports"

// monotonicWindow is the shared machinery behind RollingMin and
// RollingMax: a monotonic deque over the retained window, where less
// decides which of two values makes the other redundant. The deque's
// backing slice is reserved at clone time and compacted in place when
// full, so steady-state execution does not allocate.
type monotonicWindow struct {
	window
	less func(a, b float64) bool
	vec  []float64
	head int
}

func newMonotonicWindow(spec WindowSpec, capHint int, less func(a, b float64) bool) (monotonicWindow, error) {
	w, err := newWindow(spec)
	if err != nil {
		return monotonicWindow{}, err
	}
	if capHint <= 0 {
		capHint = 16
	}
	// An event window briefly holds one extra row between on_data and the
	// eviction that follows it.
	if w.wmode.IsEvent() && w.events+1 > capHint {
		capHint = w.events + 1
	}
	return monotonicWindow{window: w, less: less, vec: make([]float64, 0, capHint)}, nil
}

func (m *monotonicWindow) onData(val float64) {
	for len(m.vec) > m.head && m.less(val, m.vec[len(m.vec)-1]) {
		m.vec = m.vec[:len(m.vec)-1]
	}
	m.vec = append(m.vec, val)

	if len(m.vec) == cap(m.vec) && m.head > 0 {
		n := copy(m.vec, m.vec[m.head:])
		m.vec = m.vec[:n]
		m.head = 0
	}
}

func (m *monotonicWindow) onEvict(val float64) {
	if m.head < len(m.vec) && m.vec[m.head] == val {
		m.head++
	}
}

func (m *monotonicWindow) value() float64 {
	if m.head >= len(m.vec) {
		return 0
	}
	return m.vec[m.head]
}

func (m *monotonicWindow) reset() {
	m.vec = m.vec[:0]
	m.head = 0
}

var _ ports.Operator = (*RollingMin)(nil)

// RollingMin reports the minimum of one input column over a sliding
// window.
type RollingMin struct{ monotonicWindow }

// NewRollingMin creates a rolling minimum over the given window.
// capHint reserves deque capacity for time windows, where the retained
// row count is not known up front. A non-positive hint becomes 16, and
// for an event window the hint is raised to the window's count plus one
// when smaller.
func NewRollingMin(spec WindowSpec, capHint int) (*RollingMin, error) {
	mw, err := newMonotonicWindow(spec, capHint, func(a, b float64) bool { return a < b })
	if err != nil {
		return nil, err
	}
	return &RollingMin{monotonicWindow: mw}, nil
}

func (r *RollingMin) OnData(in []float64)  { r.onData(in[0]) }
func (r *RollingMin) OnEvict(in []float64) { r.onEvict(in[0]) }
func (r *RollingMin) Value(out []float64)  { out[0] = r.value() }
func (r *RollingMin) Reset()               { r.reset() }

func (r *RollingMin) NumInputs() int  { return 1 }
func (r *RollingMin) NumOutputs() int { return 1 }

// The deque lives on the heap with reserved capacity, not in the arena.
func (r *RollingMin) SizeBytes() uintptr { return 0 }
func (r *RollingMin) Alignment() uintptr { return floatAlign }

func (r *RollingMin) CloneInto(mem []byte) ports.Operator {
	mw := r.monotonicWindow
	mw.vec = make([]float64, 0, cap(r.vec))
	mw.head = 0
	return &RollingMin{monotonicWindow: mw}
}

var _ ports.Operator = (*RollingMax)(nil)

// RollingMax reports the maximum of one input column over a sliding
// window.
type RollingMax struct{ monotonicWindow }

// NewRollingMax creates a rolling maximum over the given window; see
// NewRollingMin for capHint semantics.
func NewRollingMax(spec WindowSpec, capHint int) (*RollingMax, error) {
	mw, err := newMonotonicWindow(spec, capHint, func(a, b float64) bool { return a > b })
	if err != nil {
		return nil, err
	}
	return &RollingMax{monotonicWindow: mw}, nil
}

func (r *RollingMax) OnData(in []float64)  { r.onData(in[0]) }
func (r *RollingMax) OnEvict(in []float64) { r.onEvict(in[0]) }
func (r *RollingMax) Value(out []float64)  { out[0] = r.value() }
func (r *RollingMax) Reset()               { r.reset() }

func (r *RollingMax) NumInputs() int  { return 1 }
func (r *RollingMax) NumOutputs() int { return 1 }

func (r *RollingMax) SizeBytes() uintptr { return 0 }
func (r *RollingMax) Alignment() uintptr { return floatAlign }

func (r *RollingMax) CloneInto(mem []byte) ports.Operator {
	mw := r.monotonicWindow
	mw.vec = make([]float64, 0, cap(r.vec))
	mw.head = 0
	return &RollingMax{monotonicWindow: mw}
}
