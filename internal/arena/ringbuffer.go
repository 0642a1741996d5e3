package arena

// RingBuffer is a growable power-of-two circular buffer of fixed-width
// float64 rows, each tagged with a timestamp. It backs the per-group
// history used by the windowed executor: events push onto the back,
// expired rows pop off the front, and the buffer grows by doubling
// in-place when full rather than ever shifting existing entries.
type RingBuffer struct {
	ticks    []float64
	values   []float64
	rowWidth int
	capacity int // always a power of two
	head     int
	count    int
}

// NewRingBuffer returns a RingBuffer sized for rows of rowWidth scalars,
// with room for at least initialCapacity rows (rounded up to a power of
// two; a zero or negative hint defaults to 16).
func NewRingBuffer(rowWidth, initialCapacity int) *RingBuffer {
	if initialCapacity <= 0 {
		initialCapacity = 16
	}
	cap := nextPow2(initialCapacity)
	return &RingBuffer{
		rowWidth: rowWidth,
		capacity: cap,
		ticks:    make([]float64, cap),
		values:   make([]float64, cap*rowWidth),
	}
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push reserves the next slot, tags it with t, and returns a mutable,
// zeroed span the caller writes the row's payload into. The buffer grows
// (doubling capacity) if it is full.
func (r *RingBuffer) Push(t float64) []float64 {
	if r.count == r.capacity {
		r.grow(r.capacity * 2)
	}
	tail := (r.head + r.count) & (r.capacity - 1)
	r.ticks[tail] = t
	start := tail * r.rowWidth
	row := r.values[start : start+r.rowWidth : start+r.rowWidth]
	for i := range row {
		row[i] = 0
	}
	r.count++
	return row
}

func (r *RingBuffer) grow(newCap int) {
	newTicks := make([]float64, newCap)
	newValues := make([]float64, newCap*r.rowWidth)
	for i := 0; i < r.count; i++ {
		srcIdx := (r.head + i) & (r.capacity - 1)
		newTicks[i] = r.ticks[srcIdx]
		copy(newValues[i*r.rowWidth:(i+1)*r.rowWidth], r.values[srcIdx*r.rowWidth:(srcIdx+1)*r.rowWidth])
	}
	r.ticks = newTicks
	r.values = newValues
	r.capacity = newCap
	r.head = 0
}

// Pop removes the oldest row. It is a no-op on an empty buffer.
func (r *RingBuffer) Pop() {
	if r.count == 0 {
		return
	}
	r.head = (r.head + 1) & (r.capacity - 1)
	r.count--
}

// At returns the timestamp and payload of the row at logical index idx,
// where 0 is the oldest retained row and Len()-1 is the newest. The
// returned slice aliases the buffer's backing storage.
func (r *RingBuffer) At(idx int) (float64, []float64) {
	actual := (r.head + idx) & (r.capacity - 1)
	start := actual * r.rowWidth
	return r.ticks[actual], r.values[start : start+r.rowWidth : start+r.rowWidth]
}

// Back returns the most recently pushed row.
func (r *RingBuffer) Back() (float64, []float64) { return r.At(r.count - 1) }

// Len returns the number of rows currently retained.
func (r *RingBuffer) Len() int { return r.count }

// RowWidth returns the fixed per-row payload width.
func (r *RingBuffer) RowWidth() int { return r.rowWidth }
