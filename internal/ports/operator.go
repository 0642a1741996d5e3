package ports

// WindowMode classifies how an operator's retention requirement behaves.
// Static modes are sampled once at compile time; dynamic modes are
// re-sampled from the operator after every on_data call.
type WindowMode int

const (
	// Cumulative operators depend on all past events equally and never
	// evict.
	Cumulative WindowMode = iota
	// EventWindow retains a fixed count of the most recent rows.
	EventWindow
	// TimeWindow retains rows within a fixed duration of the latest
	// timestamp.
	TimeWindow
	// DynEventWindow is like EventWindow but the count is re-read from the
	// operator after every step.
	DynEventWindow
	// DynTimeWindow is like TimeWindow but the duration is re-read from the
	// operator after every step.
	DynTimeWindow
)

// IsEvent reports whether m evicts by retained event count.
func (m WindowMode) IsEvent() bool { return m == EventWindow || m == DynEventWindow }

// IsTime reports whether m evicts by elapsed time span.
func (m WindowMode) IsTime() bool { return m == TimeWindow || m == DynTimeWindow }

// IsDynamic reports whether m must be re-sampled after every on_data call.
func (m WindowMode) IsDynamic() bool { return m == DynEventWindow || m == DynTimeWindow }

// Operator is the capability set every DAG node must satisfy. Arguments
// are raw float64 scalar rows; an implementation must not retain the
// slices passed to it beyond the call, and must not allocate or panic
// under normal operation.
//
// in and out are guaranteed non-aliasing by the executor. out_ptr/value
// calls always write exactly NumOutputs() scalars; on_data and on_evict
// always read exactly NumInputs() scalars.
type Operator interface {
	// OnData absorbs one input row of length NumInputs().
	OnData(in []float64)

	// Value writes the operator's current output row, of length
	// NumOutputs(), into out. Value has no side effects and may be called
	// any number of times between OnData calls.
	Value(out []float64)

	// OnEvict retracts one previously absorbed row, identified by the same
	// values originally passed to OnData. Called in chronological order of
	// eviction, exactly once per expired row. Never called on cumulative
	// operators.
	OnEvict(in []float64)

	// Reset returns the operator to its construction-time state. Used by
	// the tumble executor between windows and by explicit reinitialization.
	Reset()

	// WindowMode reports the operator's retention behavior.
	WindowMode() WindowMode

	// WindowEventCount returns the retained row count for EventWindow and
	// DynEventWindow modes. Undefined for other modes.
	WindowEventCount() int

	// WindowDuration returns the retained time span for TimeWindow and
	// DynTimeWindow modes, expressed in the same units as event
	// timestamps. Undefined for other modes.
	WindowDuration() float64

	// CloneInto placement-constructs a per-group copy of this operator
	// into the memory pointed to by mem, which is at least SizeBytes()
	// long and aligned to Alignment(). State that fits in SizeBytes() is
	// kept in mem; an operator that reports a SizeBytes() of 0 (such as one
	// with a growable deque) reserves its own storage here instead.
	CloneInto(mem []byte) Operator

	// SizeBytes is the number of bytes CloneInto requires.
	SizeBytes() uintptr

	// Alignment is the required alignment of the memory passed to
	// CloneInto.
	Alignment() uintptr

	// NumInputs is the operator's fixed input arity.
	NumInputs() int

	// NumOutputs is the operator's fixed output arity.
	NumOutputs() int
}

// ParamOperator is implemented by operators that accept out-of-band
// parameter updates dispatched by a compiled graph's supplementary root
// (see OpExec.OnParam in package exec). It is optional: operators that don't need
// parameter updates need not implement it.
type ParamOperator interface {
	Operator

	// OnParam absorbs one parameter row routed to this operator.
	OnParam(in []float64)
}

// EmitSpec describes a tumble predicate's decision to emit, produced by
// TumblePredicate.Emit after On Data reports should-emit.
type EmitSpec struct {
	// Timestamp is the timestamp to report for this emission.
	Timestamp float64
	// IncludeCurrent indicates whether the current event's contribution
	// should be folded into the emitted window (drive-then-flush) or
	// held back for the next window (flush-then-drive).
	IncludeCurrent bool
}

// TumblePredicate is the window operator that gates emission for a
// tumble_exec DAG. It occupies a dedicated per-group slot alongside the
// regular operator set.
type TumblePredicate interface {
	// OnData absorbs the gathered root outputs for one event and reports
	// whether the window should emit.
	OnData(timestamp float64, in []float64) bool

	// Emit returns the emission descriptor for the window that just
	// closed. Only valid to call immediately after OnData returned true.
	Emit() EmitSpec

	// Reset returns the predicate to its construction-time state.
	Reset()

	// CloneInto placement-constructs a per-group copy, mirroring Operator.
	CloneInto(mem []byte) TumblePredicate
	SizeBytes() uintptr
	Alignment() uintptr
}
