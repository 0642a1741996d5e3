// Package operators provides the concrete operator library for the
// opflow DAG executor: market-data aggregates (rolling sum, mean,
// standard deviation, VWAP, order flow, book imbalance), structural
// operators (passthrough root, lag, min/max, event count), tumble-reset
// aggregates (OHLC, returns), stateless arithmetic nodes, and the
// tumbling-window predicates that gate emission.
//
// Every operator implements ports.Operator (or ports.TumblePredicate)
// and is configured through a validated config struct. Operators whose
// state is a fixed set of scalars placement-construct that state into
// the arena memory the executor hands to CloneInto; operators that need
// growable storage reserve capacity at clone time and do not reallocate
// in steady state.
package operators

import (
	"errors"
	"math"
	"unsafe"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by operator constructors. Runtime operator work
// never returns errors; misconfiguration is caught at construction.
var (
	// ErrWindowSpec is returned when a window specification sets both an
	// event count and a time span, or neither.
	ErrWindowSpec = errors.New("window must set exactly one of events or span")

	// ErrBadArity is returned when an operator is constructed with a
	// non-positive column count.
	ErrBadArity = errors.New("column count must be positive")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

const epsilon = 1e-12

// verySmall reports whether v is too close to zero to divide by.
func verySmall(v float64) bool { return math.Abs(v) < epsilon }

const floatSize = unsafe.Sizeof(float64(0))

// stateFloats reinterprets arena memory as a float64 slice of length n.
// When mem is too small — as it is for a prototype built outside an
// arena — the state falls back to an ordinary heap slice.
func stateFloats(mem []byte, n int) []float64 {
	if n == 0 {
		return nil
	}
	if uintptr(len(mem)) < uintptr(n)*floatSize {
		return make([]float64, n)
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&mem[0])), n)
}

// floatStateBytes is the SizeBytes value for an operator keeping n
// float64 scalars in the arena.
func floatStateBytes(n int) uintptr { return uintptr(n) * floatSize }

// floatAlign is the Alignment value shared by all scalar-state operators.
const floatAlign = uintptr(8)
