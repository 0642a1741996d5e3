package operators

import (
	"fmt"
	"math"

	"github.com/ahrav/opflow/internal/ports"
)

var _ ports.TumblePredicate = (*CountTumble)(nil)

// CountTumble closes a window after every N events. The emitted
// timestamp is that of the last event in the window, and the closing
// event's contribution is included in the flushed bar.
type CountTumble struct {
	windowSize int
	count      int
	emitting   float64
}

// NewCountTumble creates a predicate that fires every windowSize events.
func NewCountTumble(windowSize int) (*CountTumble, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("count tumble: window size must be positive, got %d", windowSize)
	}
	return &CountTumble{windowSize: windowSize}, nil
}

func (p *CountTumble) OnData(timestamp float64, in []float64) bool {
	p.count++
	if p.count < p.windowSize {
		return false
	}
	p.emitting = timestamp
	p.count = 0
	return true
}

func (p *CountTumble) Emit() ports.EmitSpec {
	return ports.EmitSpec{Timestamp: p.emitting, IncludeCurrent: true}
}

func (p *CountTumble) Reset() { p.count = 0 }

func (p *CountTumble) SizeBytes() uintptr { return 0 }
func (p *CountTumble) Alignment() uintptr { return floatAlign }

func (p *CountTumble) CloneInto(mem []byte) ports.TumblePredicate {
	return &CountTumble{windowSize: p.windowSize}
}

var _ ports.TumblePredicate = (*TimeTumble)(nil)

// TimeTumble closes windows on fixed time boundaries aligned to
// multiples of the window size. A window is right-open: the event that
// crosses a boundary belongs to the next window, so emissions exclude
// the current event. The emitted timestamp is the boundary crossed,
// regardless of how far past it the triggering event landed.
type TimeTumble struct {
	windowSize float64
	nextTick   float64
	emitting   float64
	init       bool
}

// NewTimeTumble creates a predicate firing on every windowSize boundary.
func NewTimeTumble(windowSize float64) (*TimeTumble, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("time tumble: window size must be positive, got %g", windowSize)
	}
	return &TimeTumble{windowSize: windowSize}, nil
}

func (p *TimeTumble) OnData(timestamp float64, in []float64) bool {
	if !p.init {
		p.nextTick = math.Floor(timestamp/p.windowSize+1) * p.windowSize
		p.init = true
	}
	if timestamp < p.nextTick {
		return false
	}

	p.emitting = p.nextTick
	for timestamp >= p.nextTick {
		p.nextTick += p.windowSize
	}
	return true
}

func (p *TimeTumble) Emit() ports.EmitSpec {
	return ports.EmitSpec{Timestamp: p.emitting, IncludeCurrent: false}
}

func (p *TimeTumble) Reset() {
	p.nextTick = 0
	p.emitting = 0
	p.init = false
}

func (p *TimeTumble) SizeBytes() uintptr { return 0 }
func (p *TimeTumble) Alignment() uintptr { return floatAlign }

func (p *TimeTumble) CloneInto(mem []byte) ports.TumblePredicate {
	return &TimeTumble{windowSize: p.windowSize}
}
