// Package exec drives compiled graphs: op_exec replays time-ordered
// events through a windowed, stateful DAG; fn_exec replays one event
// through a purely stateless DAG. Neither type synchronizes internally —
// callers drive each group from at most one goroutine at a time, while
// different groups may be driven concurrently.
package exec

import (
	"github.com/ahrav/opflow/internal/arena"
	"github.com/ahrav/opflow/internal/compile"
	"github.com/ahrav/opflow/internal/ports"
)

type windowDesc struct {
	cumulative      bool
	dynamic         bool
	event           bool
	staticEventSize int
	staticTimeSize  float64
}

// defaultHistoryCapacity is the initial per-group history ring size, in
// rows, when the caller gives no hint.
const defaultHistoryCapacity = 16

// OpExec drives a compiled, windowed, stateful DAG across G independent
// replica groups. Each on_data call advances one group's history by one
// event: it runs every node in topological order, evicts expired rows
// from any non-cumulative node whose retention window has slid past
// them, and trims the shared per-group history once no node still
// references the oldest retained row.
type OpExec struct {
	store     *compile.Store
	numGroups int
	capHint   int

	desc          []windowDesc
	allCumulative bool

	stepCount [][]int            // [group][topological position]
	history   []*arena.RingBuffer // [group]
	paramRow  [][]float64        // [group], latest supplementary-root record
	scratch   [][]float64        // [group], reused gather buffer
}

// NewOpExec builds an OpExec over store with the default history
// capacity hint.
func NewOpExec(store *compile.Store) *OpExec {
	return NewOpExecCapacity(store, defaultHistoryCapacity)
}

// NewOpExecCapacity builds an OpExec over store with an initial
// per-group history capacity of capacityHint rows (rounded up to a
// power of two; non-positive hints fall back to the default). Window
// descriptors are sampled once from group 0's operator clones; every
// group's clones share the same static configuration because they were
// cloned from the same prototype set.
func NewOpExecCapacity(store *compile.Store, capacityHint int) *OpExec {
	if capacityHint <= 0 {
		capacityHint = defaultHistoryCapacity
	}
	n := store.NumNodes()
	desc := make([]windowDesc, n)
	allCumulative := true
	maxArgs := 0

	proto := store.Nodes(0)
	for i := 0; i < n; i++ {
		op := proto[i]
		wm := op.WindowMode()
		d := windowDesc{}
		if wm == ports.Cumulative {
			d.cumulative = true
		} else {
			allCumulative = false
			d.dynamic = wm.IsDynamic()
			d.event = wm.IsEvent()
			if d.event {
				d.staticEventSize = op.WindowEventCount()
			} else {
				d.staticTimeSize = op.WindowDuration()
			}
		}
		desc[i] = d
		if row := store.InputOffsetRow(i); len(row) > maxArgs {
			maxArgs = len(row)
		}
		if store.HasSupp() {
			if row := store.ParamOffsetRow(i); len(row) > maxArgs {
				maxArgs = len(row)
			}
		}
	}

	numGroups := store.NumGroups()
	stepCount := make([][]int, numGroups)
	history := make([]*arena.RingBuffer, numGroups)
	paramRow := make([][]float64, numGroups)
	scratch := make([][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		sc := make([]int, n)
		for i, d := range desc {
			if d.cumulative {
				sc[i] = 1
			}
		}
		stepCount[g] = sc
		history[g] = arena.NewRingBuffer(store.RecordSize, capacityHint)
		paramRow[g] = make([]float64, store.RecordSize)
		scratch[g] = make([]float64, maxArgs)
	}

	return &OpExec{
		store:         store,
		numGroups:     numGroups,
		capHint:       capacityHint,
		desc:          desc,
		allCumulative: allCumulative,
		stepCount:     stepCount,
		history:       history,
		paramRow:      paramRow,
		scratch:       scratch,
	}
}

// NumGroups reports the number of independent replica groups.
func (e *OpExec) NumGroups() int { return e.numGroups }

// NumOutputs reports the width of the vector Value writes.
func (e *OpExec) NumOutputs() int { return len(e.store.OutputOffset) }

// NumInputs reports the root node's input arity.
func (e *OpExec) NumInputs() int { return e.store.NumInputs() }

func (e *OpExec) checkGroup(igrp int) error { return checkGroup(igrp, e.numGroups) }

// OnData absorbs one timestamped event into group igrp: it drives the
// root, then every subsequent node in topological order, evicting
// expired rows from windowed nodes as their step count crosses their
// window boundary, then trims history down to what the slowest node
// still needs.
func (e *OpExec) OnData(igrp int, timestamp float64, input []float64) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	nodes := e.store.Nodes(igrp)
	history := e.history[igrp]
	row := history.Push(timestamp)

	root := nodes[0]
	off0 := e.store.RecordOffset[0]
	root.OnData(input)
	root.Value(row[off0 : off0+root.NumOutputs()])

	suppIdx := e.store.SuppIndex()
	sc := e.stepCount[igrp]
	for i := 1; i < len(nodes); i++ {
		if i == suppIdx {
			// The supplementary root is driven only by OnParam, never by
			// the regular event stream.
			continue
		}
		op := nodes[i]
		args := gather(e.scratch[igrp], row, e.store.InputOffsetRow(i))
		op.OnData(args)

		if !e.desc[i].cumulative {
			sc[i]++
			if e.desc[i].event {
				e.evictEvent(igrp, i, op)
			} else {
				e.evictTime(igrp, i, timestamp, op)
			}
		}

		off := e.store.RecordOffset[i]
		op.Value(row[off : off+op.NumOutputs()])
	}

	if e.allCumulative {
		for history.Len() > 1 {
			history.Pop()
		}
	} else {
		maxCount := 0
		for _, c := range sc {
			if c > maxCount {
				maxCount = c
			}
		}
		for history.Len() > maxCount {
			history.Pop()
		}
	}
	return nil
}

// evictEvent retracts rows that have aged out of node i's event-count
// window: history holds step_count[i] rows contributed to i since its
// last full reset, and only the most recent win_size of those remain
// wanted.
func (e *OpExec) evictEvent(igrp, i int, op ports.Operator) {
	history := e.history[igrp]
	sc := e.stepCount[igrp]

	winSize := e.desc[i].staticEventSize
	if e.desc[i].dynamic {
		winSize = op.WindowEventCount()
	}
	if sc[i] <= winSize {
		return
	}

	k := history.Len() - sc[i]
	kp := history.Len() - winSize
	offsets := e.store.InputOffsetRow(i)
	for idx := k; idx < kp; idx++ {
		_, fullRow := history.At(idx)
		args := gather(e.scratch[igrp], fullRow, offsets)
		op.OnEvict(args)
		sc[i]--
	}
}

// evictTime retracts rows whose timestamp has fallen at or before
// timestamp - window_duration, the right-inclusive/left-exclusive
// boundary of a time window.
func (e *OpExec) evictTime(igrp, i int, timestamp float64, op ports.Operator) {
	history := e.history[igrp]
	sc := e.stepCount[igrp]

	winSize := e.desc[i].staticTimeSize
	if e.desc[i].dynamic {
		winSize = op.WindowDuration()
	}
	winStart := timestamp - winSize

	k := history.Len() - sc[i]
	offsets := e.store.InputOffsetRow(i)
	for idx := k; idx < history.Len(); idx++ {
		t, fullRow := history.At(idx)
		if t > winStart {
			break
		}
		args := gather(e.scratch[igrp], fullRow, offsets)
		op.OnEvict(args)
		sc[i]--
	}
}

// Value writes group igrp's current declared output vector into out,
// which must be at least NumOutputs long.
func (e *OpExec) Value(igrp int, out []float64) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	_, row := e.history[igrp].Back()
	for i, off := range e.store.OutputOffset {
		out[i] = row[off]
	}
	return nil
}

// OnParam absorbs one out-of-band parameter row into group igrp's
// supplementary root and broadcasts the result to every downstream
// ParamOperator that declared a parameter edge. It returns an error if
// the compiled graph has no supplementary root.
func (e *OpExec) OnParam(igrp int, input []float64) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	if !e.store.HasSupp() {
		return errNoSupp
	}

	nodes := e.store.Nodes(igrp)
	si := e.store.SuppIndex()
	supp := nodes[si]
	row := e.paramRow[igrp]

	off := e.store.RecordOffset[si]
	supp.OnData(input)
	supp.Value(row[off : off+supp.NumOutputs()])

	for _, pos := range e.store.ParamNodes {
		if pos == si {
			continue
		}
		po, ok := nodes[pos].(paramOperator)
		if !ok {
			continue
		}
		args := gather(e.scratch[igrp], row, e.store.ParamOffsetRow(pos))
		po.OnParam(args)
	}
	return nil
}

// Reset returns group igrp to its construction-time state: every node is
// reset, step counts are cleared, and history is emptied.
func (e *OpExec) Reset(igrp int) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	for i, op := range e.store.Nodes(igrp) {
		op.Reset()
		if e.desc[i].cumulative {
			e.stepCount[igrp][i] = 1
		} else {
			e.stepCount[igrp][i] = 0
		}
	}
	e.history[igrp] = arena.NewRingBuffer(e.store.RecordSize, e.capHint)
	return nil
}
