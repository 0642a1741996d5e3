package exec

import (
	"fmt"

	"github.com/ahrav/opflow/internal/arena"
	"github.com/ahrav/opflow/internal/compile"
	"github.com/ahrav/opflow/internal/ports"
)

// TumbleExec drives a compiled DAG behind a tumbling window predicate:
// every node runs on every event, as in FnExec, but the predicate decides
// when the window closes. On close the accumulated record is flushed to
// the caller and every non-root node is reset, with the current event's
// contribution either folded into the closing window or held back for
// the next one, depending on the predicate's EmitSpec.
//
// The predicate occupies its own per-group slot, cloned from a single
// prototype the same way compile.Store clones operators; it is not a
// node in the underlying graph and never appears in store.Nodes.
type TumbleExec struct {
	store     *compile.Store
	numGroups int

	predArena *arena.Arena
	pred      []ports.TumblePredicate // [group]

	record   [][]float64 // [group], current record
	paramRow [][]float64 // [group], latest supplementary-root record
	scratch  [][]float64 // [group], reused gather buffer
}

// NewTumbleExec builds a TumbleExec over store, cloning numGroups
// independent copies of proto. proto must not be shared with any other
// executor.
func NewTumbleExec(store *compile.Store, proto ports.TumblePredicate) (*TumbleExec, error) {
	numGroups := store.NumGroups()

	maxArgs := 0
	for i := 0; i < store.NumNodes(); i++ {
		if row := store.InputOffsetRow(i); len(row) > maxArgs {
			maxArgs = len(row)
		}
		if store.HasSupp() {
			if row := store.ParamOffsetRow(i); len(row) > maxArgs {
				maxArgs = len(row)
			}
		}
	}

	align := proto.Alignment()
	groupAlign := align
	if groupAlign < arena.CacheLineSize {
		groupAlign = arena.CacheLineSize
	}
	groupSize := arena.AlignUp(proto.SizeBytes(), groupAlign)
	total := uintptr(numGroups)*groupSize + groupAlign
	a := arena.NewArena(total)

	pred := make([]ports.TumblePredicate, numGroups)
	record := make([][]float64, numGroups)
	paramRow := make([][]float64, numGroups)
	scratch := make([][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		mem, err := a.Alloc(proto.SizeBytes(), groupAlign)
		if err != nil {
			return nil, fmt.Errorf("tumbleexec: allocating predicate for group %d: %w", g, err)
		}
		pred[g] = proto.CloneInto(mem)
		record[g] = make([]float64, store.RecordSize)
		paramRow[g] = make([]float64, store.RecordSize)
		scratch[g] = make([]float64, maxArgs)
	}

	return &TumbleExec{
		store:     store,
		numGroups: numGroups,
		predArena: a,
		pred:      pred,
		record:    record,
		paramRow:  paramRow,
		scratch:   scratch,
	}, nil
}

// NumGroups reports the number of independent replica groups.
func (e *TumbleExec) NumGroups() int { return e.numGroups }

// NumOutputs reports the width of the vector flushed on emission.
func (e *TumbleExec) NumOutputs() int { return len(e.store.OutputOffset) }

// NumInputs reports the root node's input arity.
func (e *TumbleExec) NumInputs() int { return e.store.NumInputs() }

func (e *TumbleExec) checkGroup(igrp int) error { return checkGroup(igrp, e.numGroups) }

// OnData absorbs one timestamped event into group igrp. It always drives
// the root and feeds the gathered root outputs to the window predicate.
// If the predicate does not signal emission, every other node runs
// normally and OnData reports no emission. If the predicate does signal
// emission, the order of update/flush/reset is governed by the emitted
// EmitSpec: IncludeCurrent folds the current event into the closing
// window before flushing and resetting; otherwise the window is flushed
// and reset first, and the current event opens the next window.
//
// out must be at least NumOutputs long. OnData returns the emitted
// timestamp and true if a window closed on this call.
func (e *TumbleExec) OnData(igrp int, timestamp float64, input []float64, out []float64) (float64, bool, error) {
	if err := e.checkGroup(igrp); err != nil {
		return 0, false, err
	}
	nodes := e.store.Nodes(igrp)
	row := e.record[igrp]

	off0 := e.store.RecordOffset[0]
	root := nodes[0]
	root.OnData(input)
	root.Value(row[off0 : off0+root.NumOutputs()])

	// The predicate watches the root's full output vector rather than an
	// arbitrary declared port subset.
	rootOut := row[off0 : off0+root.NumOutputs()]
	shouldEmit := e.pred[igrp].OnData(timestamp, rootOut)

	suppIdx := e.store.SuppIndex()
	if !shouldEmit {
		for i := 1; i < len(nodes); i++ {
			if i == suppIdx {
				continue
			}
			e.step(igrp, nodes, row, i)
		}
		return 0, false, nil
	}

	spec := e.pred[igrp].Emit()
	if spec.IncludeCurrent {
		for i := 1; i < len(nodes); i++ {
			if i == suppIdx {
				continue
			}
			e.step(igrp, nodes, row, i)
			nodes[i].Reset()
		}
		e.flush(igrp, out)
	} else {
		e.flush(igrp, out)
		for i := 1; i < len(nodes); i++ {
			if i == suppIdx {
				continue
			}
			nodes[i].Reset()
			e.step(igrp, nodes, row, i)
		}
	}
	return spec.Timestamp, true, nil
}

func (e *TumbleExec) step(igrp int, nodes []ports.Operator, row []float64, i int) {
	op := nodes[i]
	args := gather(e.scratch[igrp], row, e.store.InputOffsetRow(i))
	op.OnData(args)
	off := e.store.RecordOffset[i]
	op.Value(row[off : off+op.NumOutputs()])
}

// flush copies group igrp's current declared output vector into out.
func (e *TumbleExec) flush(igrp int, out []float64) {
	row := e.record[igrp]
	for i, off := range e.store.OutputOffset {
		out[i] = row[off]
	}
}

// OnParam absorbs one out-of-band parameter row into group igrp's
// supplementary root and broadcasts it to every downstream ParamOperator,
// mirroring OpExec.OnParam and FnExec.OnParam.
func (e *TumbleExec) OnParam(igrp int, input []float64) error {
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
		if po, ok := nodes[pos].(paramOperator); ok {
			args := gather(e.scratch[igrp], row, e.store.ParamOffsetRow(pos))
			po.OnParam(args)
		}
	}
	return nil
}

// Reset returns group igrp, including its window predicate, to its
// construction-time state.
func (e *TumbleExec) Reset(igrp int) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	for _, op := range e.store.Nodes(igrp) {
		op.Reset()
	}
	e.pred[igrp].Reset()
	row := e.record[igrp]
	for i := range row {
		row[i] = 0
	}
	return nil
}
