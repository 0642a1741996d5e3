package exec

import "github.com/ahrav/opflow/internal/compile"

// FnExec drives a compiled, stateless DAG: every node fires on every
// event and nothing is retained between events beyond each node's own
// internal state (if any). There is no history, no eviction, and no
// notion of a retention window.
type FnExec struct {
	store     *compile.Store
	numGroups int

	record [][]float64 // [group], current record
	time   []float64   // [group], timestamp of the last OnData call
	scratch [][]float64
}

// NewFnExec builds a FnExec over store.
func NewFnExec(store *compile.Store) *FnExec {
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

	record := make([][]float64, numGroups)
	scratch := make([][]float64, numGroups)
	for g := 0; g < numGroups; g++ {
		record[g] = make([]float64, store.RecordSize)
		scratch[g] = make([]float64, maxArgs)
	}

	return &FnExec{
		store:     store,
		numGroups: numGroups,
		record:    record,
		time:      make([]float64, numGroups),
		scratch:   scratch,
	}
}

// NumGroups reports the number of independent replica groups.
func (e *FnExec) NumGroups() int { return e.numGroups }

// NumOutputs reports the width of the vector Value writes.
func (e *FnExec) NumOutputs() int { return len(e.store.OutputOffset) }

// NumInputs reports the root node's input arity.
func (e *FnExec) NumInputs() int { return e.store.NumInputs() }

func (e *FnExec) checkGroup(igrp int) error { return checkGroup(igrp, e.numGroups) }

// OnData drives every node of group igrp, in topological order, from
// input. timestamp is recorded verbatim and returned by Value; it is
// never passed to a node.
func (e *FnExec) OnData(igrp int, timestamp float64, input []float64) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	nodes := e.store.Nodes(igrp)
	row := e.record[igrp]

	root := nodes[0]
	off0 := e.store.RecordOffset[0]
	root.OnData(input)
	root.Value(row[off0 : off0+root.NumOutputs()])

	suppIdx := e.store.SuppIndex()
	for i := 1; i < len(nodes); i++ {
		if i == suppIdx {
			continue
		}
		op := nodes[i]
		args := gather(e.scratch[igrp], row, e.store.InputOffsetRow(i))
		op.OnData(args)
		off := e.store.RecordOffset[i]
		op.Value(row[off : off+op.NumOutputs()])
	}

	e.time[igrp] = timestamp
	return nil
}

// Value writes group igrp's current declared output vector into out and
// returns the timestamp of the event that produced it.
func (e *FnExec) Value(igrp int, out []float64) (float64, error) {
	if err := e.checkGroup(igrp); err != nil {
		return 0, err
	}
	row := e.record[igrp]
	for i, off := range e.store.OutputOffset {
		out[i] = row[off]
	}
	return e.time[igrp], nil
}

// OnParam absorbs one out-of-band parameter row into group igrp's
// supplementary root and broadcasts it to every downstream ParamOperator,
// mirroring OpExec.OnParam.
func (e *FnExec) OnParam(igrp int, input []float64) error {
	if err := e.checkGroup(igrp); err != nil {
		return err
	}
	if !e.store.HasSupp() {
		return errNoSupp
	}
	nodes := e.store.Nodes(igrp)
	si := e.store.SuppIndex()
	supp := nodes[si]
	row := e.record[igrp]

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
