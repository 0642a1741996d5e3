// Package compile turns a validated graph.Graph into a Store: a compiled,
// arena-backed schedule ready for an executor to drive. Compilation runs
// once, at startup; nothing in this package allocates on a hot path.
package compile

import (
	"fmt"
	"sort"

	"github.com/ahrav/opflow/internal/arena"
	"github.com/ahrav/opflow/internal/graph"
	"github.com/ahrav/opflow/internal/ports"
)

// Store is the compiled form of a graph: nodes in topological order, the
// prefix-sum offsets that locate each node's output within a shared
// per-group record, and G independent arena-backed clones of every node
// (one set per replica group).
type Store struct {
	numGroups int
	numNodes  int

	// RecordSize is the width, in scalars, of one group's full record.
	RecordSize int
	// RecordOffset maps topological position -> offset of that node's
	// first output within the record.
	RecordOffset []int
	// InputOffset maps topological position -> the absolute record
	// offsets of that node's gathered inputs, in argument order. If the
	// graph has an auxiliary node, row 0 holds its argument offsets and
	// node i's row is at index i+1; otherwise node i's row is at index i.
	InputOffset *arena.FlatMultiVect[int]
	hasAux      bool
	// OutputOffset maps declared-output position -> absolute record
	// offset.
	OutputOffset []int

	// ParamOffset maps topological position -> the absolute record
	// offsets of that node's out-of-band parameter edges, in declaration
	// order. Rows are empty for nodes with no parameter edges.
	ParamOffset *arena.FlatMultiVect[int]
	// ParamNodes lists, in ascending order, the topological positions that
	// have at least one parameter edge.
	ParamNodes []int

	hasSupp    bool
	suppIndex  int

	order []graph.Handle

	store *arena.Arena
	nodes [][]ports.Operator // [group][topological position]
	aux   []ports.Operator   // [group], nil entries if the graph has no aux node
}

// HasSupp reports whether the compiled graph declared a supplementary
// root for out-of-band parameter updates.
func (s *Store) HasSupp() bool { return s.hasSupp }

// SuppIndex returns the topological position of the supplementary root,
// or -1 if the graph has none.
func (s *Store) SuppIndex() int {
	if !s.hasSupp {
		return -1
	}
	return s.suppIndex
}

// NumGroups reports the number of independent replica groups compiled.
func (s *Store) NumGroups() int { return s.numGroups }

// NumNodes reports the number of nodes in topological order. An auxiliary
// node is sorted like any other node and counted here; it additionally
// has its own per-group clone, returned by Aux.
func (s *Store) NumNodes() int { return s.numNodes }

// NumInputs reports the root node's input arity, shared by every group
// since all groups clone the same prototype set.
func (s *Store) NumInputs() int { return s.nodes[0][0].NumInputs() }

// HasAux reports whether the compiled graph declared an auxiliary node.
func (s *Store) HasAux() bool { return s.hasAux }

// Nodes returns group igrp's operator clones in topological order.
func (s *Store) Nodes(igrp int) []ports.Operator { return s.nodes[igrp] }

// Aux returns group igrp's auxiliary node clone, or nil if the graph has
// no auxiliary node.
func (s *Store) Aux(igrp int) ports.Operator {
	if !s.hasAux {
		return nil
	}
	return s.aux[igrp]
}

// InputOffsetRow returns the absolute record offsets for node i's
// arguments, where i is a topological position (0 <= i < NumNodes).
func (s *Store) InputOffsetRow(i int) []int {
	if s.hasAux {
		i++
	}
	return s.InputOffset.Row(i)
}

// AuxInputOffsetRow returns the absolute record offsets for the auxiliary
// node's arguments. Panics if the graph has no auxiliary node.
func (s *Store) AuxInputOffsetRow() []int {
	return s.InputOffset.Row(0)
}

// ParamOffsetRow returns the absolute record offsets of node i's
// out-of-band parameter edges, where i is a topological position. Empty
// if node i has no parameter edges.
func (s *Store) ParamOffsetRow(i int) []int { return s.ParamOffset.Row(i) }

// Compile validates g, topologically sorts it with Kahn's algorithm, and
// lays out numGroups independent arena-backed clones of its nodes.
func Compile(g *graph.Graph, numGroups int) (*Store, error) {
	if numGroups <= 0 {
		return nil, ports.ErrZeroGroups
	}

	snap := g.Snapshot()
	if len(snap.Nodes) == 0 {
		return nil, ports.ErrEmptyGraph
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	order, err := topoSort(snap)
	if err != nil {
		return nil, err
	}

	idx := make(map[graph.Handle]int, len(order))
	for i, h := range order {
		idx[h] = i
	}

	recordOffset := make([]int, len(order))
	recordSize := 0
	opsInOrder := make([]ports.Operator, len(order))
	for i, h := range order {
		opsInOrder[i] = snap.Nodes[h]
		recordOffset[i] = recordSize
		recordSize += opsInOrder[i].NumOutputs()
	}

	rows := len(order)
	if snap.HasAux {
		rows++
	}
	inputOffset := arena.NewFlatMultiVect[int](rows, rows*2)

	if snap.HasAux {
		auxEdges := snap.Preds[snap.Aux]
		row := make([]int, len(auxEdges))
		for j, e := range auxEdges {
			row[j] = recordOffset[idx[e.Producer]] + e.Port
		}
		inputOffset.PushRow(row)
	}
	for _, h := range order {
		edges := snap.Preds[h]
		row := make([]int, len(edges))
		for j, e := range edges {
			row[j] = recordOffset[idx[e.Producer]] + e.Port
		}
		inputOffset.PushRow(row)
	}

	outputOffset := make([]int, len(snap.Outputs))
	for i, e := range snap.Outputs {
		outputOffset[i] = recordOffset[idx[e.Producer]] + e.Port
	}

	paramOffset := arena.NewFlatMultiVect[int](len(order), len(order))
	var paramNodes []int
	for i, h := range order {
		edges := snap.ParamPreds[h]
		if len(edges) > 0 {
			paramNodes = append(paramNodes, i)
		}
		row := make([]int, len(edges))
		for j, e := range edges {
			row[j] = recordOffset[idx[e.Producer]] + e.Port
		}
		paramOffset.PushRow(row)
	}

	s := &Store{
		numGroups:    numGroups,
		numNodes:     len(order),
		RecordSize:   recordSize,
		RecordOffset: recordOffset,
		InputOffset:  inputOffset,
		hasAux:       snap.HasAux,
		OutputOffset: outputOffset,
		ParamOffset:  paramOffset,
		ParamNodes:   paramNodes,
		hasSupp:      snap.HasSupp,
		order:        order,
	}
	if snap.HasSupp {
		s.suppIndex = idx[snap.Supp]
	}

	var auxOp ports.Operator
	if snap.HasAux {
		auxOp = snap.Nodes[snap.Aux]
	}
	if err := s.layout(opsInOrder, auxOp); err != nil {
		return nil, err
	}
	return s, nil
}

// topoSort runs Kahn's algorithm over snap's declared edges, counting
// in-degree by distinct predecessor node rather than by edge, and breaks
// ties among simultaneously-ready nodes by ascending handle value so
// compilation is deterministic.
func topoSort(snap graph.Snapshot) ([]graph.Handle, error) {
	predSet := make(map[graph.Handle]map[graph.Handle]struct{}, len(snap.Nodes))
	succSet := make(map[graph.Handle]map[graph.Handle]struct{}, len(snap.Nodes))
	for h := range snap.Nodes {
		predSet[h] = make(map[graph.Handle]struct{})
		succSet[h] = make(map[graph.Handle]struct{})
	}
	for h, edges := range snap.Preds {
		for _, e := range edges {
			predSet[h][e.Producer] = struct{}{}
			succSet[e.Producer][h] = struct{}{}
		}
	}

	inDegree := make(map[graph.Handle]int, len(snap.Nodes))
	var ready []graph.Handle
	for h := range snap.Nodes {
		inDegree[h] = len(predSet[h])
		if inDegree[h] == 0 {
			ready = append(ready, h)
		}
	}

	// rank biases the root to position 0 and the supplementary root to
	// position 1 whenever both are zero-indegree, which they always are;
	// everything else ties-break by ascending handle. The executor relies
	// on the root landing at index 0.
	rank := func(h graph.Handle) int {
		if snap.HasRoot && h == snap.Root {
			return 0
		}
		if snap.HasSupp && h == snap.Supp {
			return 1
		}
		return 2
	}
	less := func(a, b graph.Handle) bool {
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		return a < b
	}

	order := make([]graph.Handle, 0, len(snap.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)

		succs := make([]graph.Handle, 0, len(succSet[cur]))
		for succ := range succSet[cur] {
			succs = append(succs, succ)
		}
		sort.Slice(succs, func(i, j int) bool { return less(succs[i], succs[j]) })
		for _, succ := range succs {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(order) != len(snap.Nodes) {
		return nil, ports.NewGraphError("", ports.ErrCycle)
	}
	return order, nil
}

// layout computes the per-group arena size, allocates one contiguous
// arena, and places numGroups clones of aux (if present) followed by
// every node in opsInOrder, with each group's first allocation padded up
// to a cache line boundary so neighboring groups never share a line.
func (s *Store) layout(opsInOrder []ports.Operator, aux ports.Operator) error {
	maxAlign := uintptr(arena.CacheLineSize)
	groupSize := uintptr(0)

	if aux != nil {
		align := max(arena.CacheLineSize, aux.Alignment())
		if align > maxAlign {
			maxAlign = align
		}
		groupSize = arena.AlignUp(groupSize, align) + aux.SizeBytes()
	}
	for i, op := range opsInOrder {
		align := op.Alignment()
		if aux == nil && i == 0 && align < arena.CacheLineSize {
			align = arena.CacheLineSize
		}
		if align > maxAlign {
			maxAlign = align
		}
		groupSize = arena.AlignUp(groupSize, align) + op.SizeBytes()
	}
	// The next group starts on a cache-line boundary, so each group spans
	// a whole number of maxAlign blocks.
	groupSize = arena.AlignUp(groupSize, maxAlign)

	total := uintptr(s.numGroups)*groupSize + maxAlign
	a := arena.NewArena(total)

	nodes := make([][]ports.Operator, s.numGroups)
	var auxClones []ports.Operator
	if aux != nil {
		auxClones = make([]ports.Operator, s.numGroups)
	}

	for g := 0; g < s.numGroups; g++ {
		if aux != nil {
			align := max(arena.CacheLineSize, aux.Alignment())
			mem, err := a.Alloc(aux.SizeBytes(), align)
			if err != nil {
				return fmt.Errorf("allocating auxiliary node for group %d: %w", g, err)
			}
			auxClones[g] = aux.CloneInto(mem)
		}

		groupNodes := make([]ports.Operator, len(opsInOrder))
		for i, op := range opsInOrder {
			align := op.Alignment()
			if aux == nil && i == 0 && align < arena.CacheLineSize {
				align = arena.CacheLineSize
			}
			mem, err := a.Alloc(op.SizeBytes(), align)
			if err != nil {
				return fmt.Errorf("allocating node %d for group %d: %w", i, g, err)
			}
			groupNodes[i] = op.CloneInto(mem)
		}
		nodes[g] = groupNodes
	}

	s.store = a
	s.nodes = nodes
	s.aux = auxClones
	return nil
}

func max(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}
