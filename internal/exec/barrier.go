package exec

import (
	"sync/atomic"

	"github.com/ahrav/opflow/internal/arena"
)

// paddedSeq spaces the per-group counters a cache line apart so that
// neighboring groups' Enter/Leave traffic never contends on one line.
type paddedSeq struct {
	seq atomic.Uint64
	_   [arena.CacheLineSize - 8]byte
}

// GroupBarrier is the optional publication barrier for deployments where
// a group may be driven by different threads across successive events.
// Enter at event begin, Leave at event end: the release-increment in
// Leave paired with the acquire-load in Enter makes every side effect of
// the prior event visible to whichever goroutine drives the group next.
//
// The barrier provides visibility only, not mutual exclusion; the caller
// remains responsible for never driving one group from two goroutines at
// once.
type GroupBarrier struct {
	groups []paddedSeq
}

// NewGroupBarrier creates a barrier for numGroups groups.
func NewGroupBarrier(numGroups int) *GroupBarrier {
	return &GroupBarrier{groups: make([]paddedSeq, numGroups)}
}

// Enter synchronizes with the most recent Leave on group igrp and
// returns the group's event sequence number.
func (b *GroupBarrier) Enter(igrp int) uint64 {
	return b.groups[igrp].seq.Load()
}

// Leave publishes all side effects of the current event and advances the
// group's sequence number.
func (b *GroupBarrier) Leave(igrp int) {
	b.groups[igrp].seq.Add(1)
}

// Seq returns group igrp's current sequence number without ordering
// guarantees beyond those of Enter.
func (b *GroupBarrier) Seq(igrp int) uint64 {
	return b.groups[igrp].seq.Load()
}

// NumGroups reports the number of groups the barrier tracks.
func (b *GroupBarrier) NumGroups() int { return len(b.groups) }
