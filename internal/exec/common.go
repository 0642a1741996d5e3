package exec

import (
	"errors"

	"github.com/ahrav/opflow/internal/ports"
)

// paramOperator is a local alias kept for readability at call sites.
type paramOperator = ports.ParamOperator

var errNoSupp = errors.New("exec: graph has no supplementary root")

func checkGroup(igrp, numGroups int) error {
	if igrp < 0 || igrp >= numGroups {
		return ports.ErrGroupOutOfRange
	}
	return nil
}

// gather copies the scalars at offsets out of fullRow into scratch,
// resliced to len(offsets), and returns it. scratch must have capacity
// for the widest argument list any node in the graph declares.
func gather(scratch []float64, fullRow []float64, offsets []int) []float64 {
	buf := scratch[:len(offsets)]
	for i, off := range offsets {
		buf[i] = fullRow[off]
	}
	return buf
}
