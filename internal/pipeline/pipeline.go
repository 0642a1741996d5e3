// Package pipeline chains heterogeneous executor stages — op_exec,
// fn_exec, and tumble_exec — into a single linear flow: each stage's
// output feeds the next stage's input, and the whole pipeline emits only
// when every stage along the chain emits.
package pipeline

import (
	"fmt"

	"github.com/ahrav/opflow/internal/ports"
)

// Stage is the uniform surface a pipeline drives every executor kind
// through. OpExec and FnExec always emit; TumbleExec emits only when its
// window closes, which can stall the whole pipeline for an arbitrary
// number of events.
type Stage interface {
	NumGroups() int
	NumInputs() int
	NumOutputs() int

	// OnData advances group igrp by one event. It writes to out only when
	// it returns emitted=true; callers must not read out otherwise.
	OnData(igrp int, timestamp float64, in []float64, out []float64) (emitted bool, err error)

	// OnParam absorbs one out-of-band parameter update.
	OnParam(igrp int, in []float64) error
}

// Pipeline composes an ordered list of stages, allocating the
// intermediate buffers that carry one stage's output into the next
// stage's input.
type Pipeline struct {
	numGroups int
	stages    []Stage
	// buffers[i] holds stage i's output for every group, reused across
	// calls; there is one fewer buffer than stage, since the last stage
	// writes directly to the caller's output.
	buffers [][][]float64
}

// New builds an empty pipeline for numGroups replica groups. Stages are
// attached with AddStage.
func New(numGroups int) (*Pipeline, error) {
	if numGroups <= 0 {
		return nil, ports.ErrZeroGroups
	}
	return &Pipeline{numGroups: numGroups}, nil
}

// AddStage appends stage to the pipeline. stage's group count must match
// the pipeline's, and its input arity must match the prior stage's
// output arity, if any.
func (p *Pipeline) AddStage(stage Stage) error {
	if stage.NumGroups() != p.numGroups {
		return ports.ErrStageGroupMismatch
	}
	if len(p.stages) > 0 {
		prevOut := p.stages[len(p.stages)-1].NumOutputs()
		if prevOut != stage.NumInputs() {
			return fmt.Errorf("%w: stage %d expects %d inputs, previous stage produced %d",
				ports.ErrStageArityMismatch, len(p.stages), stage.NumInputs(), prevOut)
		}
		width := prevOut
		buf := make([][]float64, p.numGroups)
		for g := range buf {
			buf[g] = make([]float64, width)
		}
		p.buffers = append(p.buffers, buf)
	}
	p.stages = append(p.stages, stage)
	return nil
}

// NumGroups reports the number of independent replica groups.
func (p *Pipeline) NumGroups() int { return p.numGroups }

// NumStages reports how many stages are attached.
func (p *Pipeline) NumStages() int { return len(p.stages) }

// NumInputs reports the input arity of the first stage, or 0 if the
// pipeline has no stages.
func (p *Pipeline) NumInputs() int {
	if len(p.stages) == 0 {
		return 0
	}
	return p.stages[0].NumInputs()
}

// NumOutputs reports the output arity of the last stage, or 0 if the
// pipeline has no stages.
func (p *Pipeline) NumOutputs() int {
	if len(p.stages) == 0 {
		return 0
	}
	return p.stages[len(p.stages)-1].NumOutputs()
}

// OnData drives timestamp/in through every stage in order, feeding each
// stage's output into the next. If any stage fails to emit — which only
// a tumble_exec stage can do, when its window hasn't closed — the whole
// pipeline stops and reports no emission; stages after the stalled one
// are not run. out is written only when the pipeline emits.
func (p *Pipeline) OnData(igrp int, timestamp float64, in []float64, out []float64) (bool, error) {
	if igrp < 0 || igrp >= p.numGroups {
		return false, ports.ErrGroupOutOfRange
	}
	if len(p.stages) == 0 {
		return false, nil
	}

	currentIn := in
	for i, stage := range p.stages {
		var currentOut []float64
		if i == len(p.stages)-1 {
			currentOut = out
		} else {
			currentOut = p.buffers[i][igrp]
		}

		emitted, err := stage.OnData(igrp, timestamp, currentIn, currentOut)
		if err != nil {
			return false, fmt.Errorf("pipeline: stage %d: %w", i, err)
		}
		if !emitted {
			return false, nil
		}
		currentIn = currentOut
	}
	return true, nil
}

// OnParam routes a parameter update to the stage at stageIdx.
func (p *Pipeline) OnParam(stageIdx, igrp int, in []float64) error {
	if stageIdx < 0 || stageIdx >= len(p.stages) {
		return fmt.Errorf("pipeline: stage index %d out of range", stageIdx)
	}
	return p.stages[stageIdx].OnParam(igrp, in)
}
