package pipeline

import "github.com/ahrav/opflow/internal/exec"

// OpExecStage adapts an *exec.OpExec — which always emits a value on
// every call — to the Stage interface.
type OpExecStage struct{ E *exec.OpExec }

func (s OpExecStage) NumGroups() int  { return s.E.NumGroups() }
func (s OpExecStage) NumInputs() int  { return s.E.NumInputs() }
func (s OpExecStage) NumOutputs() int { return s.E.NumOutputs() }

func (s OpExecStage) OnData(igrp int, timestamp float64, in, out []float64) (bool, error) {
	if err := s.E.OnData(igrp, timestamp, in); err != nil {
		return false, err
	}
	if err := s.E.Value(igrp, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s OpExecStage) OnParam(igrp int, in []float64) error { return s.E.OnParam(igrp, in) }

// FnExecStage adapts an *exec.FnExec, which always emits, to the Stage
// interface.
type FnExecStage struct{ E *exec.FnExec }

func (s FnExecStage) NumGroups() int  { return s.E.NumGroups() }
func (s FnExecStage) NumInputs() int  { return s.E.NumInputs() }
func (s FnExecStage) NumOutputs() int { return s.E.NumOutputs() }

func (s FnExecStage) OnData(igrp int, timestamp float64, in, out []float64) (bool, error) {
	if err := s.E.OnData(igrp, timestamp, in); err != nil {
		return false, err
	}
	if _, err := s.E.Value(igrp, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s FnExecStage) OnParam(igrp int, in []float64) error { return s.E.OnParam(igrp, in) }

// TumbleExecStage adapts an *exec.TumbleExec, which emits only when its
// window closes, to the Stage interface.
type TumbleExecStage struct{ E *exec.TumbleExec }

func (s TumbleExecStage) NumGroups() int  { return s.E.NumGroups() }
func (s TumbleExecStage) NumInputs() int  { return s.E.NumInputs() }
func (s TumbleExecStage) NumOutputs() int { return s.E.NumOutputs() }

func (s TumbleExecStage) OnData(igrp int, timestamp float64, in, out []float64) (bool, error) {
	_, emitted, err := s.E.OnData(igrp, timestamp, in, out)
	return emitted, err
}

func (s TumbleExecStage) OnParam(igrp int, in []float64) error { return s.E.OnParam(igrp, in) }
