package domain

import (
	"fmt"
	"time"
)

// RunStart is emitted when a tailer run begins (debuggee started or resumed)
type RunStart struct {
	Run       int       // Run number (1, 2, 3...)
	Package   string    // Resolved package id, empty until discovered
	Resumed   bool      // True when a previous run of the same session existed
	StartedAt time.Time // Wall-clock start
}

// RunEnd is emitted when a tailer run ends (debuggee paused, exited or detached)
type RunEnd struct {
	Run     int
	Reason  LifecycleState
	Summary RunSummary
}

// RunSummary contains statistics about a completed run
type RunSummary struct {
	TotalLines      int
	Errors          int
	Warnings        int
	DurationSeconds int
}

// NewRunStart creates a new RunStart event
func NewRunStart(run int, pkg string, at time.Time) *RunStart {
	return &RunStart{
		Run:       run,
		Package:   pkg,
		Resumed:   run > 1,
		StartedAt: at,
	}
}

// NewRunEnd creates a new RunEnd event
func NewRunEnd(run int, reason LifecycleState, summary RunSummary) *RunEnd {
	return &RunEnd{
		Run:     run,
		Reason:  reason,
		Summary: summary,
	}
}

func (s RunSummary) String() string {
	return fmt.Sprintf("%d lines, %d errors, %d warnings in %ds", s.TotalLines, s.Errors, s.Warnings, s.DurationSeconds)
}
