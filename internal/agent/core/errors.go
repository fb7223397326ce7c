package core

import (
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/bookrec/internal/planner"
)

var (
	// ErrEmptyQuery is returned for blank requests; no model call is made.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrEmptyPlan means the model produced no usable sub-task.
	ErrEmptyPlan = planner.ErrEmptyPlan
)

// PlanningFailure reports that no acceptable plan could be obtained. Raw holds
// the model output, when there was one, for diagnostics.
type PlanningFailure struct {
	Reason string
	Raw    string
	Err    error
}

func (e *PlanningFailure) Error() string {
	if e.Err == nil {
		return "planning failed: " + e.Reason
	}
	return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
}

func (e *PlanningFailure) Unwrap() error { return e.Err }

// RunError is the fatal error of a run, tagged with the stage it failed in.
type RunError struct {
	RunID string
	Stage State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed during %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsPlanningFailure reports whether err carries a PlanningFailure.
func IsPlanningFailure(err error) bool {
	var pf *PlanningFailure
	return errors.As(err, &pf)
}
