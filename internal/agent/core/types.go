package core

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/bookrec/models"
)

// State is a workflow controller state.
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
	StateRanking   State = "ranking"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// transitions lists the legal successor states of each state.
var transitions = map[State][]State{
	StateIdle:      {StatePlanning},
	StatePlanning:  {StateExecuting, StateFailed},
	StateExecuting: {StateRanking, StateFailed},
	StateRanking:   {StateDone},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// IllegalTransitionError is returned when the controller is asked to make a
// transition its state machine does not allow.
type IllegalTransitionError struct {
	From, To State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// StateListener observes state transitions of a run.
type StateListener func(runID string, from, to State)

// PlanningAdapter turns a free-text request into a plan.
type PlanningAdapter interface {
	Plan(ctx context.Context, query, credential string) (models.Plan, error)
}

// TaskExecutor runs a plan and accumulates its results.
type TaskExecutor interface {
	Execute(ctx context.Context, runID, query string, plan models.Plan, credential string) (*models.RunContext, error)
}

// Recommender is the inbound contract served by the HTTP and CLI shells.
type Recommender interface {
	Recommend(ctx context.Context, query string, k int, credential string) (models.Recommendation, error)
}
