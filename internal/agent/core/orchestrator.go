package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/bookrec/config"
	"github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/mohammad-safakhou/bookrec/internal/ranking"
	"github.com/mohammad-safakhou/bookrec/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator is the workflow controller: one planning call, one executor
// pass over the plan and one ranking step per Recommend call.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	planner  PlanningAdapter
	executor TaskExecutor

	mu        sync.RWMutex
	listeners []StateListener
}

var orchestratorTracer trace.Tracer = otel.Tracer("bookrec/internal/agent/orchestrator")

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *config.Config, logger *log.Logger, telemetry *telemetry.Telemetry, planner PlanningAdapter, executor TaskExecutor) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		config:    cfg,
		logger:    logger,
		telemetry: telemetry,
		planner:   planner,
		executor:  executor,
	}
}

// AddListener registers fn to observe the state transitions of every run.
func (o *Orchestrator) AddListener(fn StateListener) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// run tracks the state of a single Recommend call.
type run struct {
	id        string
	state     State
	listeners []StateListener
}

func (r *run) transition(to State) error {
	if !CanTransition(r.state, to) {
		return &IllegalTransitionError{From: r.state, To: to}
	}
	from := r.state
	r.state = to
	for _, fn := range r.listeners {
		fn(r.id, from, to)
	}
	return nil
}

// Recommend runs the full workflow for query and returns at most k ranked
// books. k <= 0 uses the configured default. A planning failure or caller
// cancellation ends the run with a *RunError and no partial result.
func (o *Orchestrator) Recommend(ctx context.Context, query string, k int, credential string) (models.Recommendation, error) {
	startTime := time.Now()
	if k <= 0 {
		k = o.config.Workflow.DefaultK
	}
	o.mu.RLock()
	r := &run{id: uuid.NewString(), state: StateIdle, listeners: append([]StateListener(nil), o.listeners...)}
	o.mu.RUnlock()

	ctx, span := orchestratorTracer.Start(ctx, "bookrec.recommend",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
			attribute.Int("run.k", k),
		))
	defer span.End()

	fail := func(stage State, err error) (models.Recommendation, error) {
		if terr := r.transition(StateFailed); terr != nil {
			err = errors.Join(err, terr)
		}
		runErr := &RunError{RunID: r.id, Stage: stage, Err: err}
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		outcome := telemetry.OutcomeFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = telemetry.OutcomeCancelled
		}
		o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
			RunID: r.id, Outcome: outcome, Stage: string(stage), ProcessingTime: time.Since(startTime),
		})
		o.logger.Printf("run %s failed during %s: %v", r.id, stage, err)
		return models.Recommendation{}, runErr
	}

	// planning
	if err := r.transition(StatePlanning); err != nil {
		return models.Recommendation{}, err
	}
	planCtx, planSpan := orchestratorTracer.Start(ctx, "bookrec.plan")
	stageStart := time.Now()
	plan, err := o.planner.Plan(planCtx, query, credential)
	o.telemetry.ObserveStage(string(StatePlanning), time.Since(stageStart))
	if err != nil {
		if !IsPlanningFailure(err) {
			err = &PlanningFailure{Reason: "planning adapter error", Err: err}
		}
		planSpan.RecordError(err)
		planSpan.SetStatus(codes.Error, err.Error())
		planSpan.End()
		return fail(StatePlanning, err)
	}
	planSpan.SetAttributes(attribute.Int("plan.subtasks", plan.Len()))
	planSpan.SetStatus(codes.Ok, "completed")
	planSpan.End()
	o.telemetry.ObservePlanSize(plan.Len())

	// executing
	if err := r.transition(StateExecuting); err != nil {
		return models.Recommendation{}, err
	}
	execCtx, execSpan := orchestratorTracer.Start(ctx, "bookrec.execute")
	stageStart = time.Now()
	rc, err := o.executor.Execute(execCtx, r.id, query, plan, credential)
	o.telemetry.ObserveStage(string(StateExecuting), time.Since(stageStart))
	if err != nil {
		execSpan.RecordError(err)
		execSpan.SetStatus(codes.Error, err.Error())
		execSpan.End()
		return fail(StateExecuting, err)
	}
	failed := rc.FailedIndices()
	var failures map[int]string
	if len(failed) > 0 {
		failures = make(map[int]string, len(failed))
		for _, i := range failed {
			failures[i] = rc.Failure(i).Error()
			o.logger.Printf("run %s: sub-task %d failed: %s", r.id, i, failures[i])
		}
	}
	execSpan.SetAttributes(attribute.Int("execute.failed_tasks", len(failed)))
	execSpan.SetStatus(codes.Ok, "completed")
	execSpan.End()

	// ranking
	if err := r.transition(StateRanking); err != nil {
		return models.Recommendation{}, err
	}
	_, rankSpan := orchestratorTracer.Start(ctx, "bookrec.rank")
	stageStart = time.Now()
	books := ranking.Select(rc, k)
	o.telemetry.ObserveStage(string(StateRanking), time.Since(stageStart))
	rankSpan.SetAttributes(attribute.Int("rank.selected", len(books)))
	rankSpan.End()

	if err := r.transition(StateDone); err != nil {
		return models.Recommendation{}, fmt.Errorf("finish run %s: %w", r.id, err)
	}
	elapsed := time.Since(startTime)
	o.telemetry.RecordRunEvent(ctx, telemetry.RunEvent{
		RunID: r.id, Outcome: telemetry.OutcomeSuccess, Stage: string(StateDone),
		ProcessingTime: elapsed, Books: len(books), FailedTasks: len(failed),
	})
	span.SetStatus(codes.Ok, "completed")
	o.logger.Printf("run %s completed in %v: %d sub-tasks, %d failed, %d books", r.id, elapsed, plan.Len(), len(failed), len(books))

	return models.Recommendation{
		RunID:       r.id,
		Query:       query,
		Books:       books,
		Plan:        plan.SubTasks,
		FailedTasks: failed,
		Failures:    failures,
		Elapsed:     elapsed,
	}, nil
}
