package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/mohammad-safakhou/bookrec/catalog"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/mohammad-safakhou/bookrec/utils"
	"golang.org/x/sync/errgroup"
)

// Lookup outcomes reported to metrics callbacks.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ErrNoSearchTerm marks a sub-task that was skipped because the plan gave it no search term.
var ErrNoSearchTerm = errors.New("sub-task has no search term")

// Executor runs the sub-tasks of a plan against the catalog and accumulates
// the results into a RunContext.
type Executor struct {
	catalog     catalog.Client
	limit       int
	timeout     time.Duration
	concurrency int
	retry       utils.RetryPolicy
	metrics     Metrics
	logger      *log.Logger
}

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	Lookup   func(ctx context.Context, task models.SubTask, outcome string)
	Duration func(ctx context.Context, task models.SubTask, d time.Duration)
}

// Option configures executor behaviour.
type Option func(*Executor)

// WithMetrics sets executor metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(ex *Executor) {
		ex.metrics = m
	}
}

// WithLimit sets the per-task result limit.
func WithLimit(n int) Option {
	return func(ex *Executor) {
		if n > 0 {
			ex.limit = n
		}
	}
}

// WithTimeout bounds each catalog lookup.
func WithTimeout(d time.Duration) Option {
	return func(ex *Executor) {
		ex.timeout = d
	}
}

// WithConcurrency allows up to n lookups in flight. Results are still
// recorded by sub-task index, so the outcome does not depend on n.
func WithConcurrency(n int) Option {
	return func(ex *Executor) {
		if n > 0 {
			ex.concurrency = n
		}
	}
}

// WithRetry retries failed lookups according to p.
func WithRetry(p utils.RetryPolicy) Option {
	return func(ex *Executor) {
		ex.retry = p
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *log.Logger) Option {
	return func(ex *Executor) {
		if l != nil {
			ex.logger = l
		}
	}
}

// New creates a new Executor instance.
func New(c catalog.Client, opts ...Option) *Executor {
	ex := &Executor{
		catalog:     c,
		limit:       10,
		concurrency: 1,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// Execute runs every sub-task of plan exactly once. A failing lookup is
// recorded as an empty result and never aborts the run; only cancellation of
// ctx does, in which case the partial RunContext is returned with ctx's error.
func (e *Executor) Execute(ctx context.Context, runID, query string, plan models.Plan, credential string) (*models.RunContext, error) {
	// slots are keyed by position in the plan, whatever Index the caller set
	tasks := make([]models.SubTask, len(plan.SubTasks))
	for i, task := range plan.SubTasks {
		task.Index = i
		tasks[i] = task
	}
	plan.SubTasks = tasks
	rc := models.NewRunContext(runID, query, plan)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, task := range plan.SubTasks {
		if ctx.Err() != nil {
			break
		}
		task := task
		g.Go(func() error {
			e.runTask(ctx, rc, task, credential)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return rc, fmt.Errorf("execution interrupted: %w", err)
	}
	return rc, nil
}

func (e *Executor) runTask(ctx context.Context, rc *models.RunContext, task models.SubTask, credential string) {
	if ctx.Err() != nil {
		return
	}
	if task.SearchTerm == "" {
		e.recordFailure(rc, task, ErrNoSearchTerm)
		e.logger.Printf("run %s: sub-task %d skipped: no search term", rc.RunID, task.Index)
		e.observe(ctx, task, OutcomeSkipped, 0)
		return
	}

	start := time.Now()
	var books []models.BookCandidate
	err := e.retry.Retry(ctx, func() error {
		lookupCtx, cancel := e.lookupContext(ctx)
		defer cancel()
		var err error
		books, err = e.catalog.Search(lookupCtx, task.SearchTerm, e.limit, credential)
		if err != nil && (errors.Is(err, catalog.ErrEmptyTerm) || errors.Is(err, catalog.ErrInvalidLimit)) {
			return utils.Permanent(err)
		}
		return err
	})
	elapsed := time.Since(start)
	if err != nil {
		e.recordFailure(rc, task, catalog.Fail(task.SearchTerm, err))
		e.logger.Printf("run %s: sub-task %d lookup %q failed: %v", rc.RunID, task.Index, task.SearchTerm, err)
		e.observe(ctx, task, OutcomeFailed, elapsed)
		return
	}
	if err := rc.Record(task.Index, books); err != nil {
		e.logger.Printf("run %s: sub-task %d: %v", rc.RunID, task.Index, err)
		return
	}
	e.logger.Printf("run %s: sub-task %d lookup %q returned %d candidates", rc.RunID, task.Index, task.SearchTerm, len(books))
	e.observe(ctx, task, OutcomeOK, elapsed)
}

func (e *Executor) recordFailure(rc *models.RunContext, task models.SubTask, cause error) {
	if err := rc.RecordFailure(task.Index, cause); err != nil {
		e.logger.Printf("run %s: sub-task %d: %v", rc.RunID, task.Index, err)
	}
}

func (e *Executor) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Executor) observe(ctx context.Context, task models.SubTask, outcome string, d time.Duration) {
	if e.metrics.Lookup != nil {
		e.metrics.Lookup(ctx, task, outcome)
	}
	if e.metrics.Duration != nil && outcome != OutcomeSkipped {
		e.metrics.Duration(ctx, task, d)
	}
}
