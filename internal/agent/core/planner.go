package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/bookrec/config"
	"github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/mohammad-safakhou/bookrec/internal/helpers"
	"github.com/mohammad-safakhou/bookrec/internal/planner"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/mohammad-safakhou/bookrec/provider"
	"github.com/mohammad-safakhou/bookrec/utils"
)

// Planner decomposes a reading request into catalog-searchable sub-tasks
type Planner struct {
	config      *config.Config
	llmProvider provider.Provider
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

// NewPlanner creates a new planner instance
func NewPlanner(cfg *config.Config, llmProvider provider.Provider, telemetry *telemetry.Telemetry) *Planner {
	return &Planner{
		config:      cfg,
		llmProvider: llmProvider,
		telemetry:   telemetry,
		logger:      log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// SetLogger replaces the planner logger.
func (p *Planner) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	p.logger = l
}

// Plan makes one planning call for query and returns the parsed plan. Every
// error is a *PlanningFailure.
func (p *Planner) Plan(ctx context.Context, query, credential string) (models.Plan, error) {
	startTime := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Plan{}, &PlanningFailure{Reason: "empty query", Err: ErrEmptyQuery}
	}
	wf := p.config.Workflow

	req := provider.Request{
		SystemPrompt: plannerSystemPrompt(wf.MaxSubTasks),
		UserPrompt:   p.createPlanningPrompt(query),
		Temperature:  p.config.LLM.Temperature,
		MaxTokens:    p.config.LLM.MaxTokens,
		JSON:         p.config.LLM.JSONMode,
	}

	var resp provider.Response
	retry := utils.RetryPolicy{
		MaxRetries:  wf.Retry.MaxRetries,
		BackoffBase: wf.Retry.BackoffBase,
		MaxBackoff:  wf.Retry.MaxBackoff,
	}
	err := retry.Retry(ctx, func() error {
		callCtx, cancel := withTimeout(ctx, wf.PlanningTimeout)
		defer cancel()
		var err error
		resp, err = p.llmProvider.Complete(callCtx, credential, req)
		if errors.Is(err, provider.ErrMissingCredential) {
			return utils.Permanent(err)
		}
		return err
	})
	if err != nil {
		return models.Plan{}, &PlanningFailure{Reason: "planning call failed", Err: err}
	}
	p.telemetry.RecordTokens(resp.PromptTokens, resp.CompletionTokens)

	plan, err := planner.Parse(resp.Text, wf.MaxSubTasks)
	if err != nil {
		reason := "unparseable plan"
		if errors.Is(err, planner.ErrEmptyPlan) {
			reason = "empty plan"
		}
		return models.Plan{}, &PlanningFailure{Reason: reason, Raw: resp.Text, Err: err}
	}
	if plan.Dropped > 0 {
		p.logger.Printf("plan truncated to %d sub-tasks (%d dropped)", plan.Len(), plan.Dropped)
	}
	for _, task := range plan.SubTasks {
		if task.SearchTerm == "" {
			p.logger.Printf("sub-task %d has no search term and will be skipped", task.Index)
		}
	}

	p.logger.Printf("Planning completed in %v with %d tasks", time.Since(startTime), plan.Len())
	return plan, nil
}

func plannerSystemPrompt(maxTasks int) string {
	return fmt.Sprintf(`You are a planning agent for a book recommendation service.
Break the user's reading request into between 1 and %d sub-tasks. Each sub-task is one
search against a book catalog (Google Books).

Respond with a single JSON object and nothing else:
{"tasks": [{"description": "<what this search is for>", "search_term": "<catalog search query>"}]}

RULES:
1. search_term must be a short keyword query a catalog understands (genre, subject, author or title words).
2. Order the tasks from most to least relevant to the request.
3. Do not invent book titles; use subjects and themes instead.
4. Use as few tasks as the request needs.`, maxTasks)
}

// createPlanningPrompt renders the user request with an optional genre hint
func (p *Planner) createPlanningPrompt(query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER REQUEST: %s\n", query)
	if genre, ok := helpers.ExtractGenre(query); ok {
		fmt.Fprintf(&b, "DETECTED GENRE: %s\n", genre)
	}
	return b.String()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
