package core

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/bookrec/config"
	"github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/mohammad-safakhou/bookrec/internal/planner"
	"github.com/mohammad-safakhou/bookrec/provider"
)

type stubLLM struct {
	responses []string
	errs      []error
	calls     int
	lastCred  string
	lastReq   provider.Request
}

func (s *stubLLM) Complete(ctx context.Context, credential string, req provider.Request) (provider.Response, error) {
	i := s.calls
	s.calls++
	s.lastCred = credential
	s.lastReq = req
	if i < len(s.errs) && s.errs[i] != nil {
		return provider.Response{}, s.errs[i]
	}
	text := ""
	if i < len(s.responses) {
		text = s.responses[i]
	} else if len(s.responses) > 0 {
		text = s.responses[len(s.responses)-1]
	}
	return provider.Response{Text: text, PromptTokens: 3, CompletionTokens: 2}, nil
}

func (s *stubLLM) Model() string { return "stub" }

func newTestPlanner(llm provider.Provider, mutate func(*config.Config)) *Planner {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	p := NewPlanner(cfg, llm, telemetry.NewTelemetryWithLogger(config.TelemetryConfig{Enabled: true}, nil))
	p.SetLogger(log.New(io.Discard, "", 0))
	return p
}

const horrorPlan = `{"tasks":[{"description":"Find acclaimed horror novels","search_term":"horror fiction bestseller"}]}`

func TestPlanSingleCallAndPrompt(t *testing.T) {
	llm := &stubLLM{responses: []string{horrorPlan}}
	p := newTestPlanner(llm, nil)

	plan, err := p.Plan(context.Background(), "  Suggest a horror book  ", "cred")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", llm.calls)
	}
	if llm.lastCred != "cred" {
		t.Fatalf("credential not forwarded")
	}
	if !strings.Contains(llm.lastReq.UserPrompt, "Suggest a horror book") || !strings.Contains(llm.lastReq.UserPrompt, "DETECTED GENRE: horror") {
		t.Fatalf("unexpected prompt %q", llm.lastReq.UserPrompt)
	}
	if !strings.Contains(llm.lastReq.SystemPrompt, "between 1 and 5") {
		t.Fatalf("system prompt must carry the sub-task bound: %q", llm.lastReq.SystemPrompt)
	}
	if !llm.lastReq.JSON {
		t.Fatalf("expected JSON mode by default")
	}
	if plan.Len() != 1 || plan.SubTasks[0].SearchTerm != "horror fiction bestseller" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestPlanEmptyQueryMakesNoCall(t *testing.T) {
	llm := &stubLLM{responses: []string{horrorPlan}}
	p := newTestPlanner(llm, nil)

	_, err := p.Plan(context.Background(), " \t ", "cred")
	if !errors.Is(err, ErrEmptyQuery) || !IsPlanningFailure(err) {
		t.Fatalf("expected PlanningFailure wrapping ErrEmptyQuery, got %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("empty query must not reach the model")
	}
}

func TestPlanUnparseableOutputFailsClosed(t *testing.T) {
	raw := "[{'task': 'Query a book database'}]"
	llm := &stubLLM{responses: []string{raw}}
	p := newTestPlanner(llm, nil)

	_, err := p.Plan(context.Background(), "Suggest a horror book", "cred")
	var pf *PlanningFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected PlanningFailure, got %v", err)
	}
	if pf.Raw != raw {
		t.Fatalf("raw output must be preserved, got %q", pf.Raw)
	}
	if !errors.Is(err, planner.ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON cause, got %v", err)
	}
}

func TestPlanEmptyPlan(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"tasks":[{"description":"x","search_term":""}]}`}}
	p := newTestPlanner(llm, nil)

	_, err := p.Plan(context.Background(), "anything", "cred")
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	var pf *PlanningFailure
	if !errors.As(err, &pf) || pf.Reason != "empty plan" {
		t.Fatalf("expected empty plan failure, got %v", err)
	}
}

func TestPlanTruncatesToConfiguredMax(t *testing.T) {
	llm := &stubLLM{responses: []string{`{"tasks":[
		{"description":"a","search_term":"a"},{"description":"b","search_term":"b"},{"description":"c","search_term":"c"}]}`}}
	p := newTestPlanner(llm, func(c *config.Config) { c.Workflow.MaxSubTasks = 2 })

	plan, err := p.Plan(context.Background(), "q", "cred")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Len() != 2 {
		t.Fatalf("expected truncation to 2, got %d", plan.Len())
	}
}

func TestPlanModelErrorNoRetryByDefault(t *testing.T) {
	llm := &stubLLM{errs: []error{errors.New("503 unavailable")}, responses: []string{horrorPlan}}
	p := newTestPlanner(llm, nil)

	_, err := p.Plan(context.Background(), "q", "cred")
	if !IsPlanningFailure(err) {
		t.Fatalf("expected PlanningFailure, got %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", llm.calls)
	}
}

func TestPlanBoundedRetry(t *testing.T) {
	llm := &stubLLM{errs: []error{errors.New("503 unavailable")}, responses: []string{horrorPlan}}
	p := newTestPlanner(llm, func(c *config.Config) {
		c.Workflow.Retry = config.RetryConfig{MaxRetries: 2, BackoffBase: time.Millisecond, MaxBackoff: time.Millisecond}
	})

	if _, err := p.Plan(context.Background(), "q", "cred"); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("expected two attempts, got %d", llm.calls)
	}
}

func TestPlanMissingCredentialIsNotRetried(t *testing.T) {
	llm := &stubLLM{errs: []error{provider.ErrMissingCredential, provider.ErrMissingCredential}}
	p := newTestPlanner(llm, func(c *config.Config) {
		c.Workflow.Retry = config.RetryConfig{MaxRetries: 3, BackoffBase: time.Millisecond, MaxBackoff: time.Millisecond}
	})

	_, err := p.Plan(context.Background(), "q", "")
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("missing credential must not be retried, got %d calls", llm.calls)
	}
}
