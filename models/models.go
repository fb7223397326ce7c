package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrIndexOutOfPlan is returned when a result is recorded for a sub-task index the plan does not contain.
var ErrIndexOutOfPlan = errors.New("sub-task index not in plan")

// BookCandidate is a normalized catalog record eligible for ranking.
type BookCandidate struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	AverageRating *float64 `json:"average_rating,omitempty"` // 0-5, nil when the catalog has no rating
	RatingsCount  *int     `json:"ratings_count,omitempty"`
	Description   string   `json:"description,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	InfoLink      string   `json:"info_link,omitempty"`
	Snippet       string   `json:"snippet,omitempty"`
}

// HasRating reports whether the candidate carries an average rating.
func (b BookCandidate) HasRating() bool { return b.AverageRating != nil }

// Key returns the identity used for deduplication. Records without a catalog
// identifier fall back to their normalized title and authors.
func (b BookCandidate) Key() string {
	if id := strings.TrimSpace(b.ID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(b.Title)) + "|" + strings.ToLower(strings.Join(b.Authors, ","))
}

// SubTask is one catalog-searchable unit derived from the user's request.
type SubTask struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	SearchTerm  string `json:"search_term"`
}

// Plan is the ordered list of sub-tasks produced once per run.
type Plan struct {
	SubTasks []SubTask `json:"sub_tasks"`
	Raw      string    `json:"-"`
	Dropped  int       `json:"-"` // sub-tasks cut off by the configured maximum
}

// Len returns the number of sub-tasks.
func (p Plan) Len() int { return len(p.SubTasks) }

// RunContext accumulates sub-task results for a single run. Entries are keyed
// by sub-task index and never exist for indices outside the plan.
type RunContext struct {
	RunID string
	Query string
	Plan  Plan

	mu       sync.RWMutex
	results  map[int][]BookCandidate
	failures map[int]error
}

// NewRunContext creates an empty accumulator for the given plan.
func NewRunContext(runID, query string, plan Plan) *RunContext {
	return &RunContext{
		RunID:    runID,
		Query:    query,
		Plan:     plan,
		results:  make(map[int][]BookCandidate, plan.Len()),
		failures: make(map[int]error),
	}
}

// Record stores the candidates produced by the sub-task at index.
func (rc *RunContext) Record(index int, books []BookCandidate) error {
	if index < 0 || index >= rc.Plan.Len() {
		return fmt.Errorf("%w: %d", ErrIndexOutOfPlan, index)
	}
	out := make([]BookCandidate, len(books))
	copy(out, books)
	rc.mu.Lock()
	rc.results[index] = out
	rc.mu.Unlock()
	return nil
}

// RecordFailure stores an empty result for index and keeps err for diagnostics.
func (rc *RunContext) RecordFailure(index int, err error) error {
	if err := rc.Record(index, nil); err != nil {
		return err
	}
	rc.mu.Lock()
	rc.failures[index] = err
	rc.mu.Unlock()
	return nil
}

// Candidates returns the candidates recorded for index.
func (rc *RunContext) Candidates(index int) ([]BookCandidate, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	books, ok := rc.results[index]
	return books, ok
}

// Failure returns the lookup error recorded for index, if any.
func (rc *RunContext) Failure(index int) error {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.failures[index]
}

// Len returns the number of recorded entries.
func (rc *RunContext) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.results)
}

// FailedIndices returns the sorted indices whose lookup failed or was skipped.
func (rc *RunContext) FailedIndices() []int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([]int, 0, len(rc.failures))
	for idx := range rc.failures {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Ordered returns the recorded candidate lists in ascending sub-task order.
// Indices without an entry yield an empty list.
func (rc *RunContext) Ordered() [][]BookCandidate {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([][]BookCandidate, rc.Plan.Len())
	for i := range out {
		out[i] = rc.results[i]
	}
	return out
}

// Recommendation is the final outcome of one run handed back to the caller.
type Recommendation struct {
	RunID       string          `json:"run_id"`
	Query       string          `json:"query"`
	Books       []BookCandidate `json:"books"`
	Plan        []SubTask       `json:"plan"`
	FailedTasks []int           `json:"failed_tasks,omitempty"`
	Failures    map[int]string  `json:"failures,omitempty"` // lookup error per failed index
	Elapsed     time.Duration   `json:"elapsed"`
}

// Empty reports whether no candidate survived ranking.
func (r Recommendation) Empty() bool { return len(r.Books) == 0 }
