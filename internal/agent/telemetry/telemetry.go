package telemetry

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mohammad-safakhou/bookrec/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Telemetry records run statistics and exposes them as Prometheus metrics.
// All methods are safe on a nil receiver.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	mu       sync.RWMutex

	runs        *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	lookups     *prometheus.CounterVec
	planSize    prometheus.Histogram
	tokensTotal *prometheus.CounterVec
}

// Metrics holds an in-process summary of recorded events.
type Metrics struct {
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	AverageProcessingTime time.Duration

	Lookups          map[string]int64 // outcome -> count
	PromptTokens     int64
	CompletionTokens int64
}

// RunEvent describes one finished recommendation run.
type RunEvent struct {
	RunID          string
	Outcome        string
	Stage          string // stage reached when the run ended
	ProcessingTime time.Duration
	Books          int
	FailedTasks    int
}

// NewTelemetry creates a telemetry instance backed by its own registry.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return NewTelemetryWithLogger(cfg, log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags))
}

// NewTelemetryWithLogger is NewTelemetry with an explicit logger.
func NewTelemetryWithLogger(cfg config.TelemetryConfig, logger *log.Logger) *Telemetry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	t := &Telemetry{
		config:   cfg,
		logger:   logger,
		metrics:  &Metrics{Lookups: make(map[string]int64)},
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrec_runs_total",
			Help: "Recommendation runs by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookrec_stage_duration_seconds",
			Help:    "Duration of each workflow stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrec_catalog_lookups_total",
			Help: "Catalog lookups by outcome.",
		}, []string{"outcome"}),
		planSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookrec_plan_subtasks",
			Help:    "Number of sub-tasks per accepted plan.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookrec_llm_tokens_total",
			Help: "Planning model tokens by kind.",
		}, []string{"kind"}),
	}
	t.registry.MustRegister(t.runs, t.stages, t.lookups, t.planSize, t.tokensTotal)
	return t
}

func (t *Telemetry) enabled() bool { return t != nil && t.config.Enabled }

// RecordRunEvent records a finished run.
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.enabled() {
		return
	}
	t.runs.WithLabelValues(event.Outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRuns++
	if event.Outcome == OutcomeSuccess {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	if t.metrics.TotalRuns == 1 {
		t.metrics.AverageProcessingTime = event.ProcessingTime
	} else {
		total := t.metrics.AverageProcessingTime * time.Duration(t.metrics.TotalRuns-1)
		t.metrics.AverageProcessingTime = (total + event.ProcessingTime) / time.Duration(t.metrics.TotalRuns)
	}

	t.logger.Printf("Run Event: ID=%s, Outcome=%s, Stage=%s, Duration=%v, Books=%d, FailedTasks=%d",
		event.RunID, event.Outcome, event.Stage, event.ProcessingTime, event.Books, event.FailedTasks)
}

// ObserveStage records the duration of a workflow stage.
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if !t.enabled() {
		return
	}
	t.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordLookup counts a catalog lookup outcome.
func (t *Telemetry) RecordLookup(outcome string) {
	if !t.enabled() {
		return
	}
	t.lookups.WithLabelValues(outcome).Inc()
	t.mu.Lock()
	t.metrics.Lookups[outcome]++
	t.mu.Unlock()
}

// ObservePlanSize records the number of sub-tasks of an accepted plan.
func (t *Telemetry) ObservePlanSize(n int) {
	if !t.enabled() {
		return
	}
	t.planSize.Observe(float64(n))
}

// RecordTokens adds planning model token usage.
func (t *Telemetry) RecordTokens(prompt, completion int) {
	if !t.enabled() {
		return
	}
	t.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	t.tokensTotal.WithLabelValues("completion").Add(float64(completion))
	t.mu.Lock()
	t.metrics.PromptTokens += int64(prompt)
	t.metrics.CompletionTokens += int64(completion)
	t.mu.Unlock()
}

// Registry returns the registry holding the collectors.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// GetMetrics returns current metrics snapshot
func (t *Telemetry) GetMetrics() Metrics {
	if t == nil {
		return Metrics{Lookups: map[string]int64{}}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.Lookups = make(map[string]int64, len(t.metrics.Lookups))
	for k, v := range t.metrics.Lookups {
		metrics.Lookups[k] = v
	}
	return metrics
}

// GetPerformanceReport returns a short human readable report
func (t *Telemetry) GetPerformanceReport() string {
	metrics := t.GetMetrics()
	report := fmt.Sprintf(`
=== PERFORMANCE REPORT ===
  Total Runs: %d
  Successful: %d (%.2f%%)
  Failed: %d
  Average Processing Time: %v
  Tokens: %d prompt / %d completion

Catalog Lookups:
`, metrics.TotalRuns, metrics.SuccessfulRuns, percent(metrics.SuccessfulRuns, metrics.TotalRuns),
		metrics.FailedRuns, metrics.AverageProcessingTime, metrics.PromptTokens, metrics.CompletionTokens)
	for outcome, n := range metrics.Lookups {
		report += fmt.Sprintf("  %s: %d\n", outcome, n)
	}
	return report
}

// Shutdown logs a final summary.
func (t *Telemetry) Shutdown() {
	if !t.enabled() {
		return
	}
	metrics := t.GetMetrics()
	t.logger.Printf("Final Report: runs=%d success=%.2f%% avg=%v",
		metrics.TotalRuns, percent(metrics.SuccessfulRuns, metrics.TotalRuns), metrics.AverageProcessingTime)
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
