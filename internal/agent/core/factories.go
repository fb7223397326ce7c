package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/bookrec/catalog"
	"github.com/mohammad-safakhou/bookrec/catalog/cache"
	"github.com/mohammad-safakhou/bookrec/catalog/googlebooks"
	"github.com/mohammad-safakhou/bookrec/config"
	"github.com/mohammad-safakhou/bookrec/internal/agent/telemetry"
	"github.com/mohammad-safakhou/bookrec/internal/executor"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/mohammad-safakhou/bookrec/provider"
	openai_provider "github.com/mohammad-safakhou/bookrec/provider/openai"
	"github.com/mohammad-safakhou/bookrec/utils"
	"github.com/redis/go-redis/v9"
)

// NewLLMProvider creates the planning model client based on configuration
func NewLLMProvider(cfg config.LLMConfig) (provider.Provider, error) {
	baseURL := cfg.BaseURL
	switch provider.Client(cfg.Provider) {
	case provider.Gemini:
		if baseURL == "" {
			baseURL = openai_provider.GeminiBaseURL
		}
	case provider.OpenAI:
		if baseURL == "" {
			baseURL = openai_provider.OpenAIBaseURL
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
	return openai_provider.NewClient(baseURL, cfg.Model, cfg.Timeout), nil
}

// NewCatalogClient creates the catalog client. When rdb is not nil lookups are
// served through a read-through cache.
func NewCatalogClient(cfg config.CatalogConfig, rdb redis.UniversalClient, ttl time.Duration) (catalog.Client, error) {
	var client catalog.Client
	switch catalog.Provider(cfg.Provider) {
	case catalog.GoogleBooksProvider:
		client = googlebooks.New(googlebooks.Options{
			Endpoint:       cfg.Endpoint,
			APIKey:         cfg.APIKey,
			SendCredential: cfg.SendCredential,
			PrintType:      cfg.PrintType,
			OrderBy:        cfg.OrderBy,
			SubjectSearch:  cfg.SubjectSearch,
		}, utils.NewHTTPClient(cfg.Timeout, utils.RetryPolicy{}))
	default:
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnsupportedProvider, cfg.Provider)
	}
	if rdb != nil {
		client = cache.New(rdb, client, ttl)
	}
	return client, nil
}

// NewExecutor wires the task executor with workflow settings and telemetry.
func NewExecutor(cfg config.WorkflowConfig, client catalog.Client, tel *telemetry.Telemetry, logger *log.Logger) *executor.Executor {
	return executor.New(client,
		executor.WithLimit(cfg.PerTaskLimit),
		executor.WithTimeout(cfg.CatalogTimeout),
		executor.WithConcurrency(cfg.Concurrency),
		executor.WithRetry(utils.RetryPolicy{
			MaxRetries:  cfg.Retry.MaxRetries,
			BackoffBase: cfg.Retry.BackoffBase,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		}),
		executor.WithLogger(logger),
		executor.WithMetrics(executor.Metrics{
			Lookup: func(_ context.Context, _ models.SubTask, outcome string) {
				tel.RecordLookup(outcome)
			},
		}),
	)
}

// Build assembles an orchestrator from configuration. The returned close
// function releases the optional Redis connection.
func Build(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*Orchestrator, func() error, error) {
	closeFn := func() error { return nil }

	llm, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, closeFn, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled {
		r := cfg.Storage.Redis
		rdb, err = cache.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to connect catalog cache: %w", err)
		}
		closeFn = rdb.Close
	}
	var cacheClient redis.UniversalClient
	if rdb != nil {
		cacheClient = rdb
	}
	client, err := NewCatalogClient(cfg.Catalog, cacheClient, cfg.Storage.Redis.CacheTTL)
	if err != nil {
		_ = closeFn()
		return nil, func() error { return nil }, fmt.Errorf("failed to create catalog client: %w", err)
	}

	var execLogger *log.Logger
	if cfg.General.Debug {
		execLogger = log.New(log.Writer(), "[EXECUTOR] ", log.LstdFlags)
	}
	exec := NewExecutor(cfg.Workflow, client, tel, execLogger)
	planner := NewPlanner(cfg, llm, tel)
	return NewOrchestrator(cfg, nil, tel, planner, exec), closeFn, nil
}
