package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the recommender
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug bool `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
	MaxQueryBody int64         `mapstructure:"max_query_body"`
}

// LLMConfig configures the planning model endpoint.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // gemini, openai
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	JSONMode    bool          `mapstructure:"json_mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Validate checks the planning model settings.
func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// CatalogConfig configures the book catalog lookup.
type CatalogConfig struct {
	Provider       string        `mapstructure:"provider"` // googlebooks
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	SendCredential bool          `mapstructure:"send_credential"`
	PrintType      string        `mapstructure:"print_type"`
	OrderBy        string        `mapstructure:"order_by"`
	SubjectSearch  bool          `mapstructure:"subject_search"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Validate checks the catalog settings.
func (c CatalogConfig) Validate() error {
	if c.Provider != "googlebooks" {
		return fmt.Errorf("catalog.provider %q is not supported", c.Provider)
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("catalog.endpoint is required")
	}
	return nil
}

// WorkflowConfig holds the per-run defaults of the recommendation pipeline.
type WorkflowConfig struct {
	DefaultK        int           `mapstructure:"default_k"`
	PerTaskLimit    int           `mapstructure:"per_task_limit"`
	MaxSubTasks     int           `mapstructure:"max_subtasks"`
	PlanningTimeout time.Duration `mapstructure:"planning_timeout"`
	CatalogTimeout  time.Duration `mapstructure:"catalog_timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds the optional retry around external calls. Zero retries
// keeps the single-attempt behaviour.
type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// Normalize applies defaults for unset workflow values.
func (c WorkflowConfig) Normalize() WorkflowConfig {
	if c.DefaultK <= 0 {
		c.DefaultK = 5
	}
	if c.PerTaskLimit <= 0 {
		c.PerTaskLimit = 10
	}
	if c.MaxSubTasks <= 0 {
		c.MaxSubTasks = 5
	}
	if c.PlanningTimeout <= 0 {
		c.PlanningTimeout = 30 * time.Second
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = 15 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.BackoffBase <= 0 {
		c.Retry.BackoffBase = 300 * time.Millisecond
	}
	if c.Retry.MaxBackoff <= 0 {
		c.Retry.MaxBackoff = 5 * time.Second
	}
	return c
}

// Validate ensures the workflow settings are usable.
func (c WorkflowConfig) Validate() error {
	if c.PerTaskLimit > 40 {
		return fmt.Errorf("workflow.per_task_limit must be <= 40")
	}
	if c.MaxSubTasks > 10 {
		return fmt.Errorf("workflow.max_subtasks must be <= 10")
	}
	return nil
}

// TelemetryConfig contains metrics and tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPath  string `mapstructure:"metrics_path"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // empty disables trace export
	ServiceName  string `mapstructure:"service_name"`
}

// StorageConfig contains optional backing stores
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the catalog lookup cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.CacheTTL <= 0 {
		return fmt.Errorf("storage.redis.cache_ttl must be > 0")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.run_timeout", 2*time.Minute)
	v.SetDefault("server.max_query_body", 1<<16)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.json_mode", true)
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("catalog.provider", "googlebooks")
	v.SetDefault("catalog.endpoint", "https://www.googleapis.com/books/v1/volumes")
	v.SetDefault("catalog.print_type", "books")
	v.SetDefault("catalog.order_by", "relevance")
	v.SetDefault("catalog.subject_search", false)
	v.SetDefault("catalog.send_credential", false)
	v.SetDefault("catalog.timeout", 15*time.Second)
	v.SetDefault("workflow.default_k", 5)
	v.SetDefault("workflow.per_task_limit", 10)
	v.SetDefault("workflow.max_subtasks", 5)
	v.SetDefault("workflow.planning_timeout", 30*time.Second)
	v.SetDefault("workflow.catalog_timeout", 15*time.Second)
	v.SetDefault("workflow.concurrency", 1)
	v.SetDefault("workflow.retry.max_retries", 0)
	v.SetDefault("workflow.retry.backoff_base", 300*time.Millisecond)
	v.SetDefault("workflow.retry.max_backoff", 5*time.Second)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "bookrec")
	v.SetDefault("storage.redis.enabled", false)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.redis.cache_ttl", time.Hour)
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	cfg, err := load(viper.New())
	if err != nil {
		panic(fmt.Errorf("default config: %w", err))
	}
	return cfg
}

// LoadConfig loads config from file (optional) and BOOKREC_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("BOOKREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Workflow = cfg.Workflow.Normalize()

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Workflow.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
