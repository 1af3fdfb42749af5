package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LLMConfig configures model providers and the fallback registry.
type LLMConfig struct {
	Google     ProviderConfig `yaml:"google" mapstructure:"google"`
	OpenAI     ProviderConfig `yaml:"openai" mapstructure:"openai"`
	Mistral    ProviderConfig `yaml:"mistral" mapstructure:"mistral"`
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig `yaml:"perplexity" mapstructure:"perplexity"`

	// RegistryFile optionally replaces the built-in model registry.
	RegistryFile string `yaml:"registry_file" mapstructure:"registry_file"`
	DefaultModel string `yaml:"default_model" mapstructure:"default_model"`
	MaxTokens    int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// ProviderConfig holds a single provider's credential and endpoint.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RetryConfig configures in-model retries of transient failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the per-model circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// SearchConfig configures the web search providers used by discovery.
type SearchConfig struct {
	// Providers is tried in order; later providers fill in when earlier ones fail.
	Providers     []string `yaml:"providers" mapstructure:"providers"`
	JinaKey       string   `yaml:"jina_key" mapstructure:"jina_key"`
	JinaBaseURL   string   `yaml:"jina_base_url" mapstructure:"jina_base_url"`
	DDGBaseURL    string   `yaml:"ddg_base_url" mapstructure:"ddg_base_url"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// DiscoveryConfig configures URL discovery caps.
type DiscoveryConfig struct {
	MaxResults  int `yaml:"max_results" mapstructure:"max_results"`
	PerQueryMax int `yaml:"per_query_max" mapstructure:"per_query_max"`
}

// FetchConfig configures page fetching.
type FetchConfig struct {
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// PipelineConfig configures summarization and aggregation.
type PipelineConfig struct {
	SummaryModel         string `yaml:"summary_model" mapstructure:"summary_model"`
	AggregateModel       string `yaml:"aggregate_model" mapstructure:"aggregate_model"`
	SummarizeConcurrency int    `yaml:"summarize_concurrency" mapstructure:"summarize_concurrency"`
	MaxDocChars          int    `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
	DedupPrefixChars     int    `yaml:"dedup_prefix_chars" mapstructure:"dedup_prefix_chars"`
	ExcerptChars         int    `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
}

// QueueConfig configures the in-process job dispatcher.
type QueueConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int `yaml:"port" mapstructure:"port"`
	StreamIntervalSecs int `yaml:"stream_interval_secs" mapstructure:"stream_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// providerEnv maps provider key settings to their conventional variables.
var providerEnv = map[string]string{
	"llm.google.key":     "GOOGLE_API_KEY",
	"llm.openai.key":     "OPENAI_API_KEY",
	"llm.mistral.key":    "MISTRAL_API_KEY",
	"llm.anthropic.key":  "ANTHROPIC_API_KEY",
	"llm.perplexity.key": "PERPLEXITY_API_KEY",
	"search.jina_key":    "JINA_API_KEY",
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range providerEnv {
		prefixed := "JOBFIT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "jobfit.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.stream_interval_secs", 2)
	v.SetDefault("llm.default_model", "gemini-2.5-flash")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("llm.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("llm.retry.max_attempts", 2)
	v.SetDefault("llm.retry.initial_backoff_ms", 500)
	v.SetDefault("llm.retry.max_backoff_ms", 5000)
	v.SetDefault("llm.circuit.failure_threshold", 5)
	v.SetDefault("llm.circuit.reset_timeout_secs", 60)
	v.SetDefault("search.providers", []string{"jina", "duckduckgo"})
	v.SetDefault("search.jina_base_url", "https://s.jina.ai")
	v.SetDefault("search.ddg_base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.rate_per_second", 2.0)
	v.SetDefault("discovery.max_results", 30)
	v.SetDefault("discovery.per_query_max", 15)
	v.SetDefault("fetch.concurrency", 6)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; JobFitBot/1.0)")
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("pipeline.summary_model", "gemini-2.5-flash")
	v.SetDefault("pipeline.aggregate_model", "gemini-2.5-flash")
	v.SetDefault("pipeline.summarize_concurrency", 1)
	v.SetDefault("pipeline.max_doc_chars", 30000)
	v.SetDefault("pipeline.dedup_prefix_chars", 20000)
	v.SetDefault("pipeline.excerpt_chars", 280)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.buffer_size", 64)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs before it starts. All
// problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the "+c.Store.Driver+" driver")
		}
	case "memory":
	default:
		errs = append(errs, "unknown store.driver \""+c.Store.Driver+"\"")
	}

	switch mode {
	case "migrate", "models":
	case "run", "serve":
		if !c.LLM.HasProvider() {
			errs = append(errs, "at least one model provider key is required (GOOGLE_API_KEY, OPENAI_API_KEY, MISTRAL_API_KEY, ANTHROPIC_API_KEY or PERPLEXITY_API_KEY)")
		}
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 64 {
			errs = append(errs, "fetch.concurrency must be between 1 and 64")
		}
		if c.Discovery.MaxResults < 1 || c.Discovery.PerQueryMax < 1 {
			errs = append(errs, "discovery.max_results and discovery.per_query_max must be > 0")
		}
		if mode == "serve" {
			if c.Server.Port <= 0 {
				errs = append(errs, "server.port must be > 0")
			}
			if c.Queue.Workers < 1 {
				errs = append(errs, "queue.workers must be > 0")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HasProvider reports whether any model provider has a credential.
func (l LLMConfig) HasProvider() bool {
	return l.Google.Key != "" || l.OpenAI.Key != "" || l.Mistral.Key != "" ||
		l.Anthropic.Key != "" || l.Perplexity.Key != ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
