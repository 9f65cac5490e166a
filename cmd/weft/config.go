// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/teradata-labs/weft/internal/pgxdriver"
	"github.com/teradata-labs/weft/pkg/adapter"
	"github.com/teradata-labs/weft/pkg/cache"
	"github.com/teradata-labs/weft/pkg/engine"
	"github.com/teradata-labs/weft/pkg/generator"
	"github.com/teradata-labs/weft/pkg/history"
	"github.com/teradata-labs/weft/pkg/llm/factory"
	"github.com/teradata-labs/weft/pkg/types"
)

// DefaultConfigFileName is the name of the config file
const DefaultConfigFileName = "weft"

// Config holds all configuration for the weft CLI.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the weft data directory. Not loaded from the config
	// file; use the WEFT_DATA_DIR environment variable to override.
	DataDir string `mapstructure:"-"`

	// Tenant scopes every query and history lookup.
	Tenant string `mapstructure:"tenant"`

	// LLM provider configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Executor configuration
	Executor ExecutorConfig `mapstructure:"executor"`

	// Intent configuration
	Intent IntentConfig `mapstructure:"intent"`

	// History configuration
	History HistoryConfig `mapstructure:"history"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Sources are the data sources queries can target.
	Sources []SourceConfig `mapstructure:"sources"`
}

// LLMConfig holds the provider chain settings.
type LLMConfig struct {
	// Providers lists the failover order (anthropic, bedrock, openai).
	// Empty infers the order from available credentials.
	Providers []string `mapstructure:"providers"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`

	BedrockRegion  string `mapstructure:"bedrock_region"`
	BedrockProfile string `mapstructure:"bedrock_profile"`
	BedrockModelID string `mapstructure:"bedrock_model_id"`

	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`

	// RetryAttempts per provider before failing over.
	RetryAttempts int `mapstructure:"retry_attempts"`

	// RetryDelayMs is the base backoff between attempts.
	RetryDelayMs int `mapstructure:"retry_delay_ms"`

	// MaxPromptTokens bounds the schema context in prompts.
	MaxPromptTokens int `mapstructure:"max_prompt_tokens"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	MaxEntries       int     `mapstructure:"max_entries"`
	TTLMs            int     `mapstructure:"ttl_ms"`
	EvictionFraction float64 `mapstructure:"eviction_fraction"`
}

// ExecutorConfig holds query execution settings.
type ExecutorConfig struct {
	BatchTimeoutMs  int `mapstructure:"batch_timeout_ms"`
	StreamTimeoutMs int `mapstructure:"stream_timeout_ms"`
	ProgressBuffer  int `mapstructure:"progress_buffer"`
}

// IntentConfig holds intent classification settings.
type IntentConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// HistoryConfig holds query history storage settings.
type HistoryConfig struct {
	// Backend selects the store: "sqlite" or "postgres".
	Backend string `mapstructure:"backend"`

	// SQLitePath is the database file for the sqlite backend
	// (default: $WEFT_DATA_DIR/weft.db).
	SQLitePath string `mapstructure:"sqlite_path"`

	// PostgresDSN configures the postgres backend.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// RetentionDays bounds how long completed records are kept.
	RetentionDays int `mapstructure:"retention_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SourceConfig declares one queryable data source.
type SourceConfig struct {
	ID          string            `mapstructure:"id"`
	Kind        string            `mapstructure:"kind"`
	DisplayName string            `mapstructure:"display_name"`
	Tenant      string            `mapstructure:"tenant"`
	Connection  map[string]string `mapstructure:"connection"`
}

// GetWeftDataDir returns the data directory, honoring WEFT_DATA_DIR.
func GetWeftDataDir() string {
	if dir := os.Getenv("WEFT_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weft"
	}
	return filepath.Join(home, ".weft")
}

// LoadConfig loads configuration with the documented priority order.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(GetWeftDataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/weft/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	viper.SetEnvPrefix("WEFT")
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = GetWeftDataDir()
	if config.History.SQLitePath == "" {
		config.History.SQLitePath = filepath.Join(config.DataDir, "weft.db")
	}
	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("tenant", "default")

	viper.SetDefault("llm.retry_attempts", 3)
	viper.SetDefault("llm.retry_delay_ms", 1000)
	viper.SetDefault("llm.max_prompt_tokens", 8000)

	viper.SetDefault("cache.max_entries", 1000)
	viper.SetDefault("cache.ttl_ms", 3600000)
	viper.SetDefault("cache.eviction_fraction", 0.10)

	viper.SetDefault("executor.batch_timeout_ms", 30000)
	viper.SetDefault("executor.stream_timeout_ms", 120000)
	viper.SetDefault("executor.progress_buffer", 16)

	viper.SetDefault("intent.min_confidence", 0.30)

	viper.SetDefault("history.backend", "sqlite")
	viper.SetDefault("history.retention_days", 90)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)
}

// configResolver resolves data sources declared in the config file.
type configResolver struct {
	sources map[string]types.DataSource
}

func newConfigResolver(cfg *Config) (*configResolver, error) {
	r := &configResolver{sources: make(map[string]types.DataSource)}
	for _, sc := range cfg.Sources {
		kind := types.SourceKind(sc.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("source %q: unknown kind %q", sc.ID, sc.Kind)
		}
		tenant := sc.Tenant
		if tenant == "" {
			tenant = cfg.Tenant
		}
		r.sources[sc.ID] = types.DataSource{
			ID:          sc.ID,
			Tenant:      tenant,
			Kind:        kind,
			DisplayName: sc.DisplayName,
			Connection:  sc.Connection,
		}
	}
	return r, nil
}

func (r *configResolver) Resolve(_ context.Context, tenant, id string) (*types.DataSource, error) {
	ds, ok := r.sources[id]
	if !ok || ds.Tenant != tenant {
		return nil, fmt.Errorf("data source %q not found", id)
	}
	out := ds
	return &out, nil
}

// buildEngine assembles the query engine from the loaded config.
func buildEngine(ctx context.Context, cfg *Config) (*engine.Engine, error) {
	resolver, err := newConfigResolver(cfg)
	if err != nil {
		return nil, err
	}

	providers, err := factory.BuildChain(ctx, factory.Config{
		Providers:       cfg.LLM.Providers,
		AnthropicAPIKey: envFallback(cfg.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY"),
		AnthropicModel:  cfg.LLM.AnthropicModel,
		BedrockRegion:   envFallback(cfg.LLM.BedrockRegion, "AWS_DEFAULT_REGION"),
		BedrockProfile:  envFallback(cfg.LLM.BedrockProfile, "AWS_PROFILE"),
		BedrockModelID:  cfg.LLM.BedrockModelID,
		OpenAIAPIKey:    envFallback(cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY"),
		OpenAIModel:     cfg.LLM.OpenAIModel,
	})
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(providers, generator.Config{
		RetryAttempts:   cfg.LLM.RetryAttempts,
		RetryDelay:      time.Duration(cfg.LLM.RetryDelayMs) * time.Millisecond,
		MaxPromptTokens: cfg.LLM.MaxPromptTokens,
	})
	if err != nil {
		return nil, err
	}

	var store history.Store
	switch cfg.History.Backend {
	case "postgres":
		store, err = history.NewPostgresStore(ctx, pgxdriver.Config{DSN: cfg.History.PostgresDSN})
	case "sqlite", "":
		if err = os.MkdirAll(filepath.Dir(cfg.History.SQLitePath), 0o755); err == nil {
			store, err = history.NewSQLiteStore(cfg.History.SQLitePath)
		}
	default:
		err = fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	return engine.New(engine.Deps{
		Resolver:  resolver,
		Adapters:  adapter.NewDefaultRegistry(),
		Generator: gen,
		History:   store,
		Cache: cache.New(cache.Config{
			MaxEntries:       cfg.Cache.MaxEntries,
			TTL:              time.Duration(cfg.Cache.TTLMs) * time.Millisecond,
			EvictionFraction: cfg.Cache.EvictionFraction,
		}),
	}, engine.Config{
		MinConfidence:    cfg.Intent.MinConfidence,
		BatchTimeout:     time.Duration(cfg.Executor.BatchTimeoutMs) * time.Millisecond,
		StreamTimeout:    time.Duration(cfg.Executor.StreamTimeoutMs) * time.Millisecond,
		ProgressBuffer:   cfg.Executor.ProgressBuffer,
		CacheTTL:         time.Duration(cfg.Cache.TTLMs) * time.Millisecond,
		HistoryRetention: time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
	})
}

func envFallback(value, env string) string {
	if value != "" {
		return value
	}
	return os.Getenv(env)
}
