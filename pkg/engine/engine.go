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

// Package engine orchestrates the natural-language query pipeline:
// intent classification, cache lookup, SQL generation with provider
// failover, safety validation, execution, and persistence, with staged
// progress events for streaming callers.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/pkg/adapter"
	"github.com/teradata-labs/weft/pkg/cache"
	"github.com/teradata-labs/weft/pkg/generator"
	"github.com/teradata-labs/weft/pkg/history"
	"github.com/teradata-labs/weft/pkg/intent"
	"github.com/teradata-labs/weft/pkg/pipeline"
	"github.com/teradata-labs/weft/pkg/schema"
	"github.com/teradata-labs/weft/pkg/types"
)

// SourceResolver turns a data source ID into a full data source. The
// host owns data source management; the engine only reads. A source
// belonging to another tenant must resolve as not found.
type SourceResolver interface {
	Resolve(ctx context.Context, tenant, dataSourceID string) (*types.DataSource, error)
}

// Request is one query invocation.
type Request struct {
	NaturalLanguage string `json:"naturalLanguage"`
	DataSourceID    string `json:"dataSourceId"`
	UseCache        bool   `json:"useCache"`
	Explain         bool   `json:"explain"`
	Streaming       bool   `json:"streaming"`
}

// NewRequest builds a request with defaults applied.
func NewRequest(naturalLanguage, dataSourceID string) Request {
	return Request{
		NaturalLanguage: naturalLanguage,
		DataSourceID:    dataSourceID,
		UseCache:        true,
	}
}

// Response is the batch result of one query.
type Response struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data"`
	Columns         []string         `json:"columns"`
	RowCount        int              `json:"rowCount"`
	ExecutionTimeMs int64            `json:"executionTime"`
	Cached          bool             `json:"cached"`
	Intent          *types.Intent    `json:"intent,omitempty"`
	SQL             string           `json:"sql,omitempty"`
	Optimizations   []string         `json:"optimizations,omitempty"`
	QueryID         string           `json:"queryId,omitempty"`
	DataSourceType  types.SourceKind `json:"dataSourceType"`
}

// Request length bounds.
const (
	MinQueryLength = 5
	MaxQueryLength = 1000
)

// Config tunes the engine. Zero values pick the documented defaults.
type Config struct {
	MinConfidence       float64       // reject intents below this, default 0.30
	BatchTimeout        time.Duration // default 30s
	StreamTimeout       time.Duration // default 120s
	ProgressBuffer      int           // streaming channel capacity, default 16
	CacheTTL            time.Duration // default 1h
	HistoryRetention    time.Duration // default 90 days
	MaintenanceSchedule string        // cron spec, default every 10 minutes
}

func (c *Config) applyDefaults() {
	if c.MinConfidence <= 0 {
		c.MinConfidence = intent.MinConfidence
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = adapter.DefaultBatchTimeout
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = adapter.DefaultStreamTimeout
	}
	if c.ProgressBuffer <= 0 {
		c.ProgressBuffer = pipeline.DefaultBuffer
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = cache.DefaultTTL
	}
	if c.HistoryRetention <= 0 {
		c.HistoryRetention = 90 * 24 * time.Hour
	}
	if c.MaintenanceSchedule == "" {
		c.MaintenanceSchedule = "@every 10m"
	}
}

// Deps are the engine's collaborators. Resolver, Adapters, Generator,
// and History are required; the rest default.
type Deps struct {
	Resolver   SourceResolver
	Adapters   *adapter.Registry
	Schemas    *schema.Registry
	Classifier *intent.Classifier
	Generator  *generator.Generator
	Cache      *cache.Cache
	History    history.Store
}

// Engine is the query pipeline facade.
type Engine struct {
	cfg        Config
	resolver   SourceResolver
	adapters   *adapter.Registry
	schemas    *schema.Registry
	classifier *intent.Classifier
	generator  *generator.Generator
	cache      *cache.Cache
	history    *history.Manager
	cron       *cron.Cron
}

// New creates an engine.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Resolver == nil {
		return nil, fmt.Errorf("a SourceResolver is required")
	}
	if deps.Adapters == nil {
		return nil, fmt.Errorf("an adapter registry is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("a SQL generator is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("a history store is required")
	}
	if deps.Schemas == nil {
		deps.Schemas = schema.NewRegistry(deps.Adapters)
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.New(intent.Config{})
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.Config{})
	}
	cfg.applyDefaults()

	return &Engine{
		cfg:        cfg,
		resolver:   deps.Resolver,
		adapters:   deps.Adapters,
		schemas:    deps.Schemas,
		classifier: deps.Classifier,
		generator:  deps.Generator,
		cache:      deps.Cache,
		history:    history.NewManager(deps.History),
	}, nil
}

// History exposes the query manager for reporting callers.
func (e *Engine) History() *history.Manager { return e.history }

// SubmitFeedback attaches caller feedback to a completed query.
// Idempotent under equal payloads.
func (e *Engine) SubmitFeedback(ctx context.Context, tenant, queryID string, feedback types.Feedback) (*types.QueryRecord, error) {
	if feedback.Rating != 0 && (feedback.Rating < 1 || feedback.Rating > 5) {
		return nil, newError(KindInvalidRequest, "rating must be between 1 and 5", nil)
	}
	if err := e.history.Store().UpdateFeedback(ctx, queryID, tenant, feedback); err != nil {
		if err == history.ErrNotFound {
			return nil, newError(KindDataSourceNotFound, "query not found", err)
		}
		return nil, newError(KindInternal, "failed to store feedback", err)
	}
	record, err := e.history.Store().Get(ctx, queryID, tenant)
	if err != nil {
		return nil, newError(KindInternal, "failed to load updated record", err)
	}
	return record, nil
}

// StartMaintenance schedules the cache purge and history retention
// sweep. Safe to call once; Stop shuts the schedule down.
func (e *Engine) StartMaintenance() error {
	if e.cron != nil {
		return fmt.Errorf("maintenance already started")
	}
	c := cron.New()
	_, err := c.AddFunc(e.cfg.MaintenanceSchedule, func() {
		purged := e.cache.Purge()
		cutoff := time.Now().Add(-e.cfg.HistoryRetention)
		pruned, err := e.history.Store().Prune(context.Background(), cutoff)
		if err != nil {
			log.Warn("history retention sweep failed", zap.Error(err))
		}
		log.Debug("maintenance pass",
			zap.Int("cache_purged", purged),
			zap.Int64("history_pruned", pruned))
	})
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", e.cfg.MaintenanceSchedule, err)
	}
	c.Start()
	e.cron = c
	return nil
}

// Stop halts maintenance scheduling.
func (e *Engine) Stop() {
	if e.cron != nil {
		e.cron.Stop()
		e.cron = nil
	}
}

func (e *Engine) validateRequest(req Request) *Error {
	n := len(req.NaturalLanguage)
	if n < MinQueryLength || n > MaxQueryLength {
		return newError(KindInvalidRequest,
			fmt.Sprintf("query length must be between %d and %d characters", MinQueryLength, MaxQueryLength), nil)
	}
	if req.DataSourceID == "" {
		return newError(KindInvalidRequest, "data source id is required", nil)
	}
	return nil
}

func (e *Engine) resolveSource(ctx context.Context, tenant string, req Request) (*types.DataSource, *Error) {
	ds, err := e.resolver.Resolve(ctx, tenant, req.DataSourceID)
	if err != nil || ds == nil {
		return nil, newError(KindDataSourceNotFound,
			fmt.Sprintf("data source %q not found", req.DataSourceID), err)
	}
	if ds.Tenant != "" && ds.Tenant != tenant {
		return nil, newError(KindDataSourceNotFound,
			fmt.Sprintf("data source %q not found", req.DataSourceID), nil)
	}
	return ds, nil
}

// toIntent maps the classifier result onto the shared type.
func toIntent(r intent.Result) *types.Intent {
	out := &types.Intent{
		Label:       r.Label,
		Confidence:  r.Confidence,
		Entities:    r.Entities,
		Metrics:     r.Metrics,
		Dimensions:  r.Dimensions,
		Suggestions: r.Suggestions,
	}
	if r.Timeframe != nil {
		out.Timeframe = &types.Timeframe{
			From:        r.Timeframe.From,
			To:          r.Timeframe.To,
			Granularity: r.Timeframe.Granularity,
		}
	}
	return out
}
