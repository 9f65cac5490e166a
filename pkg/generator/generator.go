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

// Package generator turns a classified natural-language query into SQL
// by prompting a chain of LLM providers with the source schema.
// Providers are tried in order; each gets a bounded number of attempts
// before the next takes over.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/schema"
	"github.com/teradata-labs/weft/pkg/types"
)

// Defaults for the failover policy.
const (
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 1 * time.Second
	DefaultMaxPromptTokens = 8000
)

// ErrAllProvidersFailed means every provider exhausted its attempts.
var ErrAllProvidersFailed = errors.New("all providers failed to generate SQL")

// ErrBadResponse means a model reply could not be parsed. It counts as
// one failed attempt against the provider that produced it.
var ErrBadResponse = errors.New("unparsable model response")

// Config holds generation policy.
type Config struct {
	RetryAttempts   int           // per provider, default 3
	RetryDelay      time.Duration // base delay, default 1s
	MaxPromptTokens int           // schema truncation budget, default 8000
}

// Result is one successful generation.
type Result struct {
	SQL           string   `json:"sql"`
	Explanation   string   `json:"explanation,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	EstimatedRows int      `json:"estimated_rows,omitempty"`
	ExecutionPlan string   `json:"execution_plan,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	ProviderUsed  string   `json:"provider_used"`
	ModelUsed     string   `json:"model_used"`
}

// Generator drives the provider chain.
type Generator struct {
	providers []llm.Provider
	cfg       Config
	encoder   *tiktoken.Tiktoken

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// New creates a generator over an ordered provider chain.
func New(providers []llm.Provider, cfg Config) (*Generator, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = DefaultMaxPromptTokens
	}

	// Encoding load can fail offline; token counting then falls back
	// to a bytes/4 estimate.
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn("tiktoken encoding unavailable, using byte estimate", zap.Error(err))
		encoder = nil
	}

	return &Generator{
		providers: providers,
		cfg:       cfg,
		encoder:   encoder,
		sleep:     sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CountTokens measures prompt text against the token budget.
func (g *Generator) CountTokens(text string) int {
	if g.encoder != nil {
		return len(g.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// Generate produces SQL for the query. Providers are tried in order;
// per provider the first attempt uses its primary model and later
// attempts its fallback model, with linear backoff between attempts.
// A rate-limit error abandons the provider after one base delay.
func (g *Generator) Generate(ctx context.Context, query string, intent types.Intent, ds types.DataSource, sc *types.Schema) (*Result, error) {
	system := systemPrompt(ds.Kind.Dialect())
	prompt := g.buildPrompt(query, intent, ds, sc)

	var lastErr error
	for _, provider := range g.providers {
		result, err := g.tryProvider(ctx, provider, system, prompt)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn("provider exhausted",
			zap.String("provider", provider.Name()),
			zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

func (g *Generator) tryProvider(ctx context.Context, provider llm.Provider, system, prompt string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.RetryAttempts; attempt++ {
		model := provider.Model()
		if attempt > 0 && provider.FallbackModel() != "" {
			model = provider.FallbackModel()
		}

		resp, err := provider.Complete(ctx, llm.Request{
			System: system,
			Prompt: prompt,
			Model:  model,
		})
		if err == nil {
			result, perr := parseResponse(resp.Content)
			if perr == nil {
				result.ProviderUsed = provider.Name()
				result.ModelUsed = resp.Model
				if result.ModelUsed == "" {
					result.ModelUsed = model
				}
				return result, nil
			}
			err = perr
		}
		lastErr = err

		if llm.IsRateLimited(err) {
			if serr := g.sleep(ctx, g.cfg.RetryDelay); serr != nil {
				return nil, serr
			}
			return nil, fmt.Errorf("rate limited: %w", err)
		}
		if attempt+1 < g.cfg.RetryAttempts {
			if serr := g.sleep(ctx, g.cfg.RetryDelay*time.Duration(attempt+1)); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, lastErr
}

func systemPrompt(dialect string) string {
	return fmt.Sprintf(`You translate business questions into %s SQL.
Rules:
- Generate exactly one read-only SELECT statement. Never write data.
- Use only tables and columns from the provided schema.
- Always include a LIMIT unless the question asks for a single aggregate.
Respond with a single JSON object and nothing else:
{"sql": "...", "explanation": "...", "confidence": 0.0, "estimated_rows": 0, "execution_plan": "...", "warnings": []}`, dialect)
}

func (g *Generator) buildPrompt(query string, intent types.Intent, ds types.DataSource, sc *types.Schema) string {
	render := func(schemaText string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Dialect: %s\n\nSchema:\n%s\n", ds.Kind.Dialect(), schemaText)
		fmt.Fprintf(&b, "Intent: %s (confidence %.2f)\n", intent.Label, intent.Confidence)
		if len(intent.Metrics) > 0 {
			fmt.Fprintf(&b, "Metrics: %s\n", strings.Join(intent.Metrics, ", "))
		}
		if len(intent.Dimensions) > 0 {
			fmt.Fprintf(&b, "Dimensions: %s\n", strings.Join(intent.Dimensions, ", "))
		}
		if tf := intent.Timeframe; tf != nil {
			if !tf.From.IsZero() {
				fmt.Fprintf(&b, "From: %s\n", tf.From.Format(time.RFC3339))
			}
			if !tf.To.IsZero() {
				fmt.Fprintf(&b, "To: %s\n", tf.To.Format(time.RFC3339))
			}
		}
		fmt.Fprintf(&b, "\nQuestion: %s\n", query)
		return b.String()
	}

	schemaText := schema.Truncate(sc, func(candidate string) bool {
		return g.CountTokens(render(candidate)) <= g.cfg.MaxPromptTokens
	})
	return render(schemaText)
}

// parseResponse extracts the generation JSON, tolerating markdown
// fences and surrounding prose.
func parseResponse(content string) (*Result, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	if start := strings.IndexByte(text, '{'); start > 0 {
		if end := strings.LastIndexByte(text, '}'); end > start {
			text = text[start : end+1]
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if strings.TrimSpace(result.SQL) == "" {
		return nil, fmt.Errorf("%w: missing sql field", ErrBadResponse)
	}
	return &result, nil
}
