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

package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/types"
)

// scriptedProvider replays canned outcomes and records the models it
// was asked for.
type scriptedProvider struct {
	name      string
	model     string
	fallback  string
	responses []scriptedResponse
	calls     int
	models    []string
}

type scriptedResponse struct {
	content string
	err     error
}

func (p *scriptedProvider) Name() string          { return p.name }
func (p *scriptedProvider) Model() string         { return p.model }
func (p *scriptedProvider) FallbackModel() string { return p.fallback }
func (p *scriptedProvider) Close() error          { return nil }

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.models = append(p.models, req.Model)
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		return nil, errors.New("no more scripted responses")
	}
	r := p.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: r.content, Model: req.Model}, nil
}

const goodJSON = `{"sql": "SELECT id FROM orders LIMIT 10", "explanation": "recent orders", "confidence": 0.9, "estimated_rows": 10}`

func newTestGenerator(t *testing.T, providers ...llm.Provider) *Generator {
	t.Helper()
	g, err := New(providers, Config{RetryDelay: time.Millisecond})
	require.NoError(t, err)
	g.sleep = func(context.Context, time.Duration) error { return nil }
	return g
}

func testDataSource() types.DataSource {
	return types.DataSource{ID: "ds-1", Kind: types.KindPostgres}
}

func minimalSchema() *types.Schema {
	return &types.Schema{Tables: []types.Table{
		{Name: "orders", Columns: []types.Column{{Name: "id", Type: "bigint"}}},
	}}
}

func TestGenerateSuccess(t *testing.T) {
	p := &scriptedProvider{
		name: "anthropic", model: "m-primary", fallback: "m-fallback",
		responses: []scriptedResponse{{content: goodJSON}},
	}
	g := newTestGenerator(t, p)

	result, err := g.Generate(context.Background(), "show recent orders",
		types.Intent{Label: "lookup", Confidence: 0.9}, testDataSource(), minimalSchema())
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders LIMIT 10", result.SQL)
	assert.Equal(t, "anthropic", result.ProviderUsed)
	assert.Equal(t, "m-primary", result.ModelUsed)
	assert.Equal(t, 1, p.calls)
}

func TestGenerateFallbackModelOnRetry(t *testing.T) {
	p := &scriptedProvider{
		name: "anthropic", model: "m-primary", fallback: "m-fallback",
		responses: []scriptedResponse{
			{err: errors.New("transient upstream error")},
			{content: goodJSON},
		},
	}
	g := newTestGenerator(t, p)

	result, err := g.Generate(context.Background(), "show recent orders",
		types.Intent{Label: "lookup"}, testDataSource(), minimalSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"m-primary", "m-fallback"}, p.models)
	assert.Equal(t, "m-fallback", result.ModelUsed)
}

func TestGenerateRateLimitAbandonsProvider(t *testing.T) {
	limited := &scriptedProvider{
		name: "anthropic", model: "a",
		responses: []scriptedResponse{{err: errors.New("429 too many requests")}},
	}
	healthy := &scriptedProvider{
		name: "openai", model: "b",
		responses: []scriptedResponse{{content: goodJSON}},
	}
	g := newTestGenerator(t, limited, healthy)

	result, err := g.Generate(context.Background(), "show recent orders",
		types.Intent{Label: "lookup"}, testDataSource(), minimalSchema())
	require.NoError(t, err)
	assert.Equal(t, "openai", result.ProviderUsed)
	// No retries against the rate-limited provider.
	assert.Equal(t, 1, limited.calls)
}

func TestGenerateBadResponseCountsAsAttempt(t *testing.T) {
	p := &scriptedProvider{
		name: "anthropic", model: "a",
		responses: []scriptedResponse{
			{content: "here is your query: SELECT 1"},
			{content: goodJSON},
		},
	}
	g := newTestGenerator(t, p)

	result, err := g.Generate(context.Background(), "show recent orders",
		types.Intent{Label: "lookup"}, testDataSource(), minimalSchema())
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, "anthropic", result.ProviderUsed)
}

func TestGenerateAllProvidersFailed(t *testing.T) {
	fail := func(name string) *scriptedProvider {
		return &scriptedProvider{
			name: name, model: "m",
			responses: []scriptedResponse{
				{err: errors.New("boom")},
				{err: errors.New("boom")},
				{err: errors.New("boom")},
			},
		}
	}
	a, b := fail("anthropic"), fail("openai")
	g := newTestGenerator(t, a, b)

	_, err := g.Generate(context.Background(), "show recent orders",
		types.Intent{Label: "lookup"}, testDataSource(), minimalSchema())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, DefaultRetryAttempts, a.calls)
	assert.Equal(t, DefaultRetryAttempts, b.calls)
}

func TestParseResponseMarkdownFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSQL string
		wantErr bool
	}{
		{"bare json", goodJSON, "SELECT id FROM orders LIMIT 10", false},
		{"json fence", "```json\n" + goodJSON + "\n```", "SELECT id FROM orders LIMIT 10", false},
		{"plain fence", "```\n" + goodJSON + "\n```", "SELECT id FROM orders LIMIT 10", false},
		{"surrounding prose", "Here you go:\n" + goodJSON + "\nHope that helps.", "SELECT id FROM orders LIMIT 10", false},
		{"no json", "SELECT id FROM orders", "", true},
		{"empty sql", `{"sql": "  "}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResponse(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBadResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, result.SQL)
		})
	}
}

func TestPromptEmbedsSchemaAndDialect(t *testing.T) {
	g := newTestGenerator(t, &scriptedProvider{name: "x", model: "m"})
	ds := types.DataSource{ID: "ds-1", Kind: types.KindMySQL}
	prompt := g.buildPrompt("total revenue by month",
		types.Intent{Label: "trend", Metrics: []string{"revenue"}}, ds, minimalSchema())
	assert.Contains(t, prompt, "Dialect: mysql")
	assert.Contains(t, prompt, "Table orders:")
	assert.Contains(t, prompt, "Question: total revenue by month")
}
