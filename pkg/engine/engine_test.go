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

package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weft/pkg/adapter"
	"github.com/teradata-labs/weft/pkg/generator"
	"github.com/teradata-labs/weft/pkg/history"
	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/pipeline"
	"github.com/teradata-labs/weft/pkg/types"
)

type stubResolver struct {
	sources map[string]*types.DataSource
}

func (r *stubResolver) Resolve(_ context.Context, tenant, id string) (*types.DataSource, error) {
	ds, ok := r.sources[id]
	if !ok {
		return nil, errors.New("no such source")
	}
	if ds.Tenant != tenant {
		return nil, errors.New("no such source")
	}
	return ds, nil
}

type stubProvider struct {
	content string
}

func (p *stubProvider) Name() string          { return "stub" }
func (p *stubProvider) Model() string         { return "stub-model" }
func (p *stubProvider) FallbackModel() string { return "stub-model-mini" }
func (p *stubProvider) Close() error          { return nil }

func (p *stubProvider) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: p.content, Model: "stub-model"}, nil
}

type stubAdapter struct {
	calls  atomic.Int64
	result *types.ResultSet
}

func (a *stubAdapter) Kind() types.SourceKind { return types.KindPostgres }
func (a *stubAdapter) Close() error           { return nil }

func (a *stubAdapter) Ping(context.Context, types.DataSource) error { return nil }

func (a *stubAdapter) Execute(ctx context.Context, _ string, _ types.DataSource, opts adapter.ExecOptions) (*types.ResultSet, error) {
	a.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.OnProgress != nil {
		opts.OnProgress("fetched 1 rows", 0.5)
		opts.OnProgress("fetched 2 rows", 1.0)
	}
	out := *a.result
	return &out, nil
}

func (a *stubAdapter) Introspect(context.Context, types.DataSource) (*types.Schema, error) {
	return &types.Schema{Tables: []types.Table{{
		Name: "orders",
		Columns: []types.Column{
			{Name: "region", Type: "text"},
			{Name: "amount", Type: "numeric"},
		},
	}}}, nil
}

const stubModelReply = `{"sql": "select region, sum(amount) as total from orders group by region", "explanation": "totals per region"}`

func newTestEngine(t *testing.T) (*Engine, *stubAdapter) {
	t.Helper()

	ad := &stubAdapter{result: &types.ResultSet{
		Data: []map[string]any{
			{"region": "east", "total": 100.0},
			{"region": "west", "total": 50.0},
		},
		Columns:   []string{"region", "total"},
		RowCount:  2,
		ElapsedMs: 12,
	}}
	adapters := adapter.NewRegistry()
	adapters.Register(ad)

	gen, err := generator.New([]llm.Provider{&stubProvider{content: stubModelReply}}, generator.Config{})
	require.NoError(t, err)

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng, err := New(Deps{
		Resolver: &stubResolver{sources: map[string]*types.DataSource{
			"ds-1": {ID: "ds-1", Tenant: "acme", Kind: types.KindPostgres},
		}},
		Adapters:  adapters,
		Generator: gen,
		History:   store,
	}, Config{})
	require.NoError(t, err)
	return eng, ad
}

func TestExecuteQueryBatch(t *testing.T) {
	eng, ad := newTestEngine(t)
	ctx := context.Background()

	resp, err := eng.ExecuteQuery(ctx, "acme", "ana", NewRequest("What is the total revenue last month", "ds-1"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.RowCount)
	assert.Equal(t, []string{"region", "total"}, resp.Columns)
	assert.False(t, resp.Cached)
	assert.Empty(t, resp.SQL)
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, types.KindPostgres, resp.DataSourceType)
	assert.NotNil(t, resp.Intent)
	assert.EqualValues(t, 1, ad.calls.Load())

	record, err := eng.History().Store().Get(ctx, resp.QueryID, "acme")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, record.Status)
	assert.Contains(t, record.GeneratedSQL, "SELECT")
	assert.Equal(t, 2, record.RowCount)
	require.NotNil(t, record.Metadata.OptimizationAnalysis)
}

func TestExecuteQueryExplainFlag(t *testing.T) {
	eng, _ := newTestEngine(t)

	req := NewRequest("What is the total revenue last month", "ds-1")
	req.Explain = true
	resp, err := eng.ExecuteQuery(context.Background(), "acme", "ana", req)
	require.NoError(t, err)

	assert.Contains(t, resp.SQL, "SELECT")
	assert.Contains(t, resp.SQL, "GROUP BY")
}

func TestExecuteQueryCacheHit(t *testing.T) {
	eng, ad := newTestEngine(t)
	ctx := context.Background()
	req := NewRequest("What is the total revenue last month", "ds-1")

	first, err := eng.ExecuteQuery(ctx, "acme", "ana", req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := eng.ExecuteQuery(ctx, "acme", "ana", req)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Columns, second.Columns)
	assert.EqualValues(t, 1, ad.calls.Load(), "cache hit must not reach the adapter")

	record, err := eng.History().Store().Get(ctx, second.QueryID, "acme")
	require.NoError(t, err)
	assert.Equal(t, "CACHED", record.GeneratedSQL)
	assert.Equal(t, types.StatusCompleted, record.Status)
}

func TestExecuteQuerySimilarCacheHit(t *testing.T) {
	eng, ad := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.ExecuteQuery(ctx, "acme", "ana", NewRequest("What is the total revenue last month", "ds-1"))
	require.NoError(t, err)
	require.False(t, first.Cached)

	// Different phrasing, different fingerprint, shared keyword.
	resp, err := eng.ExecuteQuery(ctx, "acme", "ana", NewRequest("Show me total revenue by region", "ds-1"))
	require.NoError(t, err)

	assert.True(t, resp.Cached)
	assert.Equal(t, first.Data, resp.Data)
	assert.EqualValues(t, 1, ad.calls.Load(), "a similar query's cached result must not reach the adapter")

	record, err := eng.History().Store().Get(ctx, resp.QueryID, "acme")
	require.NoError(t, err)
	assert.Equal(t, "CACHED", record.GeneratedSQL)
	assert.Equal(t, first.QueryID, record.Metadata.Extra["similar_query_id"])
}

func TestExecuteQueryCacheDisabled(t *testing.T) {
	eng, ad := newTestEngine(t)
	ctx := context.Background()
	req := NewRequest("What is the total revenue last month", "ds-1")
	req.UseCache = false

	for i := 0; i < 2; i++ {
		resp, err := eng.ExecuteQuery(ctx, "acme", "ana", req)
		require.NoError(t, err)
		assert.False(t, resp.Cached)
	}
	assert.EqualValues(t, 2, ad.calls.Load())
}

func TestExecuteQueryStreamSequence(t *testing.T) {
	eng, _ := newTestEngine(t)
	stream := pipeline.NewStream(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.ExecuteQueryStream(context.Background(), "acme", "ana",
			NewRequest("What is the total revenue last month", "ds-1"), stream)
	}()

	var events []pipeline.Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	<-done

	require.NotEmpty(t, events)
	assert.Equal(t, pipeline.EventConnection, events[0].Type)
	assert.NotEmpty(t, events[0].StreamID)

	last := events[len(events)-1]
	assert.Equal(t, pipeline.EventResult, last.Type)
	assert.Equal(t, pipeline.StepCompleted, last.Step)
	assert.Equal(t, 100, last.Progress)

	prev := 0
	var steps []string
	for _, ev := range events[1:] {
		assert.GreaterOrEqual(t, ev.Progress, prev, "progress must never decrease")
		prev = ev.Progress
		steps = append(steps, ev.Step)
	}
	for _, want := range []string{
		pipeline.StepIntentDetection,
		pipeline.StepCacheCheck,
		pipeline.StepSQLGeneration,
		pipeline.StepSQLExecution,
		pipeline.StepSavingResults,
		pipeline.StepCompleted,
	} {
		assert.Contains(t, steps, want)
	}
}

func TestExecuteQueryStreamCacheHit(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	req := NewRequest("What is the total revenue last month", "ds-1")

	_, err := eng.ExecuteQuery(ctx, "acme", "ana", req)
	require.NoError(t, err)

	stream := pipeline.NewStream(0)
	go eng.ExecuteQueryStream(ctx, "acme", "ana", req, stream)

	var steps []string
	var last pipeline.Event
	for ev := range stream.Events() {
		steps = append(steps, ev.Step)
		last = ev
	}

	assert.Contains(t, steps, pipeline.StepCacheHit)
	assert.NotContains(t, steps, pipeline.StepSQLGeneration)
	assert.NotContains(t, steps, pipeline.StepSQLExecution)
	assert.Equal(t, pipeline.EventResult, last.Type)
}

func TestExecuteQueryStreamError(t *testing.T) {
	eng, _ := newTestEngine(t)
	stream := pipeline.NewStream(0)

	go eng.ExecuteQueryStream(context.Background(), "acme", "ana",
		NewRequest("asdf qwerty zzz", "ds-1"), stream)

	var events []pipeline.Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, pipeline.EventError, last.Type)
	assert.Equal(t, pipeline.StepIntentDetection, last.Step)
	assert.NotEmpty(t, last.Message)
	assert.NotNil(t, last.Data, "low-confidence error carries suggestions")

	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestExecuteQueryStreamInvalidRequest(t *testing.T) {
	eng, _ := newTestEngine(t)
	stream := pipeline.NewStream(0)

	go eng.ExecuteQueryStream(context.Background(), "acme", "ana",
		NewRequest("hi", "ds-1"), stream)

	var events []pipeline.Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, pipeline.EventConnection, events[0].Type)
	assert.NotEmpty(t, events[0].StreamID)
	assert.Equal(t, pipeline.EventError, events[1].Type)
}

func TestLowConfidenceIntent(t *testing.T) {
	eng, ad := newTestEngine(t)

	_, err := eng.ExecuteQuery(context.Background(), "acme", "ana", NewRequest("asdf qwerty zzz", "ds-1"))
	require.Error(t, err)

	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindIntentLowConfidence, eerr.Kind)
	assert.NotEmpty(t, eerr.Suggestions)
	assert.Zero(t, ad.calls.Load())
}

func TestUnsafeSQLNeverExecutes(t *testing.T) {
	eng, ad := newTestEngine(t)

	gen, err := generator.New([]llm.Provider{&stubProvider{
		content: `{"sql": "DROP TABLE orders", "explanation": "cleanup"}`,
	}}, generator.Config{})
	require.NoError(t, err)
	eng.generator = gen

	_, err = eng.ExecuteQuery(context.Background(), "acme", "ana", NewRequest("What is the total revenue last month", "ds-1"))
	require.Error(t, err)

	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindUnsafeSQL, eerr.Kind)
	assert.Zero(t, ad.calls.Load())

	records, err := eng.History().Store().List(context.Background(), "acme", history.Filters{Status: types.StatusFailed}, history.Page{})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestRequestValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		kind ErrorKind
	}{
		{"too short", NewRequest("hi", "ds-1"), KindInvalidRequest},
		{"missing source", Request{NaturalLanguage: "show recent orders"}, KindInvalidRequest},
		{"unknown source", NewRequest("show recent orders", "nope"), KindDataSourceNotFound},
		{"wrong tenant source", NewRequest("show recent orders", "ds-1"), KindDataSourceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := "acme"
			if tt.name == "wrong tenant source" {
				tenant = "rival"
			}
			_, err := eng.ExecuteQuery(ctx, tenant, "ana", tt.req)
			var eerr *Error
			require.ErrorAs(t, err, &eerr)
			assert.Equal(t, tt.kind, eerr.Kind)
		})
	}
}

func TestCancellationPersistsRecord(t *testing.T) {
	eng, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.ExecuteQuery(ctx, "acme", "ana", NewRequest("What is the total revenue last month", "ds-1"))
	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindCancelled, eerr.Kind)

	records, err := eng.History().Store().List(context.Background(), "acme", history.Filters{Status: types.StatusFailed}, history.Page{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cancelled", records[0].ErrorMessage)
}

func TestSubmitFeedback(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	resp, err := eng.ExecuteQuery(ctx, "acme", "ana", NewRequest("What is the total revenue last month", "ds-1"))
	require.NoError(t, err)

	fb := types.Feedback{Helpful: true, Accurate: true, Rating: 5, Comments: "spot on"}
	record, err := eng.SubmitFeedback(ctx, "acme", resp.QueryID, fb)
	require.NoError(t, err)
	require.NotNil(t, record.Metadata.Feedback)
	assert.Equal(t, 5, record.Metadata.Feedback.Rating)

	// Same payload again is a no-op, not an error.
	again, err := eng.SubmitFeedback(ctx, "acme", resp.QueryID, fb)
	require.NoError(t, err)
	assert.Equal(t, record.Metadata.Feedback, again.Metadata.Feedback)

	_, err = eng.SubmitFeedback(ctx, "acme", resp.QueryID, types.Feedback{Rating: 9})
	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindInvalidRequest, eerr.Kind)

	_, err = eng.SubmitFeedback(ctx, "acme", "missing-id", fb)
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindDataSourceNotFound, eerr.Kind)
}

func TestExplainQuery(t *testing.T) {
	eng, ad := newTestEngine(t)
	ctx := context.Background()

	exp, err := eng.ExplainQuery(ctx, "acme", NewRequest("What is the total revenue last month", "ds-1"))
	require.NoError(t, err)

	require.NotNil(t, exp.Intent)
	assert.Contains(t, exp.SQL.Query, "SELECT")
	assert.Equal(t, "totals per region", exp.SQL.Explanation)
	assert.NotEmpty(t, exp.SQL.EstimatedComplexity)
	assert.Zero(t, ad.calls.Load(), "explain must not execute")

	records, err := eng.History().Store().List(ctx, "acme", history.Filters{}, history.Page{})
	require.NoError(t, err)
	assert.Empty(t, records, "explain must not record history")
}

func TestFingerprintNormalisation(t *testing.T) {
	a := Fingerprint("acme", "ds-1", "Show  Me   Revenue")
	b := Fingerprint("acme", "ds-1", "show me revenue")
	c := Fingerprint("acme", "ds-2", "show me revenue")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMaintenanceLifecycle(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.cfg.MaintenanceSchedule = "@every 1h"

	require.NoError(t, eng.StartMaintenance())
	require.Error(t, eng.StartMaintenance(), "double start must fail")
	eng.Stop()
	require.NoError(t, eng.StartMaintenance())
	eng.Stop()
}
