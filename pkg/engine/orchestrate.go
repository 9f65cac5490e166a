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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/pkg/adapter"
	"github.com/teradata-labs/weft/pkg/cache"
	"github.com/teradata-labs/weft/pkg/pipeline"
	"github.com/teradata-labs/weft/pkg/sqlcheck"
	"github.com/teradata-labs/weft/pkg/types"
)

// cachedSQLMarker is stored as the generated SQL of cache-hit records.
const cachedSQLMarker = "CACHED"

// ExecuteQuery runs the pipeline in batch mode and returns only the
// terminal result.
func (e *Engine) ExecuteQuery(ctx context.Context, tenant, user string, req Request) (*Response, error) {
	resp, eerr := e.run(ctx, tenant, user, req, nil)
	if eerr != nil {
		return nil, eerr
	}
	return resp, nil
}

// ExecuteQueryStream runs the pipeline and emits every staged event on
// stream, ending with exactly one result or error event. The stream is
// always closed on return.
func (e *Engine) ExecuteQueryStream(ctx context.Context, tenant, user string, req Request, stream *pipeline.Stream) {
	req.Streaming = true
	defer stream.Close()
	_, _ = e.run(ctx, tenant, user, req, stream)
}

// emit sends one event when streaming. A refused emission means the
// consumer is gone; the pipeline aborts.
func (e *Engine) emit(ctx context.Context, stream *pipeline.Stream, event pipeline.Event) *Error {
	if stream == nil {
		return nil
	}
	if err := stream.Emit(ctx, event); err != nil {
		if errors.Is(err, pipeline.ErrStreamFinished) {
			return nil
		}
		return newError(KindCancelled, "consumer disconnected", err)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, tenant, user string, req Request, stream *pipeline.Stream) (*Response, *Error) {
	start := time.Now()

	if eerr := e.emit(ctx, stream, pipeline.Connection(uuid.NewString())); eerr != nil {
		return nil, eerr
	}
	if eerr := e.validateRequest(req); eerr != nil {
		e.emitError(ctx, stream, pipeline.StepIntentDetection, eerr)
		return nil, eerr
	}
	ds, eerr := e.resolveSource(ctx, tenant, req)
	if eerr != nil {
		e.emitError(ctx, stream, pipeline.StepIntentDetection, eerr)
		return nil, eerr
	}

	// Intent.
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepIntentDetection, "Analyzing query intent", 10, nil)); eerr != nil {
		return nil, eerr
	}
	it := toIntent(e.classifier.Classify(req.NaturalLanguage))

	record := &types.QueryRecord{
		ID:              uuid.NewString(),
		Tenant:          tenant,
		DataSourceID:    ds.ID,
		User:            user,
		NaturalLanguage: req.NaturalLanguage,
		IntentLabel:     it.Label,
		Confidence:      it.Confidence,
		Status:          types.StatusPending,
		CreatedAt:       start.UTC(),
		Metadata: types.QueryMetadata{
			Entities:   it.Entities,
			Timeframe:  it.Timeframe,
			Metrics:    it.Metrics,
			Dimensions: it.Dimensions,
		},
	}

	if it.Confidence < e.cfg.MinConfidence {
		eerr := &Error{
			Kind:        KindIntentLowConfidence,
			Message:     "could not understand the query, try rephrasing",
			Suggestions: it.Suggestions,
		}
		e.persistFailed(ctx, record, eerr.Message)
		e.emitError(ctx, stream, pipeline.StepIntentDetection, eerr)
		return nil, eerr
	}
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepIntentDetection,
		"Intent detected: "+it.Label, 20, it)); eerr != nil {
		return nil, eerr
	}
	if eerr := e.cancelled(ctx, record); eerr != nil {
		e.emitError(ctx, stream, pipeline.StepIntentDetection, eerr)
		return nil, eerr
	}

	e.saveRecord(ctx, record)

	// Cache.
	fingerprint := Fingerprint(tenant, ds.ID, req.NaturalLanguage)
	if req.UseCache {
		if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepCacheCheck, "Checking result cache", 30, nil)); eerr != nil {
			return nil, eerr
		}
		if payload, ok := e.cache.Get(fingerprint); ok {
			return e.finishCached(ctx, stream, req, record, ds, it, payload, start)
		}
		// A similar completed query may have cached the same answer
		// under its own fingerprint.
		if similar, err := e.history.Store().FindSimilar(ctx, req.NaturalLanguage, tenant, ds.ID, 5); err == nil && len(similar) > 0 {
			for _, rec := range similar {
				fp := Fingerprint(tenant, ds.ID, rec.NaturalLanguage)
				if fp == fingerprint {
					continue
				}
				if payload, ok := e.cache.Get(fp); ok {
					record.Metadata.Extra = map[string]string{"similar_query_id": rec.ID}
					return e.finishCached(ctx, stream, req, record, ds, it, payload, start)
				}
			}
			record.Metadata.Extra = map[string]string{"similar_query_id": similar[0].ID}
		}
	}

	// Schema.
	sc, err := e.schemas.GetSchema(ctx, *ds)
	if err != nil {
		eerr := newError(KindExecutionFailed, "schema unavailable", err)
		e.persistFailed(ctx, record, eerr.Message)
		e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
		return nil, eerr
	}

	// Generation.
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepSQLGeneration, "Generating SQL", 40, nil)); eerr != nil {
		return nil, eerr
	}
	gen, err := e.generator.Generate(ctx, req.NaturalLanguage, *it, *ds, sc)
	if err != nil {
		if eerr := e.cancelled(ctx, record); eerr != nil {
			e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
			return nil, eerr
		}
		eerr := newError(KindSQLGenerationFailed, "failed to generate SQL", err)
		e.persistFailed(ctx, record, eerr.Message)
		e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
		return nil, eerr
	}
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepSQLGeneration,
		"SQL generated", 60, map[string]any{"explanation": gen.Explanation})); eerr != nil {
		return nil, eerr
	}

	// Validation.
	formatted, err := sqlcheck.New(ds.Kind.Dialect()).ValidateAndFormat(gen.SQL)
	if err != nil {
		var unsafeErr *sqlcheck.UnsafeError
		kind := KindSQLGenerationFailed
		message := "model produced invalid SQL"
		if errors.As(err, &unsafeErr) {
			kind = KindUnsafeSQL
			message = "model produced a forbidden statement"
		}
		eerr := newError(kind, message, err)
		e.persistFailed(ctx, record, eerr.Message)
		e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
		return nil, eerr
	}
	record.GeneratedSQL = formatted

	// Execution.
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepSQLExecution, "Executing query", 70, nil)); eerr != nil {
		return nil, eerr
	}
	timeout := e.cfg.BatchTimeout
	if req.Streaming {
		timeout = e.cfg.StreamTimeout
	}
	opts := adapter.ExecOptions{
		Timeout: timeout,
		OnProgress: func(message string, fraction float64) {
			p := 70 + int(fraction*20)
			if p > 90 {
				p = 90
			}
			_ = e.emit(ctx, stream, pipeline.Progress(pipeline.StepSQLExecution, message, p, nil))
		},
	}
	result, err := e.adapters.Execute(ctx, formatted, *ds, opts)
	if err != nil {
		if eerr := e.cancelled(ctx, record); eerr != nil {
			e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
			return nil, eerr
		}
		eerr := newError(KindExecutionFailed, "query execution failed", err)
		e.persistFailed(ctx, record, eerr.Message)
		e.emitError(ctx, stream, pipeline.StepExecutionFailed, eerr)
		return nil, eerr
	}

	// Persistence.
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepSavingResults, "Saving results", 95, nil)); eerr != nil {
		return nil, eerr
	}
	analysis := sqlcheck.Analyze(formatted, time.Duration(result.ElapsedMs)*time.Millisecond, result.RowCount)
	record.Status = types.StatusCompleted
	record.ExecutionMs = result.ElapsedMs
	record.RowCount = result.RowCount
	record.Metadata.Columns = result.Columns
	record.Metadata.Optimizations = analysis.Suggestions
	record.Metadata.OptimizationAnalysis = &analysis
	e.saveRecord(ctx, record)

	if req.UseCache {
		if err := e.cache.Put(fingerprint, &cache.Payload{Data: result.Data, Columns: result.Columns}, e.cfg.CacheTTL); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}

	resp := &Response{
		Success:         true,
		Data:            result.Data,
		Columns:         result.Columns,
		RowCount:        result.RowCount,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Intent:          it,
		Optimizations:   analysis.Suggestions,
		QueryID:         record.ID,
		DataSourceType:  ds.Kind,
	}
	if req.Explain {
		resp.SQL = formatted
	}
	if eerr := e.emit(ctx, stream, pipeline.Result(resp)); eerr != nil {
		return nil, eerr
	}
	return resp, nil
}

func (e *Engine) finishCached(ctx context.Context, stream *pipeline.Stream, req Request, record *types.QueryRecord, ds *types.DataSource, it *types.Intent, payload *cache.Payload, start time.Time) (*Response, *Error) {
	if eerr := e.emit(ctx, stream, pipeline.Progress(pipeline.StepCacheHit, "Returning cached result", 90, nil)); eerr != nil {
		return nil, eerr
	}
	record.Status = types.StatusCompleted
	record.GeneratedSQL = cachedSQLMarker
	record.RowCount = len(payload.Data)
	record.Metadata.Columns = payload.Columns
	e.saveRecord(ctx, record)

	resp := &Response{
		Success:         true,
		Data:            payload.Data,
		Columns:         payload.Columns,
		RowCount:        len(payload.Data),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Cached:          true,
		Intent:          it,
		QueryID:         record.ID,
		DataSourceType:  ds.Kind,
	}
	if eerr := e.emit(ctx, stream, pipeline.Result(resp)); eerr != nil {
		return nil, eerr
	}
	return resp, nil
}

// cancelled maps context expiry to the terminal Cancelled error and
// persists the failed record.
func (e *Engine) cancelled(ctx context.Context, record *types.QueryRecord) *Error {
	if ctx.Err() == nil {
		return nil
	}
	eerr := newError(KindCancelled, "cancelled", ctx.Err())
	e.persistFailed(ctx, record, "cancelled")
	return eerr
}

// saveRecord persists best-effort; history failures never fail the
// query.
func (e *Engine) saveRecord(ctx context.Context, record *types.QueryRecord) {
	if err := e.history.Store().Save(ctx, record); err != nil {
		log.Warn("failed to persist query record",
			zap.String("query_id", record.ID), zap.Error(err))
	}
}

// persistFailed writes the failed record even when the caller's
// context is already done.
func (e *Engine) persistFailed(ctx context.Context, record *types.QueryRecord, message string) {
	record.Status = types.StatusFailed
	record.ErrorMessage = message
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	e.saveRecord(ctx, record)
}

func (e *Engine) emitError(ctx context.Context, stream *pipeline.Stream, step string, eerr *Error) {
	if stream == nil {
		return
	}
	event := pipeline.ErrorEvent(step, eerr.Message, string(eerr.Kind))
	if len(eerr.Suggestions) > 0 {
		event.Data = map[string]any{"suggestions": eerr.Suggestions}
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
	}
	_ = stream.Emit(ctx, event)
}
