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

	"github.com/teradata-labs/weft/pkg/sqlcheck"
	"github.com/teradata-labs/weft/pkg/types"
)

// Explanation is the dry-run answer: the SQL that would run, with the
// reasoning behind it, but nothing executed.
type Explanation struct {
	Intent          *types.Intent `json:"intent"`
	SQL             ExplainedSQL  `json:"sql"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// ExplainedSQL describes the generated statement.
type ExplainedSQL struct {
	Query               string   `json:"query"`
	Explanation         string   `json:"explanation"`
	Optimizations       []string `json:"optimizations,omitempty"`
	EstimatedComplexity string   `json:"estimated_complexity"`
}

// ExplainQuery runs classification, schema lookup, generation and
// validation, then stops. Nothing is executed, cached or recorded.
func (e *Engine) ExplainQuery(ctx context.Context, tenant string, req Request) (*Explanation, error) {
	if eerr := e.validateRequest(req); eerr != nil {
		return nil, eerr
	}
	ds, eerr := e.resolveSource(ctx, tenant, req)
	if eerr != nil {
		return nil, eerr
	}

	it := toIntent(e.classifier.Classify(req.NaturalLanguage))
	if it.Confidence < e.cfg.MinConfidence {
		return nil, &Error{
			Kind:        KindIntentLowConfidence,
			Message:     "could not understand the query, try rephrasing",
			Suggestions: it.Suggestions,
		}
	}

	sc, err := e.schemas.GetSchema(ctx, *ds)
	if err != nil {
		return nil, newError(KindExecutionFailed, "schema unavailable", err)
	}
	gen, err := e.generator.Generate(ctx, req.NaturalLanguage, *it, *ds, sc)
	if err != nil {
		return nil, newError(KindSQLGenerationFailed, "failed to generate SQL", err)
	}
	formatted, err := sqlcheck.New(ds.Kind.Dialect()).ValidateAndFormat(gen.SQL)
	if err != nil {
		var unsafeErr *sqlcheck.UnsafeError
		if errors.As(err, &unsafeErr) {
			return nil, newError(KindUnsafeSQL, "model produced a forbidden statement", err)
		}
		return nil, newError(KindSQLGenerationFailed, "model produced invalid SQL", err)
	}

	analysis := sqlcheck.Analyze(formatted, 0, 0)
	var recommendations []string
	if similar, err := e.history.Store().FindSimilar(ctx, req.NaturalLanguage, tenant, ds.ID, 3); err == nil {
		for _, rec := range similar {
			recommendations = append(recommendations, "Similar past query: "+rec.NaturalLanguage)
		}
	}
	recommendations = append(recommendations, analysis.Suggestions...)

	return &Explanation{
		Intent: it,
		SQL: ExplainedSQL{
			Query:               formatted,
			Explanation:         gen.Explanation,
			Optimizations:       analysis.Suggestions,
			EstimatedComplexity: complexityFor(analysis.Score),
		},
		Recommendations: recommendations,
	}, nil
}

func complexityFor(score int) string {
	switch {
	case score >= 80:
		return "low"
	case score >= 60:
		return "moderate"
	default:
		return "high"
	}
}
