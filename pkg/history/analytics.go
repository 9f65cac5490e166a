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

package history

import (
	"context"
	"sort"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
)

// analyticsScanLimit caps how many records one report reads.
const analyticsScanLimit = 10000

// Latency bucket labels.
const (
	LatencyFast   = "<1s"
	LatencyMedium = "1-5s"
	LatencySlow   = ">5s"
)

// Analytics summarises query activity over a window.
type Analytics struct {
	Window         Window         `json:"window"`
	TotalQueries   int            `json:"total_queries"`
	Completed      int            `json:"completed"`
	Failed         int            `json:"failed"`
	SuccessRate    float64        `json:"success_rate"`
	AvgExecutionMs float64        `json:"avg_execution_ms"`
	ByIntent       map[string]int `json:"by_intent"`
	ByDataSource   map[string]int `json:"by_data_source"`
	ByDay          map[string]int `json:"by_day"`
	LatencyBuckets map[string]int `json:"latency_buckets"`
}

// SuggestionCount is one optimization suggestion and how often it
// fired.
type SuggestionCount struct {
	Suggestion string `json:"suggestion"`
	Count      int    `json:"count"`
}

// OptimizationReport aggregates per-query SQL analyses.
type OptimizationReport struct {
	Window          Window            `json:"window"`
	QueriesAnalyzed int               `json:"queries_analyzed"`
	AverageScore    float64           `json:"average_score"`
	Categories      map[string]int    `json:"categories"`
	TopSuggestions  []SuggestionCount `json:"top_suggestions"`
}

// Manager layers reporting over a Store.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Store exposes the underlying store.
func (m *Manager) Store() Store { return m.store }

func (m *Manager) windowRecords(ctx context.Context, tenant string, window Window) ([]*types.QueryRecord, error) {
	d, err := window.Duration()
	if err != nil {
		return nil, err
	}
	return m.store.List(ctx, tenant,
		Filters{From: m.now().Add(-d)},
		Page{Limit: analyticsScanLimit})
}

// Analytics computes the activity summary for a tenant and window.
func (m *Manager) Analytics(ctx context.Context, tenant string, window Window) (*Analytics, error) {
	records, err := m.windowRecords(ctx, tenant, window)
	if err != nil {
		return nil, err
	}

	a := &Analytics{
		Window:         window,
		ByIntent:       map[string]int{},
		ByDataSource:   map[string]int{},
		ByDay:          map[string]int{},
		LatencyBuckets: map[string]int{LatencyFast: 0, LatencyMedium: 0, LatencySlow: 0},
	}
	var totalMs int64
	for _, r := range records {
		a.TotalQueries++
		if r.IntentLabel != "" {
			a.ByIntent[r.IntentLabel]++
		}
		a.ByDataSource[r.DataSourceID]++
		a.ByDay[r.CreatedAt.UTC().Format("2006-01-02")]++

		switch r.Status {
		case types.StatusCompleted:
			a.Completed++
			totalMs += r.ExecutionMs
			switch {
			case r.ExecutionMs < 1000:
				a.LatencyBuckets[LatencyFast]++
			case r.ExecutionMs <= 5000:
				a.LatencyBuckets[LatencyMedium]++
			default:
				a.LatencyBuckets[LatencySlow]++
			}
		case types.StatusFailed:
			a.Failed++
		}
	}
	if finished := a.Completed + a.Failed; finished > 0 {
		a.SuccessRate = float64(a.Completed) / float64(finished)
	}
	if a.Completed > 0 {
		a.AvgExecutionMs = float64(totalMs) / float64(a.Completed)
	}
	return a, nil
}

// OptimizationReport aggregates the stored per-query SQL analyses for
// a tenant and window.
func (m *Manager) OptimizationReport(ctx context.Context, tenant string, window Window) (*OptimizationReport, error) {
	records, err := m.windowRecords(ctx, tenant, window)
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		Window:     window,
		Categories: map[string]int{},
	}
	suggestions := map[string]int{}
	var totalScore int
	for _, r := range records {
		analysis := r.Metadata.OptimizationAnalysis
		if analysis == nil {
			continue
		}
		report.QueriesAnalyzed++
		totalScore += analysis.Score
		report.Categories[analysis.Category]++
		for _, s := range analysis.Suggestions {
			suggestions[s]++
		}
	}
	if report.QueriesAnalyzed > 0 {
		report.AverageScore = float64(totalScore) / float64(report.QueriesAnalyzed)
	}

	for s, n := range suggestions {
		report.TopSuggestions = append(report.TopSuggestions, SuggestionCount{Suggestion: s, Count: n})
	}
	sort.Slice(report.TopSuggestions, func(i, j int) bool {
		if report.TopSuggestions[i].Count != report.TopSuggestions[j].Count {
			return report.TopSuggestions[i].Count > report.TopSuggestions[j].Count
		}
		return report.TopSuggestions[i].Suggestion < report.TopSuggestions[j].Suggestion
	})
	if len(report.TopSuggestions) > 10 {
		report.TopSuggestions = report.TopSuggestions[:10]
	}
	return report, nil
}
