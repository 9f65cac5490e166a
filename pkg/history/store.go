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

// Package history persists query records and aggregates them into
// usage analytics. Every operation is tenant-scoped: a record owned by
// another tenant behaves as if it does not exist.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/teradata-labs/weft/pkg/types"
)

// ErrNotFound is returned when a record does not exist for the tenant.
var ErrNotFound = errors.New("query record not found")

// Filters narrows List results. Zero fields are ignored.
type Filters struct {
	DataSourceID string
	Status       types.QueryStatus
	Search       string // substring of the natural-language text
	From         time.Time
	To           time.Time
}

// Page bounds List results.
type Page struct {
	Limit  int // default 50
	Offset int
}

func (p Page) limit() int {
	if p.Limit <= 0 {
		return 50
	}
	return p.Limit
}

// Store persists query records.
type Store interface {
	Save(ctx context.Context, record *types.QueryRecord) error
	Get(ctx context.Context, id, tenant string) (*types.QueryRecord, error)
	List(ctx context.Context, tenant string, filters Filters, page Page) ([]*types.QueryRecord, error)
	MarkCompleted(ctx context.Context, id, tenant string, executionMs int64, rowCount int) error
	MarkFailed(ctx context.Context, id, tenant, errorMessage string) error
	UpdateFeedback(ctx context.Context, id, tenant string, feedback types.Feedback) error
	Delete(ctx context.Context, id, tenant string) error
	FindSimilar(ctx context.Context, text, tenant, dataSourceID string, k int) ([]*types.QueryRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Window is a named analytics lookback period.
type Window string

const (
	WindowDay     Window = "1d"
	WindowWeek    Window = "7d"
	WindowMonth   Window = "30d"
	WindowQuarter Window = "90d"
	WindowYear    Window = "1y"
)

// Duration returns the window length, or an error for unknown names.
func (w Window) Duration() (time.Duration, error) {
	switch w {
	case WindowDay:
		return 24 * time.Hour, nil
	case WindowWeek:
		return 7 * 24 * time.Hour, nil
	case WindowMonth:
		return 30 * 24 * time.Hour, nil
	case WindowQuarter:
		return 90 * 24 * time.Hour, nil
	case WindowYear:
		return 365 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown analytics window %q", w)
}

// similarityStopWords are filler words that never make a useful search
// keyword.
var similarityStopWords = map[string]bool{
	"show": true, "give": true, "tell": true, "what": true, "when": true,
	"where": true, "which": true, "list": true, "find": true, "with": true,
	"from": true, "that": true, "this": true, "have": true, "does": true,
}

// SearchKeyword extracts the first useful keyword from text: lowercase
// alphanumeric tokens longer than three characters, minus stop words.
// Empty result means the text has nothing to match on.
func SearchKeyword(text string) string {
	var word strings.Builder
	flush := func() string {
		w := word.String()
		word.Reset()
		if len(w) > 3 && !similarityStopWords[w] {
			return w
		}
		return ""
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
			continue
		}
		if kw := flush(); kw != "" {
			return kw
		}
	}
	return flush()
}
