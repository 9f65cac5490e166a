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

// Package intent classifies natural-language analytical questions into
// an intent label with confidence and structured slots (entities,
// timeframe, metrics, dimensions). Classification is rule-based and
// deterministic for identical input within a process; results are
// memoized in a bounded cache.
package intent

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Intent labels produced by the classifier.
const (
	LabelAggregation = "aggregation"
	LabelRanking     = "ranking"
	LabelTrend       = "trend"
	LabelComparison  = "comparison"
	LabelFilter      = "filter"
	LabelLookup      = "lookup"
	LabelSchema      = "schema_exploration"
	LabelUnknown     = "unknown"
)

// MinConfidence is the default threshold below which the pipeline
// rejects a query as uninterpretable.
const MinConfidence = 0.30

// Config configures the classifier.
type Config struct {
	// CacheSize bounds the classification cache (default 5000).
	CacheSize int
	// CacheTTL expires cached classifications (default 15 minutes).
	CacheTTL time.Duration
}

// Classifier is a deterministic rule-based intent classifier.
// Safe for concurrent use.
type Classifier struct {
	mu    sync.Mutex
	cache map[string]cachedIntent
	size  int
	ttl   time.Duration

	// now anchors relative timeframes for the classifier's lifetime,
	// so re-classification after cache expiry repeats the first result.
	now time.Time
}

type cachedIntent struct {
	intent  Result
	expires time.Time
}

// Result is the classified intent. It mirrors types.Intent but is
// produced here to keep this package dependency-free; the engine maps
// it onto the shared type.
type Result struct {
	Label       string
	Confidence  float64
	Entities    map[string]string
	Timeframe   *Timeframe
	Metrics     []string
	Dimensions  []string
	Suggestions []string
}

// Timeframe is the extracted time bound of a query.
type Timeframe struct {
	From        time.Time
	To          time.Time
	Granularity string
}

// New creates a classifier.
func New(cfg Config) *Classifier {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 5000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	return &Classifier{
		cache: make(map[string]cachedIntent),
		size:  cfg.CacheSize,
		ttl:   cfg.CacheTTL,
		now:   time.Now().UTC(),
	}
}

// Classify produces the intent for text. Identical input yields an
// identical result for the lifetime of the process.
func (c *Classifier) Classify(text string) Result {
	key := strings.TrimSpace(text)

	c.mu.Lock()
	if hit, ok := c.cache[key]; ok && time.Now().Before(hit.expires) {
		c.mu.Unlock()
		return hit.intent
	}
	c.mu.Unlock()

	res := classify(key, c.now)

	c.mu.Lock()
	if len(c.cache) >= c.size {
		// full reset is cheaper than LRU bookkeeping at this size
		c.cache = make(map[string]cachedIntent)
	}
	c.cache[key] = cachedIntent{intent: res, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return res
}

var labelSignals = map[string][]string{
	LabelRanking:     {"top", "bottom", "best", "worst", "highest", "lowest", "largest", "smallest", "rank", "most", "least"},
	LabelTrend:       {"trend", "over time", "growth", "monthly", "weekly", "daily", "yearly", "per month", "per week", "per day", "change"},
	LabelComparison:  {"compare", "versus", " vs ", "vs.", "difference between", "compared to"},
	LabelAggregation: {"total", "sum", "average", "avg", "count", "how many", "how much", "number of", "mean", "median", "percentage"},
	LabelSchema:      {"tables", "columns", "schema", "structure", "fields", "describe"},
	LabelFilter:      {"where", "only", "filter", "with status", "excluding", "except", "between"},
	LabelLookup:      {"show", "list", "get", "find", "display", "what is", "which"},
}

// labelOrder fixes evaluation priority: stronger signals win ties.
var labelOrder = []string{
	LabelRanking, LabelTrend, LabelComparison, LabelAggregation,
	LabelSchema, LabelFilter, LabelLookup,
}

func classify(original string, now time.Time) Result {
	res := Result{
		Label:    LabelUnknown,
		Entities: map[string]string{},
	}

	text := strings.ToLower(original)
	words := tokenize(text)

	bestLabel, bestHits := LabelUnknown, 0
	for _, label := range labelOrder {
		hits := 0
		for _, sig := range labelSignals[label] {
			if strings.Contains(text, sig) {
				hits++
			}
		}
		if hits > bestHits {
			bestLabel, bestHits = label, hits
		}
	}

	if len(words) == 0 || !looksInterpretable(words, bestHits) {
		res.Confidence = 0.1
		res.Suggestions = []string{
			"Try asking about a specific metric, e.g. \"total revenue last month\"",
			"Name the records you care about, e.g. \"top 10 customers by order count\"",
			"Add a timeframe, e.g. \"new signups this quarter\"",
		}
		return res
	}

	res.Label = bestLabel
	switch {
	case bestHits >= 3:
		res.Confidence = 0.95
	case bestHits == 2:
		res.Confidence = 0.85
	case bestHits == 1:
		res.Confidence = 0.7
	default:
		res.Label = LabelLookup
		res.Confidence = 0.45
	}

	res.Metrics = extractMetrics(text)
	res.Dimensions = extractDimensions(text)
	res.Timeframe = extractTimeframe(text, now)
	res.Entities = extractEntities(original, text)
	return res
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// looksInterpretable rejects keyboard mash: a query is interpretable
// only if it contains a common English word or matched an intent
// signal.
func looksInterpretable(words []string, signalHits int) bool {
	if signalHits > 0 {
		return true
	}
	for _, w := range words {
		if commonWords[w] {
			return true
		}
	}
	return false
}

// commonWords anchors interpretability: any query containing one of
// these is considered English-like enough to classify.
var commonWords = map[string]bool{
	"show": true, "give": true, "tell": true, "what": true, "when": true,
	"where": true, "how": true, "the": true, "a": true, "of": true,
	"in": true, "by": true, "for": true, "top": true, "total": true,
	"sum": true, "count": true, "average": true, "list": true, "all": true,
	"me": true, "my": true, "last": true, "this": true, "per": true,
	"and": true, "or": true, "with": true, "from": true, "to": true,
	"find": true, "get": true, "many": true, "much": true, "revenue": true,
	"sales": true, "orders": true, "customers": true, "best": true,
	"most": true, "which": true, "compare": true, "trend": true,
	"number": true, "is": true, "are": true, "year": true, "month": true,
	"week": true, "day": true, "new": true, "each": true,
}

var metricWords = []string{
	"revenue", "sales", "profit", "income", "spend", "cost", "amount",
	"total", "count", "average", "price", "quantity", "orders", "signups",
	"visits", "refunds", "balance", "margin",
}

func extractMetrics(text string) []string {
	var out []string
	for _, m := range metricWords {
		if containsWord(text, m) {
			out = append(out, m)
		}
	}
	return out
}

var dimensionRe = regexp.MustCompile(`\bby ([a-z_]+)`)
var perRe = regexp.MustCompile(`\bper ([a-z_]+)`)

func extractDimensions(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, re := range []*regexp.Regexp{dimensionRe, perRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d := m[1]
			if seen[d] || timeUnits[strings.TrimSuffix(d, "s")] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

var timeUnits = map[string]bool{
	"day": true, "week": true, "month": true, "quarter": true, "year": true, "hour": true,
}

var lastNRe = regexp.MustCompile(`\blast (\d+) (day|week|month|quarter|year)s?\b`)
var lastOneRe = regexp.MustCompile(`\blast (day|week|month|quarter|year)\b`)
var thisRe = regexp.MustCompile(`\bthis (day|week|month|quarter|year)\b`)
var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func extractTimeframe(text string, now time.Time) *Timeframe {
	if m := lastNRe.FindStringSubmatch(text); m != nil {
		n := 0
		for _, r := range m[1] {
			n = n*10 + int(r-'0')
		}
		return &Timeframe{From: addUnits(now, m[2], -n), To: now, Granularity: m[2]}
	}
	if m := lastOneRe.FindStringSubmatch(text); m != nil {
		return &Timeframe{From: addUnits(now, m[1], -1), To: now, Granularity: m[1]}
	}
	if m := thisRe.FindStringSubmatch(text); m != nil {
		return &Timeframe{From: truncateTo(now, m[1]), To: now, Granularity: m[1]}
	}
	if m := yearRe.FindString(text); m != "" {
		y := 0
		for _, r := range m {
			y = y*10 + int(r-'0')
		}
		from := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return &Timeframe{From: from, To: from.AddDate(1, 0, 0), Granularity: "year"}
	}
	return nil
}

func addUnits(t time.Time, unit string, n int) time.Time {
	switch unit {
	case "day":
		return t.AddDate(0, 0, n)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	case "quarter":
		return t.AddDate(0, 3*n, 0)
	case "year":
		return t.AddDate(n, 0, 0)
	}
	return t
}

func truncateTo(t time.Time, unit string) time.Time {
	switch unit {
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		d := int(t.Weekday())
		return time.Date(t.Year(), t.Month(), t.Day()-d, 0, 0, 0, 0, time.UTC)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "quarter":
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

var quotedRe = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var numberRe = regexp.MustCompile(`\b\d+(\.\d+)?\b`)

// extractEntities pulls quoted names from the original (case-kept)
// text and numeric slots from the lowercased text.
func extractEntities(original, text string) map[string]string {
	entities := map[string]string{}
	for i, m := range quotedRe.FindAllStringSubmatch(original, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		key := "entity"
		if i > 0 {
			key = key + "_" + string(rune('0'+i))
		}
		entities[key] = v
	}
	if m := lastNRe.FindStringSubmatch(text); m != nil {
		entities["window"] = m[1] + " " + m[2] + "s"
	} else if m := numberRe.FindString(text); m != "" && !yearRe.MatchString(m) {
		entities["limit"] = m
	}
	return entities
}

func containsWord(text, w string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], w)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(text[i-1])
		afterIdx := i + len(w)
		after := afterIdx >= len(text) || !isAlnum(text[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(w)
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z')
}
