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
package sqlcheck

import (
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
)

// Analyze scores SQL text for advisory optimization hints. Execution
// time and row count add suggestions but do not move the score; the
// score reflects the query text alone so it is stable across runs.
func Analyze(sql string, execTime time.Duration, rowCount int) types.OptimizationAnalysis {
	score := 100
	var suggestions []string

	toks, err := lex(sql)
	if err != nil {
		// Unlexable SQL never reaches execution; score it neutrally.
		return types.OptimizationAnalysis{Score: score, Category: category(score)}
	}

	var hasStar, hasLimit, hasOrderBy, hasWildcardPrefix bool
	for i, t := range toks {
		switch t.kind {
		case tokPunct:
			if t.text == "*" && i > 0 && toks[i-1].upper() == "SELECT" {
				hasStar = true
			}
		case tokWord:
			switch t.upper() {
			case "LIMIT", "TOP", "FETCH":
				hasLimit = true
			case "ORDER":
				hasOrderBy = true
			}
		case tokString:
			if i > 0 {
				prev := toks[i-1].upper()
				if (prev == "LIKE" || prev == "ILIKE") && strings.HasPrefix(strings.TrimPrefix(t.text, "'"), "%") {
					hasWildcardPrefix = true
				}
			}
		}
	}

	if hasStar {
		score -= 20
		suggestions = append(suggestions, "Select only the columns you need instead of SELECT *")
	}
	if hasWildcardPrefix {
		score -= 15
		suggestions = append(suggestions, "Leading-wildcard LIKE patterns cannot use indexes; anchor the pattern or use full-text search")
	}
	if !hasLimit {
		score -= 25
		suggestions = append(suggestions, "Add a LIMIT clause to bound the result set")
	}
	if hasOrderBy && !hasLimit {
		score -= 10
		suggestions = append(suggestions, "ORDER BY without LIMIT sorts the entire result; add a LIMIT")
	}

	if execTime > 5*time.Second {
		suggestions = append(suggestions, fmt.Sprintf("Query took %s; consider adding indexes on filtered columns", execTime.Round(time.Millisecond)))
	}
	if rowCount > 10000 {
		suggestions = append(suggestions, fmt.Sprintf("Query returned %d rows; consider aggregating or paginating", rowCount))
	}

	return types.OptimizationAnalysis{
		Score:       score,
		Category:    category(score),
		Suggestions: suggestions,
	}
}

func category(score int) string {
	switch {
	case score >= 80:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 40:
		return "fair"
	default:
		return "poor"
	}
}
