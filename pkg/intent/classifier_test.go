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
package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLabels(t *testing.T) {
	c := New(Config{})

	tests := []struct {
		text  string
		label string
	}{
		{"Top 10 customers by revenue", LabelRanking},
		{"Show me the sales trend over time", LabelTrend},
		{"Compare revenue this year versus last year", LabelComparison},
		{"What is the total revenue last month", LabelAggregation},
		{"What tables are in this database", LabelSchema},
		{"List orders with status shipped only", LabelFilter},
		{"Show recent orders", LabelLookup},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := c.Classify(tt.text)
			assert.Equal(t, tt.label, res.Label)
			assert.GreaterOrEqual(t, res.Confidence, MinConfidence)
		})
	}
}

func TestClassifyUninterpretable(t *testing.T) {
	c := New(Config{})

	for _, text := range []string{"asdf qwerty", "zzz", "xkcd plq"} {
		res := c.Classify(text)
		assert.Equal(t, LabelUnknown, res.Label, text)
		assert.Less(t, res.Confidence, MinConfidence, text)
		assert.NotEmpty(t, res.Suggestions, text)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(Config{})

	first := c.Classify("Top 10 customers by revenue")
	second := c.Classify("Top 10 customers by revenue")
	assert.Equal(t, first, second)
}

func TestClassifyDeterministicAcrossCacheExpiry(t *testing.T) {
	c := New(Config{CacheTTL: time.Nanosecond})

	first := c.Classify("What is the total revenue last month")
	time.Sleep(time.Millisecond)
	second := c.Classify("What is the total revenue last month")

	assert.Equal(t, first, second)
	require.NotNil(t, second.Timeframe)
	assert.Equal(t, first.Timeframe.From, second.Timeframe.From)
	assert.Equal(t, first.Timeframe.To, second.Timeframe.To)
}

func TestExtractSlots(t *testing.T) {
	c := New(Config{})

	res := c.Classify(`Top 5 products by category for "Acme Corp" last 30 days`)
	assert.Equal(t, LabelRanking, res.Label)
	assert.Contains(t, res.Dimensions, "category")
	assert.Equal(t, "Acme Corp", res.Entities["entity"])
	require.NotNil(t, res.Timeframe)
	assert.Equal(t, "day", res.Timeframe.Granularity)
}

func TestExtractTimeframe(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		text        string
		granularity string
		from        time.Time
	}{
		{"revenue last 7 days", "day", now.AddDate(0, 0, -7)},
		{"revenue last month", "month", now.AddDate(0, -1, 0)},
		{"revenue this quarter", "quarter", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"revenue this year", "year", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"revenue in 2024", "year", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tf := extractTimeframe(tt.text, now)
			require.NotNil(t, tf)
			assert.Equal(t, tt.granularity, tf.Granularity)
			assert.Equal(t, tt.from, tf.From)
		})
	}

	assert.Nil(t, extractTimeframe("revenue by region", now))
}
