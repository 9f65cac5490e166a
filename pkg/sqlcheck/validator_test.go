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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsForbiddenStatements(t *testing.T) {
	v := New("postgres")

	tests := []struct {
		name    string
		sql     string
		keyword string
	}{
		{"drop", "DROP TABLE orders", "DROP"},
		{"delete", "DELETE FROM orders WHERE id = 1", "DELETE"},
		{"insert", "INSERT INTO t VALUES (1)", "INSERT"},
		{"update", "UPDATE t SET a = 1", "UPDATE"},
		{"truncate", "TRUNCATE orders", "TRUNCATE"},
		{"create", "CREATE TABLE t (a int)", "CREATE"},
		{"alter", "ALTER TABLE t ADD COLUMN a int", "ALTER"},
		{"lowercase", "drop table orders", "DROP"},
		{"trailing statement", "SELECT 1; DROP TABLE orders", "DROP"},
		{"data-modifying cte", "WITH x AS (DELETE FROM t RETURNING id) SELECT * FROM x", "DELETE"},
		{"lock clause", "SELECT * FROM t FOR UPDATE", "UPDATE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.sql)
			var unsafe *UnsafeError
			require.ErrorAs(t, err, &unsafe)
			assert.Equal(t, tt.keyword, unsafe.Keyword)
		})
	}
}

func TestValidateAllowsReadStatements(t *testing.T) {
	v := New("postgres")

	for _, sql := range []string{
		"SELECT * FROM orders",
		"select id, total from orders where created_at > '2024-01-01' limit 10",
		"WITH recent AS (SELECT * FROM orders WHERE created_at > now() - interval '7 days') SELECT count(*) FROM recent",
		"EXPLAIN SELECT 1",
		"SHOW search_path",
		// forbidden words hidden in literals and quoted identifiers are fine
		`SELECT 'DROP TABLE orders' AS payload FROM t`,
		`SELECT "delete" FROM audit_words`,
		"SELECT * FROM t -- DROP TABLE x",
		"SELECT /* DELETE */ 1",
	} {
		assert.NoError(t, v.Validate(sql), sql)
	}
}

func TestValidateParseErrors(t *testing.T) {
	v := New("postgres")

	for _, sql := range []string{
		"",
		"   ;  ; ",
		"SELECT 'unterminated",
		`SELECT "unterminated`,
		"SELECT /* unterminated",
		"GRANT ALL ON t TO PUBLIC", // not forbidden, but not readable either
		"(SELECT 1",
	} {
		err := v.Validate(sql)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "want ParseError for %q, got %v", sql, err)
	}
}

func TestValidateAndFormatCanonicalizes(t *testing.T) {
	v := New("postgres")

	got, err := v.ValidateAndFormat("select id, sum(total) from orders where status = 'paid' group by id order by sum(total) desc limit 10")
	require.NoError(t, err)
	want := "SELECT id, SUM(total)\n" +
		"  FROM orders\n" +
		"  WHERE status = 'paid'\n" +
		"  GROUP BY id\n" +
		"  ORDER BY SUM(total) DESC\n" +
		"  LIMIT 10;"
	assert.Equal(t, want, got)
}

func TestValidateAndFormatIdempotent(t *testing.T) {
	v := New("postgres")

	inputs := []string{
		"select * from orders",
		"select a.id, b.name from a join b on a.id = b.a_id where b.name like 'x%' limit 5",
		"with t as (select 1 as n) select n from t union all select 2",
		"select count(*) from orders; select max(total) from orders",
	}
	for _, sql := range inputs {
		once, err := v.ValidateAndFormat(sql)
		require.NoError(t, err, sql)
		twice, err := v.ValidateAndFormat(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, sql)
	}
}

func TestAnalyzeHeuristics(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		score    int
		category string
	}{
		{"clean", "SELECT id FROM orders LIMIT 10", 100, "excellent"},
		{"select star", "SELECT * FROM orders LIMIT 10", 80, "excellent"},
		{"no limit", "SELECT id FROM orders", 75, "good"},
		{"star no limit", "SELECT * FROM orders", 55, "fair"},
		{"order by no limit", "SELECT id FROM orders ORDER BY id", 65, "good"},
		{"worst", "SELECT * FROM orders WHERE name LIKE '%x' ORDER BY id", 30, "poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Analyze(tt.sql, 0, 0)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.category, a.Category)
		})
	}
}

func TestAnalyzeRuntimeSuggestions(t *testing.T) {
	a := Analyze("SELECT id FROM orders LIMIT 10", 6*time.Second, 20000)
	assert.Equal(t, 100, a.Score)
	assert.Len(t, a.Suggestions, 2)
}
