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

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weft/pkg/types"
)

func TestParseRestrictedSelect(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
		check   func(t *testing.T, q *restrictedSelect)
	}{
		{
			name: "star with limit",
			sql:  "SELECT * FROM charges LIMIT 5;",
			check: func(t *testing.T, q *restrictedSelect) {
				assert.Empty(t, q.columns)
				assert.Equal(t, "charges", q.table)
				assert.Equal(t, 5, q.limit)
			},
		},
		{
			name: "columns filters order",
			sql:  "SELECT id, amount FROM charges WHERE status = 'succeeded' AND amount >= 1000 ORDER BY amount DESC LIMIT 10",
			check: func(t *testing.T, q *restrictedSelect) {
				assert.Equal(t, []string{"id", "amount"}, q.columns)
				require.Len(t, q.filters, 2)
				assert.Equal(t, filter{column: "status", op: "=", value: "succeeded"}, q.filters[0])
				assert.Equal(t, filter{column: "amount", op: ">=", value: float64(1000)}, q.filters[1])
				assert.Equal(t, "amount", q.orderBy)
				assert.True(t, q.orderDesc)
			},
		},
		{
			name: "like filter",
			sql:  "SELECT id FROM customers WHERE email LIKE '%@example.com'",
			check: func(t *testing.T, q *restrictedSelect) {
				require.Len(t, q.filters, 1)
				assert.Equal(t, "LIKE", q.filters[0].op)
				assert.Equal(t, "%@example.com", q.filters[0].value)
			},
		},
		{
			name: "boolean literal",
			sql:  "SELECT id FROM charges WHERE refunded = false",
			check: func(t *testing.T, q *restrictedSelect) {
				assert.Equal(t, false, q.filters[0].value)
			},
		},
		{name: "join unsupported", sql: "SELECT c.id FROM charges c JOIN refunds r ON r.charge_id = c.id", wantErr: true},
		{name: "group by unsupported", sql: "SELECT status FROM charges GROUP BY status", wantErr: true},
		{name: "subquery unsupported", sql: "SELECT id FROM charges WHERE amount > (SELECT 1)", wantErr: true},
		{name: "or unsupported", sql: "SELECT id FROM charges WHERE paid = true OR refunded = true", wantErr: true},
		{name: "not a select", sql: "SHOW TABLES", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseRestrictedSelect(tt.sql)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, q)
		})
	}
}

func TestSaaSExecute(t *testing.T) {
	rows := []map[string]any{
		{"id": "ch_1", "customer_id": "cu_1", "amount": 2500, "amount_refunded": 0, "currency": "usd", "status": "succeeded", "paid": true, "refunded": false, "created_at": "2026-08-01T00:00:00Z"},
		{"id": "ch_2", "customer_id": "cu_2", "amount": 900, "amount_refunded": 0, "currency": "usd", "status": "succeeded", "paid": true, "refunded": false, "created_at": "2026-08-02T00:00:00Z"},
		{"id": "ch_3", "customer_id": "cu_1", "amount": 4200, "amount_refunded": 4200, "currency": "usd", "status": "failed", "paid": false, "refunded": true, "created_at": "2026-08-03T00:00:00Z"},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": rows})
	}))
	defer server.Close()

	a := NewSaaS(types.KindPayments)
	ds := types.DataSource{
		ID:   "pay-1",
		Kind: types.KindPayments,
		Connection: map[string]string{
			"endpoint": server.URL,
			"api_key":  "sk-test",
		},
	}

	var progressCalls int
	result, err := a.Execute(context.Background(),
		"SELECT id, amount FROM charges WHERE status = 'succeeded' ORDER BY amount DESC LIMIT 10",
		ds, ExecOptions{OnProgress: func(string, float64) { progressCalls++ }})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "amount"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "ch_1", result.Data[0]["id"])
	assert.Equal(t, "ch_2", result.Data[1]["id"])
	assert.Greater(t, progressCalls, 0)
}

func TestSaaSExecuteUnsupportedShape(t *testing.T) {
	a := NewSaaS(types.KindPayments)
	_, err := a.Execute(context.Background(),
		"SELECT status, COUNT(*) FROM charges GROUP BY status",
		types.DataSource{Kind: types.KindPayments}, ExecOptions{})
	require.Error(t, err)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "unsupported SQL shape", aerr.Cause)
}

func TestSaaSExecuteUnknownColumn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	a := NewSaaS(types.KindPayments)
	ds := types.DataSource{Kind: types.KindPayments, Connection: map[string]string{"endpoint": server.URL}}
	_, err := a.Execute(context.Background(), "SELECT nonexistent FROM charges", ds, ExecOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestLikeMatch(t *testing.T) {
	assert.True(t, likeMatch("alice@example.com", "%@example.com"))
	assert.True(t, likeMatch("alice@example.com", "alice%"))
	assert.True(t, likeMatch("alice@example.com", "%example%"))
	assert.True(t, likeMatch("Alice", "alice"))
	assert.False(t, likeMatch("alice@example.org", "%@example.com"))
}
