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

package schema

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weft/pkg/types"
)

type countingIntrospector struct {
	calls  atomic.Int64
	schema *types.Schema
}

func (c *countingIntrospector) Introspect(_ context.Context, _ types.DataSource) (*types.Schema, error) {
	c.calls.Add(1)
	return c.schema, nil
}

func testSchema() *types.Schema {
	return &types.Schema{
		Tables: []types.Table{
			{
				Name: "orders",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "total", Type: "numeric"},
				},
				SampleRows: []map[string]any{{"id": 1, "total": 9.5}},
			},
			{
				Name: "customers",
				Columns: []types.Column{
					{Name: "id", Type: "bigint"},
					{Name: "name", Type: "text", Nullable: true},
				},
			},
		},
		Relationships: []types.Relationship{
			{FromColumn: "orders.customer_id", ToColumn: "customers.id"},
		},
	}
}

func TestGetSchemaMemoised(t *testing.T) {
	intro := &countingIntrospector{schema: testSchema()}
	reg := NewRegistry(intro)
	ds := types.DataSource{
		ID:           "ds-1",
		Kind:         types.KindPostgres,
		LastSyncedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	for i := 0; i < 5; i++ {
		got, err := reg.GetSchema(context.Background(), ds)
		require.NoError(t, err)
		assert.Len(t, got.Tables, 2)
	}
	assert.Equal(t, int64(1), intro.calls.Load())

	// Changing LastSyncedAt is a new key and refetches.
	ds.LastSyncedAt = ds.LastSyncedAt.Add(time.Hour)
	_, err := reg.GetSchema(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), intro.calls.Load())
}

func TestGetSchemaConcurrentMissesDeduplicated(t *testing.T) {
	intro := &countingIntrospector{schema: testSchema()}
	reg := NewRegistry(intro)
	ds := types.DataSource{ID: "ds-1", Kind: types.KindPostgres}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.GetSchema(context.Background(), ds)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), intro.calls.Load())
}

func TestGetSchemaBuiltinAndHint(t *testing.T) {
	reg := NewRegistry(nil)

	for _, kind := range []types.SourceKind{types.KindEcommerceOrders, types.KindPayments, types.KindAccounting} {
		got, err := reg.GetSchema(context.Background(), types.DataSource{ID: "s-" + string(kind), Kind: kind})
		require.NoError(t, err, "kind %s", kind)
		assert.NotEmpty(t, got.Tables, "kind %s", kind)
	}

	hint := testSchema()
	got, err := reg.GetSchema(context.Background(), types.DataSource{ID: "csv-1", Kind: types.KindCSV, SchemaHint: hint})
	require.NoError(t, err)
	assert.Equal(t, hint, got)

	_, err = reg.GetSchema(context.Background(), types.DataSource{ID: "csv-2", Kind: types.KindCSV})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInvalidate(t *testing.T) {
	intro := &countingIntrospector{schema: testSchema()}
	reg := NewRegistry(intro)
	ds := types.DataSource{ID: "ds-1", Kind: types.KindPostgres}

	_, err := reg.GetSchema(context.Background(), ds)
	require.NoError(t, err)
	reg.Invalidate("ds-1")
	_, err = reg.GetSchema(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), intro.calls.Load())
}

func TestSerialize(t *testing.T) {
	text := Serialize(testSchema())
	assert.Contains(t, text, "Table orders:")
	assert.Contains(t, text, "  id bigint")
	assert.Contains(t, text, "  name text nullable")
	assert.Contains(t, text, "orders.customer_id -> customers.id")
	assert.Contains(t, text, "sample rows:")
}

func TestTruncateDropsDetailInOrder(t *testing.T) {
	s := testSchema()

	full := Truncate(s, func(string) bool { return true })
	assert.Contains(t, full, "sample rows:")

	noSamples := Truncate(s, func(text string) bool {
		return !strings.Contains(text, "sample rows:")
	})
	assert.NotContains(t, noSamples, "sample rows:")
	assert.Contains(t, noSamples, "Relationships:")

	oneTable := Truncate(s, func(text string) bool {
		return strings.Count(text, "Table ") <= 1
	})
	assert.Contains(t, oneTable, "Table orders:")
	assert.NotContains(t, oneTable, "Table customers:")
}
