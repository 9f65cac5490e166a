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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weft/pkg/types"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvSource(path string) types.DataSource {
	return types.DataSource{
		ID:         "csv-1",
		Kind:       types.KindCSV,
		Connection: map[string]string{"path": path},
	}
}

func TestCSVExecute(t *testing.T) {
	path := writeTempCSV(t, "Region,Amount,Note\neast,100,first\nwest,250.5,second\neast,75,\n")
	a := NewCSV()
	defer func() { _ = a.Close() }()

	result, err := a.Execute(context.Background(),
		"SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY total DESC",
		csvSource(path), ExecOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "total"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "west", result.Data[0]["region"])
	assert.Equal(t, "east", result.Data[1]["region"])
	assert.InDelta(t, 175.0, result.Data[1]["total"], 0.001)
}

func TestCSVIntrospect(t *testing.T) {
	path := writeTempCSV(t, "Region,Amount\neast,100\n")
	a := NewCSV()
	defer func() { _ = a.Close() }()

	schema, err := a.Introspect(context.Background(), csvSource(path))
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "sales", schema.Tables[0].Name)
	assert.Equal(t, "region", schema.Tables[0].Columns[0].Name)
	assert.NotEmpty(t, schema.Tables[0].SampleRows)
}

func TestCSVStagedImageInvalidatedOnChange(t *testing.T) {
	path := writeTempCSV(t, "region,amount\neast,100\n")
	a := NewCSV()
	defer func() { _ = a.Close() }()

	ds := csvSource(path)
	result, err := a.Execute(context.Background(), "SELECT COUNT(*) AS n FROM sales", ds, ExecOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Data[0]["n"])

	// Bypass fsnotify timing and drop the image directly.
	require.NoError(t, os.WriteFile(path, []byte("region,amount\neast,100\nwest,200\n"), 0o644))
	a.stager.invalidate(path)

	result, err = a.Execute(context.Background(), "SELECT COUNT(*) AS n FROM sales", ds, ExecOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Data[0]["n"])
}

func TestInferColumnTypes(t *testing.T) {
	colTypes := inferColumnTypes([][]string{
		{"1", "1.5", "abc", ""},
		{"2", "7", "2x", "9"},
		{"", "0.1", "z", ""},
	}, 4)
	assert.Equal(t, []string{"INTEGER", "REAL", "TEXT", "INTEGER"}, colTypes)
}

func TestSanitizeIdent(t *testing.T) {
	assert.Equal(t, "order_total", sanitizeIdent("Order Total"))
	assert.Equal(t, "q1_sales", sanitizeIdent(" Q1-Sales "))
	assert.Equal(t, "amount", sanitizeIdent("amount ($)"))
}

func TestRegistryDispatch(t *testing.T) {
	r := NewDefaultRegistry()
	defer func() { _ = r.Close() }()

	for _, kind := range []types.SourceKind{
		types.KindPostgres, types.KindMySQL, types.KindCSV, types.KindSpreadsheet,
		types.KindEcommerceOrders, types.KindPayments, types.KindAccounting,
	} {
		a, err := r.For(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, a.Kind())
	}

	_, err := r.For(types.SourceKind("bogus"))
	require.Error(t, err)
}
