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
	"encoding/csv"
	"os"

	"github.com/teradata-labs/weft/pkg/types"
)

// CSV stages a delimited file into an in-memory SQLite database and
// executes queries there.
type CSV struct {
	stager *stager
}

// NewCSV creates the CSV adapter.
func NewCSV() *CSV {
	return &CSV{stager: newStager(types.KindCSV, loadCSV)}
}

func loadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// Kind returns the source kind this adapter serves.
func (a *CSV) Kind() types.SourceKind { return types.KindCSV }

// Execute runs the statement against the staged image.
func (a *CSV) Execute(ctx context.Context, sqlText string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	staged, err := a.stager.get(ctx, ds)
	if err != nil {
		return nil, err
	}
	return runQuery(ctx, staged.db, sqlText, a.Kind(), opts)
}

// Introspect derives a single-table schema from the staged image.
func (a *CSV) Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	if ds.SchemaHint != nil {
		return ds.SchemaHint, nil
	}
	staged, err := a.stager.get(ctx, ds)
	if err != nil {
		return nil, err
	}
	return stagedSchema(ctx, staged, a.Kind())
}

func stagedSchema(ctx context.Context, staged *stagedDB, kind types.SourceKind) (*types.Schema, error) {
	table := types.Table{Name: staged.table}
	for _, col := range staged.columns {
		table.Columns = append(table.Columns, types.Column{Name: col, Type: "text", Nullable: true})
	}
	table.SampleRows = sampleRows(ctx, staged.db, kind, staged.table, quoteSQLiteIdent, 3)
	return &types.Schema{Tables: []types.Table{table}}, nil
}

// Ping checks that the file exists and is readable.
func (a *CSV) Ping(_ context.Context, ds types.DataSource) error {
	path := ds.Connection["path"]
	if path == "" {
		return adapterErr(a.Kind(), "no file path configured", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return adapterErr(a.Kind(), "file unreadable", err)
	}
	return f.Close()
}

// Close drops every staged image.
func (a *CSV) Close() error { return a.stager.close() }

var _ Adapter = (*CSV)(nil)
