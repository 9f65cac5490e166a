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
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/weft/pkg/types"
)

// Spreadsheet stages the first sheet of a workbook into an in-memory
// SQLite database and executes queries there.
type Spreadsheet struct {
	stager *stager
}

// NewSpreadsheet creates the spreadsheet adapter.
func NewSpreadsheet() *Spreadsheet {
	return &Spreadsheet{stager: newStager(types.KindSpreadsheet, loadWorkbook)}
}

func loadWorkbook(path string) ([]string, [][]string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = book.Close() }()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// Kind returns the source kind this adapter serves.
func (a *Spreadsheet) Kind() types.SourceKind { return types.KindSpreadsheet }

// Execute runs the statement against the staged image.
func (a *Spreadsheet) Execute(ctx context.Context, sqlText string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	staged, err := a.stager.get(ctx, ds)
	if err != nil {
		return nil, err
	}
	return runQuery(ctx, staged.db, sqlText, a.Kind(), opts)
}

// Introspect derives a single-table schema from the staged image.
func (a *Spreadsheet) Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	if ds.SchemaHint != nil {
		return ds.SchemaHint, nil
	}
	staged, err := a.stager.get(ctx, ds)
	if err != nil {
		return nil, err
	}
	return stagedSchema(ctx, staged, a.Kind())
}

// Ping checks that the workbook exists and is readable.
func (a *Spreadsheet) Ping(_ context.Context, ds types.DataSource) error {
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
func (a *Spreadsheet) Close() error { return a.stager.close() }

var _ Adapter = (*Spreadsheet)(nil)
