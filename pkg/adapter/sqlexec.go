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
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/weft/pkg/types"
)

// progressBatch is the row interval between progress callbacks.
const progressBatch = 500

// pools keeps one *sql.DB per data source ID.
type pools struct {
	driver string
	dsn    func(ds types.DataSource) (string, error)

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func newPools(driver string, dsn func(types.DataSource) (string, error)) *pools {
	return &pools{driver: driver, dsn: dsn, dbs: make(map[string]*sql.DB)}
}

func (p *pools) get(ds types.DataSource) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.dbs[ds.ID]; ok {
		return db, nil
	}
	dsn, err := p.dsn(ds)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(p.driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	p.dbs[ds.ID] = db
	return db, nil
}

func (p *pools) closeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for id, db := range p.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		delete(p.dbs, id)
	}
	return first
}

// runQuery executes one statement and scans every row into a portable
// result set. Byte slices become strings; everything else passes
// through as the driver delivered it.
func runQuery(ctx context.Context, db *sql.DB, sqlText string, kind types.SourceKind, opts ExecOptions) (*types.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, adapterErr(kind, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, adapterErr(kind, "failed to read columns", err)
	}

	result := &types.ResultSet{Columns: columns, Data: []map[string]any{}}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, adapterErr(kind, "row scan failed", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = portable(values[i])
		}
		result.Data = append(result.Data, row)

		if len(result.Data)%progressBatch == 0 {
			opts.progress(fmt.Sprintf("fetched %d rows", len(result.Data)),
				fetchFraction(len(result.Data)))
			if ctx.Err() != nil {
				return nil, adapterErr(kind, "cancelled", ctx.Err())
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, adapterErr(kind, "row iteration failed", err)
	}

	result.RowCount = len(result.Data)
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// fetchFraction maps an open-ended row count onto [0,1); the total is
// unknown until the cursor drains.
func fetchFraction(rows int) float64 {
	f := float64(rows) / float64(rows+progressBatch)
	if f > 0.95 {
		f = 0.95
	}
	return f
}

func portable(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

// sampleRows fetches up to n example rows for schema prompts.
func sampleRows(ctx context.Context, db *sql.DB, kind types.SourceKind, table string, quote func(string) string, n int) []map[string]any {
	rs, err := runQuery(ctx, db,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", quote(table), n),
		kind, ExecOptions{Timeout: 5 * time.Second})
	if err != nil {
		return nil
	}
	return rs.Data
}
