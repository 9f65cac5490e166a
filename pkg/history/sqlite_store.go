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

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/teradata-labs/weft/internal/sqlitedriver"
	"github.com/teradata-labs/weft/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS query_history (
	id               TEXT PRIMARY KEY,
	tenant           TEXT NOT NULL,
	data_source_id   TEXT NOT NULL,
	user_name        TEXT NOT NULL DEFAULT '',
	natural_language TEXT NOT NULL,
	generated_sql    TEXT NOT NULL DEFAULT '',
	intent           TEXT NOT NULL DEFAULT '',
	confidence       REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	execution_ms     INTEGER NOT NULL DEFAULT 0,
	row_count        INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	metadata         TEXT NOT NULL DEFAULT '{}',
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_tenant_created
	ON query_history(tenant, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_history_tenant_source
	ON query_history(tenant, data_source_id);
`

// SQLiteStore persists query records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts or replaces a record.
func (s *SQLiteStore) Save(ctx context.Context, record *types.QueryRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO query_history
			(id, tenant, data_source_id, user_name, natural_language, generated_sql,
			 intent, confidence, status, execution_ms, row_count, error_message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Tenant, record.DataSourceID, record.User,
		record.NaturalLanguage, record.GeneratedSQL, record.IntentLabel,
		record.Confidence, string(record.Status), record.ExecutionMs,
		record.RowCount, record.ErrorMessage, string(metadata),
		record.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

const recordColumns = `id, tenant, data_source_id, user_name, natural_language, generated_sql,
	intent, confidence, status, execution_ms, row_count, error_message, metadata, created_at`

func scanRecord(scan func(...any) error) (*types.QueryRecord, error) {
	var r types.QueryRecord
	var status, metadata, createdAt string
	if err := scan(&r.ID, &r.Tenant, &r.DataSourceID, &r.User, &r.NaturalLanguage,
		&r.GeneratedSQL, &r.IntentLabel, &r.Confidence, &status, &r.ExecutionMs,
		&r.RowCount, &r.ErrorMessage, &metadata, &createdAt); err != nil {
		return nil, err
	}
	r.Status = types.QueryStatus(status)
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata on record %s: %w", r.ID, err)
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp on record %s: %w", r.ID, err)
	}
	r.CreatedAt = ts
	return &r, nil
}

// Get fetches one record scoped to the tenant.
func (s *SQLiteStore) Get(ctx context.Context, id, tenant string) (*types.QueryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM query_history WHERE id = ? AND tenant = ?", id, tenant)
	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return record, err
}

// List returns records newest first.
func (s *SQLiteStore) List(ctx context.Context, tenant string, filters Filters, page Page) ([]*types.QueryRecord, error) {
	query := "SELECT " + recordColumns + " FROM query_history WHERE tenant = ?"
	args := []any{tenant}
	if filters.DataSourceID != "" {
		query += " AND data_source_id = ?"
		args = append(args, filters.DataSourceID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}
	if filters.Search != "" {
		query += " AND lower(natural_language) LIKE ?"
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
	}
	if !filters.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filters.From.UTC().Format(time.RFC3339Nano))
	}
	if !filters.To.IsZero() {
		query += " AND created_at < ?"
		args = append(args, filters.To.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, page.limit(), page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*types.QueryRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) update(ctx context.Context, id, tenant, set string, args ...any) error {
	args = append(args, id, tenant)
	res, err := s.db.ExecContext(ctx,
		"UPDATE query_history SET "+set+" WHERE id = ? AND tenant = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted transitions a record to completed.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id, tenant string, executionMs int64, rowCount int) error {
	return s.update(ctx, id, tenant,
		"status = ?, execution_ms = ?, row_count = ?, error_message = ''",
		string(types.StatusCompleted), executionMs, rowCount)
}

// MarkFailed transitions a record to failed.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id, tenant, errorMessage string) error {
	return s.update(ctx, id, tenant,
		"status = ?, error_message = ?",
		string(types.StatusFailed), errorMessage)
}

// UpdateFeedback stores feedback in the record's metadata. Repeating
// the same call is a no-op beyond rewriting the same value.
func (s *SQLiteStore) UpdateFeedback(ctx context.Context, id, tenant string, feedback types.Feedback) error {
	record, err := s.Get(ctx, id, tenant)
	if err != nil {
		return err
	}
	record.Metadata.Feedback = &feedback
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return s.update(ctx, id, tenant, "metadata = ?", string(metadata))
}

// Delete removes one record scoped to the tenant.
func (s *SQLiteStore) Delete(ctx context.Context, id, tenant string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM query_history WHERE id = ? AND tenant = ?", id, tenant)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindSimilar returns recent completed queries whose text contains the
// first keyword extracted from text.
func (s *SQLiteStore) FindSimilar(ctx context.Context, text, tenant, dataSourceID string, k int) ([]*types.QueryRecord, error) {
	keyword := SearchKeyword(text)
	if keyword == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}
	return s.List(ctx, tenant, Filters{
		DataSourceID: dataSourceID,
		Status:       types.StatusCompleted,
		Search:       keyword,
	}, Page{Limit: k})
}

// Prune deletes records created before the cutoff, across tenants.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM query_history WHERE created_at < ?",
		before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
