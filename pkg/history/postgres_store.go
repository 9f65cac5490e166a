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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teradata-labs/weft/internal/pgxdriver"
	"github.com/teradata-labs/weft/pkg/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS query_history (
	id               TEXT PRIMARY KEY,
	tenant           TEXT NOT NULL,
	data_source_id   TEXT NOT NULL,
	user_name        TEXT NOT NULL DEFAULT '',
	natural_language TEXT NOT NULL,
	generated_sql    TEXT NOT NULL DEFAULT '',
	intent           TEXT NOT NULL DEFAULT '',
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	execution_ms     BIGINT NOT NULL DEFAULT 0,
	row_count        INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT '',
	metadata         JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_history_tenant_created
	ON query_history(tenant, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_history_tenant_source
	ON query_history(tenant, data_source_id);
`

// PostgresStore persists query records in PostgreSQL for shared
// deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and migrates the history schema.
func NewPostgresStore(ctx context.Context, cfg pgxdriver.Config) (*PostgresStore, error) {
	pool, err := pgxdriver.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save inserts or replaces a record.
func (s *PostgresStore) Save(ctx context.Context, record *types.QueryRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO query_history
			(id, tenant, data_source_id, user_name, natural_language, generated_sql,
			 intent, confidence, status, execution_ms, row_count, error_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			generated_sql = EXCLUDED.generated_sql,
			execution_ms = EXCLUDED.execution_ms,
			row_count = EXCLUDED.row_count,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata`,
		record.ID, record.Tenant, record.DataSourceID, record.User,
		record.NaturalLanguage, record.GeneratedSQL, record.IntentLabel,
		record.Confidence, string(record.Status), record.ExecutionMs,
		record.RowCount, record.ErrorMessage, metadata, record.CreatedAt.UTC())
	return err
}

func scanPgRecord(row pgx.Row) (*types.QueryRecord, error) {
	var r types.QueryRecord
	var status string
	var metadata []byte
	if err := row.Scan(&r.ID, &r.Tenant, &r.DataSourceID, &r.User, &r.NaturalLanguage,
		&r.GeneratedSQL, &r.IntentLabel, &r.Confidence, &status, &r.ExecutionMs,
		&r.RowCount, &r.ErrorMessage, &metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = types.QueryStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata on record %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// Get fetches one record scoped to the tenant.
func (s *PostgresStore) Get(ctx context.Context, id, tenant string) (*types.QueryRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM query_history WHERE id = $1 AND tenant = $2", id, tenant)
	record, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

// List returns records newest first.
func (s *PostgresStore) List(ctx context.Context, tenant string, filters Filters, page Page) ([]*types.QueryRecord, error) {
	query := "SELECT " + recordColumns + " FROM query_history WHERE tenant = $1"
	args := []any{tenant}
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }

	if filters.DataSourceID != "" {
		query += " AND data_source_id = " + next()
		args = append(args, filters.DataSourceID)
	}
	if filters.Status != "" {
		query += " AND status = " + next()
		args = append(args, string(filters.Status))
	}
	if filters.Search != "" {
		query += " AND natural_language ILIKE " + next()
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
	}
	if !filters.From.IsZero() {
		query += " AND created_at >= " + next()
		args = append(args, filters.From.UTC())
	}
	if !filters.To.IsZero() {
		query += " AND created_at < " + next()
		args = append(args, filters.To.UTC())
	}
	query += " ORDER BY created_at DESC LIMIT " + next()
	args = append(args, page.limit())
	query += " OFFSET " + next()
	args = append(args, page.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*types.QueryRecord
	for rows.Next() {
		record, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) update(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted transitions a record to completed.
func (s *PostgresStore) MarkCompleted(ctx context.Context, id, tenant string, executionMs int64, rowCount int) error {
	return s.update(ctx, `
		UPDATE query_history
		SET status = $1, execution_ms = $2, row_count = $3, error_message = ''
		WHERE id = $4 AND tenant = $5`,
		string(types.StatusCompleted), executionMs, rowCount, id, tenant)
}

// MarkFailed transitions a record to failed.
func (s *PostgresStore) MarkFailed(ctx context.Context, id, tenant, errorMessage string) error {
	return s.update(ctx, `
		UPDATE query_history SET status = $1, error_message = $2
		WHERE id = $3 AND tenant = $4`,
		string(types.StatusFailed), errorMessage, id, tenant)
}

// UpdateFeedback stores feedback in the record's metadata.
func (s *PostgresStore) UpdateFeedback(ctx context.Context, id, tenant string, feedback types.Feedback) error {
	encoded, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}
	return s.update(ctx, `
		UPDATE query_history
		SET metadata = jsonb_set(metadata, '{feedback}', $1::jsonb, true)
		WHERE id = $2 AND tenant = $3`,
		string(encoded), id, tenant)
}

// Delete removes one record scoped to the tenant.
func (s *PostgresStore) Delete(ctx context.Context, id, tenant string) error {
	return s.update(ctx,
		"DELETE FROM query_history WHERE id = $1 AND tenant = $2", id, tenant)
}

// FindSimilar returns recent completed queries whose text contains the
// first keyword extracted from text.
func (s *PostgresStore) FindSimilar(ctx context.Context, text, tenant, dataSourceID string, k int) ([]*types.QueryRecord, error) {
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
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM query_history WHERE created_at < $1", before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
