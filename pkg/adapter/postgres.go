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
	"strings"

	_ "github.com/lib/pq"

	"github.com/teradata-labs/weft/pkg/types"
)

// Postgres executes against PostgreSQL sources over database/sql with
// read-only sessions.
type Postgres struct {
	pools *pools
}

// NewPostgres creates the PostgreSQL adapter.
func NewPostgres() *Postgres {
	return &Postgres{pools: newPools("postgres", postgresDSN)}
}

func postgresDSN(ds types.DataSource) (string, error) {
	conn := ds.Connection
	if conn == nil {
		return "", fmt.Errorf("source %s has no connection settings", ds.ID)
	}
	if dsn, ok := conn["dsn"]; ok && dsn != "" {
		return dsn, nil
	}
	host := valueOr(conn, "host", "localhost")
	port := valueOr(conn, "port", "5432")
	database := conn["database"]
	if database == "" {
		return "", fmt.Errorf("source %s has no database configured", ds.ID)
	}
	sslmode := valueOr(conn, "sslmode", "prefer")

	parts := []string{
		"host=" + host,
		"port=" + port,
		"dbname=" + database,
		"sslmode=" + sslmode,
		"options='-c default_transaction_read_only=on'",
	}
	if user := conn["user"]; user != "" {
		parts = append(parts, "user="+user)
	}
	if password := conn["password"]; password != "" {
		parts = append(parts, "password="+password)
	}
	return strings.Join(parts, " "), nil
}

func valueOr(m map[string]string, key, fallback string) string {
	if v := m[key]; v != "" {
		return v
	}
	return fallback
}

// Kind returns the source kind this adapter serves.
func (a *Postgres) Kind() types.SourceKind { return types.KindPostgres }

// Execute runs one read-only statement.
func (a *Postgres) Execute(ctx context.Context, sqlText string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	db, err := a.pools.get(ds)
	if err != nil {
		return nil, adapterErr(a.Kind(), "connection failed", err)
	}
	return runQuery(ctx, db, sqlText, a.Kind(), opts)
}

// Ping verifies connectivity.
func (a *Postgres) Ping(ctx context.Context, ds types.DataSource) error {
	db, err := a.pools.get(ds)
	if err != nil {
		return adapterErr(a.Kind(), "connection failed", err)
	}
	return db.PingContext(ctx)
}

const pgColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`

const pgForeignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'`

// Introspect discovers public-schema tables, columns, sample rows, and
// foreign keys.
func (a *Postgres) Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	db, err := a.pools.get(ds)
	if err != nil {
		return nil, adapterErr(a.Kind(), "connection failed", err)
	}

	schema := &types.Schema{}
	byTable := map[string]*types.Table{}

	rows, err := db.QueryContext(ctx, pgColumnsQuery)
	if err != nil {
		return nil, adapterErr(a.Kind(), "column discovery failed", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, adapterErr(a.Kind(), "column discovery failed", err)
		}
		t, ok := byTable[table]
		if !ok {
			schema.Tables = append(schema.Tables, types.Table{Name: table})
			t = &schema.Tables[len(schema.Tables)-1]
			byTable[table] = t
		}
		t.Columns = append(t.Columns, types.Column{
			Name:     column,
			Type:     dataType,
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, adapterErr(a.Kind(), "column discovery failed", err)
	}

	fks, err := db.QueryContext(ctx, pgForeignKeysQuery)
	if err == nil {
		defer func() { _ = fks.Close() }()
		for fks.Next() {
			var fromTable, fromCol, toTable, toCol string
			if err := fks.Scan(&fromTable, &fromCol, &toTable, &toCol); err != nil {
				break
			}
			schema.Relationships = append(schema.Relationships, types.Relationship{
				FromColumn:  fromTable + "." + fromCol,
				ToColumn:    toTable + "." + toCol,
				Cardinality: "many-to-one",
			})
		}
	}

	for i := range schema.Tables {
		schema.Tables[i].SampleRows = sampleRows(ctx, db, a.Kind(),
			schema.Tables[i].Name, quotePgIdent, 3)
	}
	return schema, nil
}

func quotePgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close releases every pooled connection.
func (a *Postgres) Close() error { return a.pools.closeAll() }

var _ Adapter = (*Postgres)(nil)
