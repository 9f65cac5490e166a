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

	_ "github.com/go-sql-driver/mysql"

	"github.com/teradata-labs/weft/pkg/types"
)

// MySQL executes against MySQL sources over database/sql.
type MySQL struct {
	pools *pools
}

// NewMySQL creates the MySQL adapter.
func NewMySQL() *MySQL {
	return &MySQL{pools: newPools("mysql", mysqlDSN)}
}

func mysqlDSN(ds types.DataSource) (string, error) {
	conn := ds.Connection
	if conn == nil {
		return "", fmt.Errorf("source %s has no connection settings", ds.ID)
	}
	if dsn, ok := conn["dsn"]; ok && dsn != "" {
		return dsn, nil
	}
	database := conn["database"]
	if database == "" {
		return "", fmt.Errorf("source %s has no database configured", ds.ID)
	}
	host := valueOr(conn, "host", "localhost")
	port := valueOr(conn, "port", "3306")

	var b strings.Builder
	if user := conn["user"]; user != "" {
		b.WriteString(user)
		if password := conn["password"]; password != "" {
			b.WriteByte(':')
			b.WriteString(password)
		}
		b.WriteByte('@')
	}
	fmt.Fprintf(&b, "tcp(%s:%s)/%s?parseTime=true", host, port, database)
	return b.String(), nil
}

// Kind returns the source kind this adapter serves.
func (a *MySQL) Kind() types.SourceKind { return types.KindMySQL }

// Execute runs one read-only statement.
func (a *MySQL) Execute(ctx context.Context, sqlText string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	db, err := a.pools.get(ds)
	if err != nil {
		return nil, adapterErr(a.Kind(), "connection failed", err)
	}
	return runQuery(ctx, db, sqlText, a.Kind(), opts)
}

// Ping verifies connectivity.
func (a *MySQL) Ping(ctx context.Context, ds types.DataSource) error {
	db, err := a.pools.get(ds)
	if err != nil {
		return adapterErr(a.Kind(), "connection failed", err)
	}
	return db.PingContext(ctx)
}

const mysqlColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`

const mysqlForeignKeysQuery = `
SELECT table_name, column_name, referenced_table_name, referenced_column_name
FROM information_schema.key_column_usage
WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL`

// Introspect discovers tables, columns, sample rows, and foreign keys
// in the connected database.
func (a *MySQL) Introspect(ctx context.Context, ds types.DataSource) (*types.Schema, error) {
	db, err := a.pools.get(ds)
	if err != nil {
		return nil, adapterErr(a.Kind(), "connection failed", err)
	}

	schema := &types.Schema{}
	byTable := map[string]*types.Table{}

	rows, err := db.QueryContext(ctx, mysqlColumnsQuery)
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

	fks, err := db.QueryContext(ctx, mysqlForeignKeysQuery)
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
			schema.Tables[i].Name, quoteMySQLIdent, 3)
	}
	return schema, nil
}

func quoteMySQLIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Close releases every pooled connection.
func (a *MySQL) Close() error { return a.pools.closeAll() }

var _ Adapter = (*MySQL)(nil)
