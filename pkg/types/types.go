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

// Package types defines the shared domain model of the query engine:
// data sources, logical schemas, intents, query records, and the
// optimization analysis attached to completed queries. Types here are
// plain data; behavior lives in the component packages that own them.
package types

import (
	"strings"
	"time"
)

// SourceKind identifies the external system a query runs against.
// It selects both the schema source and the executor adapter.
type SourceKind string

const (
	KindPostgres        SourceKind = "postgres"
	KindMySQL           SourceKind = "mysql"
	KindSpreadsheet     SourceKind = "spreadsheet"
	KindEcommerceOrders SourceKind = "ecommerce-orders"
	KindPayments        SourceKind = "payments"
	KindAccounting      SourceKind = "accounting"
	KindCSV             SourceKind = "csv"
)

// Valid reports whether k is a recognized source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case KindPostgres, KindMySQL, KindSpreadsheet, KindEcommerceOrders,
		KindPayments, KindAccounting, KindCSV:
		return true
	}
	return false
}

// Relational reports whether the kind is backed by a SQL database the
// engine introspects directly.
func (k SourceKind) Relational() bool {
	return k == KindPostgres || k == KindMySQL
}

// SaaS reports whether the kind is served by a vendor API behind the
// engine's built-in schema.
func (k SourceKind) SaaS() bool {
	return k == KindEcommerceOrders || k == KindPayments || k == KindAccounting
}

// Dialect returns the SQL dialect target for generated queries.
// Everything that is not MySQL speaks a PostgreSQL-compatible dialect,
// including spreadsheets, CSV files, and the SaaS adapters.
func (k SourceKind) Dialect() string {
	if k == KindMySQL {
		return "mysql"
	}
	return "postgres"
}

// DataSource is a logical handle to an external system. The engine
// reads it but never mutates it; credentials stay inside Connection
// and are cleared from anything the engine returns.
type DataSource struct {
	ID           string
	Tenant       string
	Kind         SourceKind
	DisplayName  string
	Connection   map[string]string
	SchemaHint   *Schema
	LastSyncedAt time.Time
}

// Redacted returns a copy of the data source with credentials removed.
func (ds DataSource) Redacted() DataSource {
	out := ds
	out.Connection = nil
	return out
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Table describes a table with up to three sample rows.
type Table struct {
	Name       string           `json:"name"`
	Columns    []Column         `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// Relationship links two qualified columns (table.column).
type Relationship struct {
	FromColumn  string `json:"from"`
	ToColumn    string `json:"to"`
	Cardinality string `json:"cardinality,omitempty"`
}

// Schema is the logical read-model of a data source.
type Schema struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Table returns the named table, or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasColumn reports whether a qualified column ("table.column") or a
// bare column name exists anywhere in the schema.
func (s *Schema) HasColumn(name string) bool {
	table, column := "", name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		table, column = name[:i], name[i+1:]
	}
	for ti := range s.Tables {
		if table != "" && !strings.EqualFold(s.Tables[ti].Name, table) {
			continue
		}
		for ci := range s.Tables[ti].Columns {
			if strings.EqualFold(s.Tables[ti].Columns[ci].Name, column) {
				return true
			}
		}
	}
	return false
}

// Timeframe bounds a query in time.
type Timeframe struct {
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
	Granularity string    `json:"granularity,omitempty"`
}

// Intent is the classified meaning of a natural-language query.
// Immutable once produced.
type Intent struct {
	Label       string            `json:"label"`
	Confidence  float64           `json:"confidence"`
	Entities    map[string]string `json:"entities,omitempty"`
	Timeframe   *Timeframe        `json:"timeframe,omitempty"`
	Metrics     []string          `json:"metrics,omitempty"`
	Dimensions  []string          `json:"dimensions,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// ResultSet is the portable result of executing a query. Values are
// coerced by adapters to JSON-representable types; opaque vendor types
// arrive as strings. Columns preserve driver order.
type ResultSet struct {
	Data      []map[string]any `json:"data"`
	Columns   []string         `json:"columns"`
	RowCount  int              `json:"rowCount"`
	ElapsedMs int64            `json:"executionTime"`
}

// QueryStatus is the lifecycle state of a persisted query.
type QueryStatus string

const (
	StatusPending   QueryStatus = "pending"
	StatusCompleted QueryStatus = "completed"
	StatusFailed    QueryStatus = "failed"
)

// OptimizationAnalysis scores generated SQL for advisory purposes.
// It never blocks execution.
type OptimizationAnalysis struct {
	Score       int      `json:"score"`
	Category    string   `json:"category"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Feedback is caller-supplied quality feedback on a completed query.
type Feedback struct {
	Helpful  bool   `json:"helpful"`
	Accurate bool   `json:"accurate"`
	Rating   int    `json:"rating,omitempty"`
	Comments string `json:"comments,omitempty"`
}

// QueryMetadata is the typed metadata attached to a query record.
// Extra is a forward-compatible extension slot; new well-known fields
// should graduate out of it.
type QueryMetadata struct {
	Entities             map[string]string     `json:"entities,omitempty"`
	Timeframe            *Timeframe            `json:"timeframe,omitempty"`
	Metrics              []string              `json:"metrics,omitempty"`
	Dimensions           []string              `json:"dimensions,omitempty"`
	Columns              []string              `json:"columns,omitempty"`
	Optimizations        []string              `json:"optimizations,omitempty"`
	OptimizationAnalysis *OptimizationAnalysis `json:"optimization_analysis,omitempty"`
	Feedback             *Feedback             `json:"feedback,omitempty"`
	Extra                map[string]string     `json:"extra,omitempty"`
}

// QueryRecord is one persisted query and its outcome. Terminal states
// are immutable except for appendable feedback in Metadata.
type QueryRecord struct {
	ID              string        `json:"id"`
	Tenant          string        `json:"tenant"`
	DataSourceID    string        `json:"dataSourceId"`
	User            string        `json:"user,omitempty"`
	NaturalLanguage string        `json:"naturalLanguage"`
	GeneratedSQL    string        `json:"generatedSql,omitempty"`
	IntentLabel     string        `json:"intent"`
	Confidence      float64       `json:"confidence"`
	Status          QueryStatus   `json:"status"`
	ExecutionMs     int64         `json:"executionMs,omitempty"`
	RowCount        int           `json:"rowCount,omitempty"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`
	Metadata        QueryMetadata `json:"metadata"`
	CreatedAt       time.Time     `json:"createdAt"`
}
