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
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teradata-labs/weft/internal/log"
	_ "github.com/teradata-labs/weft/internal/sqlitedriver"
	"github.com/teradata-labs/weft/pkg/types"
)

// fileLoader reads a tabular file into a header and string rows.
type fileLoader func(path string) (header []string, rows [][]string, err error)

var stageSeq atomic.Int64

// stager turns files into queryable in-memory SQLite databases. A
// staged image lives until the watched file changes on disk.
type stager struct {
	kind types.SourceKind
	load fileLoader

	mu      sync.Mutex
	staged  map[string]*stagedDB
	watcher *fsnotify.Watcher
}

type stagedDB struct {
	db      *sql.DB
	table   string
	columns []string
}

func newStager(kind types.SourceKind, load fileLoader) *stager {
	return &stager{kind: kind, load: load, staged: make(map[string]*stagedDB)}
}

// get returns the staged database for path, staging it on first use.
func (s *stager) get(ctx context.Context, ds types.DataSource) (*stagedDB, error) {
	path := ds.Connection["path"]
	if path == "" {
		return nil, adapterErr(s.kind, "no file path configured", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if staged, ok := s.staged[path]; ok {
		return staged, nil
	}

	staged, err := s.stage(ctx, path, ds.Connection["table"])
	if err != nil {
		return nil, err
	}
	s.staged[path] = staged
	s.watchLocked(path)
	return staged, nil
}

func (s *stager) stage(ctx context.Context, path, tableName string) (*stagedDB, error) {
	header, rows, err := s.load(path)
	if err != nil {
		return nil, adapterErr(s.kind, "failed to read file", err)
	}
	if len(header) == 0 {
		return nil, adapterErr(s.kind, "file has no header row", nil)
	}
	if tableName == "" {
		tableName = sanitizeIdent(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	columns := make([]string, len(header))
	seen := map[string]bool{}
	for i, name := range header {
		col := sanitizeIdent(name)
		if col == "" || seen[col] {
			col = fmt.Sprintf("col_%d", i+1)
		}
		seen[col] = true
		columns[i] = col
	}
	colTypes := inferColumnTypes(rows, len(columns))

	dsn := fmt.Sprintf("file:stage%d?mode=memory&cache=shared", stageSeq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, adapterErr(s.kind, "failed to open staging database", err)
	}
	// Shared-cache memory databases vanish when the last connection
	// closes; pin one open connection for the image's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := createAndFill(ctx, db, tableName, columns, colTypes, rows); err != nil {
		_ = db.Close()
		return nil, adapterErr(s.kind, "failed to stage file", err)
	}
	return &stagedDB{db: db, table: tableName, columns: columns}, nil
}

func createAndFill(ctx context.Context, db *sql.DB, table string, columns, colTypes []string, rows [][]string) error {
	defs := make([]string, len(columns))
	for i := range columns {
		defs[i] = quoteSQLiteIdent(columns[i]) + " " + colTypes[i]
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteSQLiteIdent(table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteSQLiteIdent(table), placeholders))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(columns))
	for _, row := range rows {
		for i := range columns {
			if i < len(row) {
				args[i] = coerceCell(row[i], colTypes[i])
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// inferColumnTypes picks INTEGER, REAL, or TEXT per column from the
// values actually present. Empty cells do not vote.
func inferColumnTypes(rows [][]string, n int) []string {
	colTypes := make([]string, n)
	for i := 0; i < n; i++ {
		allInt, allNum, any := true, true, false
		for _, row := range rows {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			any = true
			v := strings.TrimSpace(row[i])
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allNum = false
					break
				}
			}
		}
		switch {
		case any && allInt:
			colTypes[i] = "INTEGER"
		case any && allNum:
			colTypes[i] = "REAL"
		default:
			colTypes[i] = "TEXT"
		}
	}
	return colTypes
}

func coerceCell(v, colType string) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch colType {
	case "INTEGER":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "REAL":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == ' ', r == '-':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// watchLocked starts watching path; a change drops the staged image so
// the next query re-reads the file. Caller holds s.mu.
func (s *stager) watchLocked(path string) {
	if s.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warn("file watcher unavailable, staged data will not refresh", zap.Error(err))
			return
		}
		s.watcher = watcher
		go s.watchLoop()
	}
	if err := s.watcher.Add(path); err != nil {
		log.Warn("failed to watch file", zap.String("path", path), zap.Error(err))
	}
}

func (s *stager) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.invalidate(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (s *stager) invalidate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if staged, ok := s.staged[path]; ok {
		_ = staged.db.Close()
		delete(s.staged, path)
		log.Debug("staged file invalidated", zap.String("path", path))
	}
}

func (s *stager) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, staged := range s.staged {
		_ = staged.db.Close()
		delete(s.staged, path)
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
