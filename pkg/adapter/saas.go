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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teradata-labs/weft/pkg/schema"
	"github.com/teradata-labs/weft/pkg/sqlcheck"
	"github.com/teradata-labs/weft/pkg/types"
)

// SaaS serves vendor-API source kinds by interpreting a single
// restricted SELECT: the target table maps to a REST resource, and
// projection, filters, ordering, and limit are applied to the fetched
// rows. Joins, grouping, and subqueries are not supported.
type SaaS struct {
	kind       types.SourceKind
	httpClient *http.Client
}

// NewSaaS creates an adapter for one SaaS kind.
func NewSaaS(kind types.SourceKind) *SaaS {
	return &SaaS{
		kind:       kind,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Kind returns the source kind this adapter serves.
func (a *SaaS) Kind() types.SourceKind { return a.kind }

// Introspect returns the built-in vendor schema.
func (a *SaaS) Introspect(_ context.Context, _ types.DataSource) (*types.Schema, error) {
	return schema.BuiltinSchema(a.kind)
}

// Ping probes the vendor endpoint.
func (a *SaaS) Ping(ctx context.Context, ds types.DataSource) error {
	endpoint := ds.Connection["endpoint"]
	if endpoint == "" {
		return adapterErr(a.kind, "no endpoint configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return adapterErr(a.kind, "invalid endpoint", err)
	}
	if key := ds.Connection["api_key"]; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return adapterErr(a.kind, "endpoint unreachable", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Close releases client resources.
func (a *SaaS) Close() error { return nil }

// Execute interprets one restricted SELECT against the vendor API.
func (a *SaaS) Execute(ctx context.Context, sqlText string, ds types.DataSource, opts ExecOptions) (*types.ResultSet, error) {
	start := time.Now()
	q, err := parseRestrictedSelect(sqlText)
	if err != nil {
		return nil, adapterErr(a.kind, "unsupported SQL shape", err)
	}

	builtin, err := schema.BuiltinSchema(a.kind)
	if err != nil {
		return nil, adapterErr(a.kind, "no schema", err)
	}
	table := builtin.Table(q.table)
	if table == nil {
		return nil, adapterErr(a.kind, fmt.Sprintf("unknown table %q", q.table), nil)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	opts.progress("fetching "+q.table, 0.2)
	rows, err := a.fetchRows(ctx, ds, q.table)
	if err != nil {
		return nil, err
	}
	opts.progress(fmt.Sprintf("fetched %d rows", len(rows)), 0.7)

	result, err := q.evaluate(rows, table)
	if err != nil {
		return nil, adapterErr(a.kind, "evaluation failed", err)
	}
	result.ElapsedMs = time.Since(start).Milliseconds()
	opts.progress("done", 1)
	return result, nil
}

// fetchRows pulls the raw resource rows. The response is either a bare
// JSON array or an object with a "data" array.
func (a *SaaS) fetchRows(ctx context.Context, ds types.DataSource, table string) ([]map[string]any, error) {
	endpoint := ds.Connection["endpoint"]
	if endpoint == "" {
		return nil, adapterErr(a.kind, "no endpoint configured", nil)
	}
	url := strings.TrimSuffix(endpoint, "/") + "/" + table

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, adapterErr(a.kind, "invalid endpoint", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := ds.Connection["api_key"]; key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, adapterErr(a.kind, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, adapterErr(a.kind, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapterErr(a.kind,
			fmt.Sprintf("vendor API returned status %d", resp.StatusCode), nil)
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}
	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, adapterErr(a.kind, "unexpected response shape", err)
	}
	return wrapped.Data, nil
}

// restrictedSelect is the SQL subset the SaaS adapters interpret:
// SELECT cols FROM table [WHERE conj] [ORDER BY col [DESC]] [LIMIT n].
type restrictedSelect struct {
	columns   []string // empty means *
	table     string
	filters   []filter
	orderBy   string
	orderDesc bool
	limit     int // 0 means no limit
}

type filter struct {
	column string
	op     string
	value  any
}

func parseRestrictedSelect(sqlText string) (*restrictedSelect, error) {
	toks, err := sqlcheck.Tokenize(strings.TrimSuffix(strings.TrimSpace(sqlText), ";"))
	if err != nil {
		return nil, err
	}
	p := &tokenReader{toks: toks}

	if !p.acceptWord("SELECT") {
		return nil, fmt.Errorf("expected SELECT")
	}
	q := &restrictedSelect{}

	if p.acceptPunct("*") {
		// all columns
	} else {
		for {
			col, ok := p.acceptColumn()
			if !ok {
				return nil, fmt.Errorf("expected column name in select list")
			}
			q.columns = append(q.columns, col)
			if !p.acceptPunct(",") {
				break
			}
		}
	}

	if !p.acceptWord("FROM") {
		return nil, fmt.Errorf("expected FROM")
	}
	table, ok := p.acceptColumn()
	if !ok {
		return nil, fmt.Errorf("expected table name")
	}
	q.table = table

	if p.acceptWord("WHERE") {
		for {
			f, err := p.parseFilter()
			if err != nil {
				return nil, err
			}
			q.filters = append(q.filters, f)
			if !p.acceptWord("AND") {
				break
			}
		}
	}

	if p.acceptWord("ORDER") {
		if !p.acceptWord("BY") {
			return nil, fmt.Errorf("expected BY after ORDER")
		}
		col, ok := p.acceptColumn()
		if !ok {
			return nil, fmt.Errorf("expected column after ORDER BY")
		}
		q.orderBy = col
		if p.acceptWord("DESC") {
			q.orderDesc = true
		} else {
			p.acceptWord("ASC")
		}
	}

	if p.acceptWord("LIMIT") {
		n, ok := p.acceptNumber()
		if !ok {
			return nil, fmt.Errorf("expected number after LIMIT")
		}
		q.limit = int(n)
	}

	if !p.done() {
		return nil, fmt.Errorf("unsupported clause near %q", p.peekText())
	}
	return q, nil
}

type tokenReader struct {
	toks []sqlcheck.Token
	pos  int
}

func (p *tokenReader) done() bool { return p.pos >= len(p.toks) }

func (p *tokenReader) peekText() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos].Text
}

func (p *tokenReader) acceptWord(upper string) bool {
	if p.done() || p.toks[p.pos].Kind != sqlcheck.TokenWord {
		return false
	}
	if p.toks[p.pos].Upper() != upper {
		return false
	}
	p.pos++
	return true
}

func (p *tokenReader) acceptPunct(text string) bool {
	if p.done() || p.toks[p.pos].Kind != sqlcheck.TokenPunct || p.toks[p.pos].Text != text {
		return false
	}
	p.pos++
	return true
}

// acceptColumn consumes a bare or quoted identifier. Reserved clause
// keywords never start a column.
func (p *tokenReader) acceptColumn() (string, bool) {
	if p.done() {
		return "", false
	}
	t := p.toks[p.pos]
	switch t.Kind {
	case sqlcheck.TokenWord:
		switch t.Upper() {
		case "FROM", "WHERE", "ORDER", "LIMIT", "AND":
			return "", false
		}
		p.pos++
		return strings.ToLower(t.Text), true
	case sqlcheck.TokenIdent:
		p.pos++
		return strings.ToLower(strings.Trim(t.Text, "\"`[]")), true
	}
	return "", false
}

func (p *tokenReader) acceptNumber() (float64, bool) {
	if p.done() || p.toks[p.pos].Kind != sqlcheck.TokenNumber {
		return 0, false
	}
	n, err := strconv.ParseFloat(p.toks[p.pos].Text, 64)
	if err != nil {
		return 0, false
	}
	p.pos++
	return n, true
}

var filterOps = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true,
}

func (p *tokenReader) parseFilter() (filter, error) {
	col, ok := p.acceptColumn()
	if !ok {
		return filter{}, fmt.Errorf("expected column in WHERE clause")
	}

	if p.acceptWord("LIKE") {
		if p.done() || p.toks[p.pos].Kind != sqlcheck.TokenString {
			return filter{}, fmt.Errorf("expected string after LIKE")
		}
		pattern := unquoteSQLString(p.toks[p.pos].Text)
		p.pos++
		return filter{column: col, op: "LIKE", value: pattern}, nil
	}

	if p.done() {
		return filter{}, fmt.Errorf("expected operator after %q", col)
	}
	op := p.toks[p.pos].Text
	if (p.toks[p.pos].Kind != sqlcheck.TokenOp && p.toks[p.pos].Kind != sqlcheck.TokenPunct) || !filterOps[op] {
		return filter{}, fmt.Errorf("unsupported operator %q", op)
	}
	p.pos++

	if p.done() {
		return filter{}, fmt.Errorf("expected value after operator")
	}
	t := p.toks[p.pos]
	switch t.Kind {
	case sqlcheck.TokenString:
		p.pos++
		return filter{column: col, op: op, value: unquoteSQLString(t.Text)}, nil
	case sqlcheck.TokenNumber:
		n, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return filter{}, fmt.Errorf("bad number %q", t.Text)
		}
		p.pos++
		return filter{column: col, op: op, value: n}, nil
	case sqlcheck.TokenWord:
		switch t.Upper() {
		case "TRUE":
			p.pos++
			return filter{column: col, op: op, value: true}, nil
		case "FALSE":
			p.pos++
			return filter{column: col, op: op, value: false}, nil
		case "NULL":
			p.pos++
			return filter{column: col, op: op, value: nil}, nil
		}
	}
	return filter{}, fmt.Errorf("unsupported literal %q", t.Text)
}

func unquoteSQLString(text string) string {
	text = strings.TrimPrefix(strings.TrimSuffix(text, "'"), "'")
	return strings.ReplaceAll(text, "''", "'")
}

// evaluate applies filters, ordering, limit, and projection.
func (q *restrictedSelect) evaluate(rows []map[string]any, table *types.Table) (*types.ResultSet, error) {
	columns := q.columns
	if len(columns) == 0 {
		for _, col := range table.Columns {
			columns = append(columns, col.Name)
		}
	} else {
		for _, col := range columns {
			if !tableHasColumn(table, col) {
				return nil, fmt.Errorf("unknown column %q in table %q", col, table.Name)
			}
		}
	}
	if q.orderBy != "" && !tableHasColumn(table, q.orderBy) {
		return nil, fmt.Errorf("unknown column %q in ORDER BY", q.orderBy)
	}
	for _, f := range q.filters {
		if !tableHasColumn(table, f.column) {
			return nil, fmt.Errorf("unknown column %q in WHERE", f.column)
		}
	}

	var kept []map[string]any
	for _, row := range rows {
		if matchesAll(row, q.filters) {
			kept = append(kept, row)
		}
	}

	if q.orderBy != "" {
		desc := q.orderDesc
		col := q.orderBy
		sort.SliceStable(kept, func(i, j int) bool {
			less := compareValues(kept[i][col], kept[j][col]) < 0
			if desc {
				return !less
			}
			return less
		})
	}

	if q.limit > 0 && len(kept) > q.limit {
		kept = kept[:q.limit]
	}

	data := make([]map[string]any, len(kept))
	for i, row := range kept {
		projected := make(map[string]any, len(columns))
		for _, col := range columns {
			projected[col] = portable(row[col])
		}
		data[i] = projected
	}
	return &types.ResultSet{Data: data, Columns: columns, RowCount: len(data)}, nil
}

func tableHasColumn(table *types.Table, name string) bool {
	for _, col := range table.Columns {
		if strings.EqualFold(col.Name, name) {
			return true
		}
	}
	return false
}

func matchesAll(row map[string]any, filters []filter) bool {
	for _, f := range filters {
		if !matches(row[f.column], f) {
			return false
		}
	}
	return true
}

func matches(v any, f filter) bool {
	if f.op == "LIKE" {
		s, ok := v.(string)
		if !ok {
			return false
		}
		return likeMatch(s, f.value.(string))
	}
	if f.value == nil {
		switch f.op {
		case "=":
			return v == nil
		case "!=", "<>":
			return v != nil
		}
		return false
	}
	cmp := compareValues(v, f.value)
	switch f.op {
	case "=":
		return cmp == 0
	case "!=", "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// likeMatch supports leading/trailing % wildcards only; that covers
// what the generator emits for contains/prefix/suffix searches.
func likeMatch(s, pattern string) bool {
	s = strings.ToLower(s)
	pattern = strings.ToLower(pattern)
	leading := strings.HasPrefix(pattern, "%")
	trailing := strings.HasSuffix(pattern, "%")
	core := strings.Trim(pattern, "%")
	switch {
	case leading && trailing:
		return strings.Contains(s, core)
	case leading:
		return strings.HasSuffix(s, core)
	case trailing:
		return strings.HasPrefix(s, core)
	default:
		return s == core
	}
}

// compareValues orders mixed JSON values: numbers before strings, with
// numeric strings compared numerically against numbers.
func compareValues(a, b any) int {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

var _ Adapter = (*SaaS)(nil)
