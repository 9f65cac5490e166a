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
package sqlcheck

import (
	"fmt"
	"strings"
)

// ParseError reports SQL the validator could not tokenize or resolve
// to a statement type.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("sql parse error at offset %d: %s", e.Pos, e.Msg)
	}
	return "sql parse error: " + e.Msg
}

// UnsafeError reports SQL containing a forbidden statement type.
type UnsafeError struct {
	Keyword string
}

func (e *UnsafeError) Error() string {
	return fmt.Sprintf("unsafe sql: %s statements are not permitted", e.Keyword)
}

// forbidden statement keywords. The engine is read-only; none of these
// may appear anywhere outside a literal or quoted identifier.
var forbidden = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"CREATE":   true,
	"ALTER":    true,
	"TRUNCATE": true,
}

// readable statement roots the engine will execute.
var readable = map[string]bool{
	"SELECT":   true,
	"VALUES":   true,
	"TABLE":    true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
}

// Validator validates and formats generated SQL for one dialect.
// The zero value is not usable; call New.
type Validator struct {
	dialect string
}

// New returns a Validator for the given dialect ("postgres" or
// "mysql"). The dialect steers formatting details only; the forbidden
// set is dialect-independent.
func New(dialect string) *Validator {
	return &Validator{dialect: dialect}
}

// Dialect returns the validator's dialect.
func (v *Validator) Dialect() string { return v.dialect }

// ValidateAndFormat checks sql for forbidden statements and returns it
// canonically formatted: uppercase keywords, one statement per block,
// major clauses on their own two-space-indented lines. The operation
// is idempotent: formatting already-formatted SQL is a no-op.
func (v *Validator) ValidateAndFormat(sql string) (string, error) {
	stmts, err := v.check(sql)
	if err != nil {
		return "", err
	}
	blocks := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		blocks = append(blocks, formatStatement(stmt))
	}
	return strings.Join(blocks, ";\n\n") + ";", nil
}

// Validate checks sql without reformatting it.
func (v *Validator) Validate(sql string) error {
	_, err := v.check(sql)
	return err
}

func (v *Validator) check(sql string) ([][]token, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, &ParseError{Msg: "empty statement"}
	}
	toks, err := lex(sql)
	if err != nil {
		return nil, err
	}
	stmts := splitStatements(toks)
	if len(stmts) == 0 {
		return nil, &ParseError{Msg: "empty statement"}
	}
	for _, stmt := range stmts {
		root, err := rootKeyword(stmt)
		if err != nil {
			return nil, err
		}
		if forbidden[root] {
			return nil, &UnsafeError{Keyword: root}
		}
		if root != "WITH" && !readable[root] {
			return nil, &ParseError{Msg: fmt.Sprintf("unsupported statement type %s", root)}
		}
		// Forbidden keywords are rejected wherever they appear as bare
		// words, which also covers data-modifying CTEs and lock clauses
		// (FOR UPDATE). Literals and quoted identifiers are distinct
		// token kinds and cannot trip this.
		for _, t := range stmt {
			if t.kind == tokWord && forbidden[t.upper()] {
				return nil, &UnsafeError{Keyword: t.upper()}
			}
		}
	}
	return stmts, nil
}
