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

import "strings"

// keywords uppercased by the formatter. Identifiers keep their case.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "ORDER": true,
	"BY": true, "HAVING": true, "LIMIT": true, "OFFSET": true, "TOP": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"OUTER": true, "CROSS": true, "ON": true, "USING": true, "AS": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true, "NULL": true,
	"LIKE": true, "ILIKE": true, "BETWEEN": true, "EXISTS": true, "CASE": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "ALL": true, "DISTINCT": true,
	"WITH": true, "RECURSIVE": true, "VALUES": true, "TABLE": true,
	"ASC": true, "DESC": true, "NULLS": true, "FIRST": true, "LAST": true,
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"COALESCE": true, "CAST": true, "EXTRACT": true, "INTERVAL": true,
	"DATE": true, "OVER": true, "PARTITION": true, "ROWS": true, "RANGE": true,
	"TRUE": true, "FALSE": true, "SHOW": true, "DESCRIBE": true,
	"EXPLAIN": true, "ANALYZE": true, "VERBOSE": true, "FETCH": true,
	"NEXT": true, "ONLY": true, "LATERAL": true,
}

// clause keywords that start a new line at paren depth 0.
var clauseBreak = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "CROSS": true, "FETCH": true,
}

// keywords after which an opening paren keeps a separating space; any
// other word directly before "(" reads as a function call.
var parenSpacer = map[string]bool{
	"IN": true, "ON": true, "AND": true, "OR": true, "NOT": true, "AS": true,
	"EXISTS": true, "SELECT": true, "FROM": true, "WHERE": true,
	"HAVING": true, "THEN": true, "ELSE": true, "WHEN": true, "BY": true,
	"UNION": true, "ALL": true, "DISTINCT": true, "BETWEEN": true,
	"LIKE": true, "ILIKE": true, "IS": true, "VALUES": true, "USING": true,
	"INTERSECT": true, "EXCEPT": true, "JOIN": true, "WITH": true,
	"RECURSIVE": true, "LATERAL": true,
}

// formatStatement renders one statement canonically: uppercase
// keywords, clause keywords on fresh lines, continuation lines
// indented two spaces.
func formatStatement(stmt []token) string {
	var b strings.Builder
	depth := 0
	lineStart := true

	emit := func(text string, spaceBefore bool) {
		if lineStart {
			if b.Len() > 0 {
				b.WriteString("\n  ")
			}
			lineStart = false
		} else if spaceBefore {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}

	var prev *token
	for i := range stmt {
		t := stmt[i]
		text := t.text
		if t.kind == tokWord && keywords[t.upper()] {
			text = t.upper()
		}

		switch t.kind {
		case tokPunct:
			switch text {
			case "(":
				space := true
				if prev != nil {
					switch prev.kind {
					case tokWord:
						space = parenSpacer[prev.upper()]
					case tokIdent:
						space = false
					case tokPunct, tokOp:
						space = prev.text != "(" && prev.text != "."
					}
				}
				emit(text, space)
				depth++
			case ")":
				if depth > 0 {
					depth--
				}
				emit(text, false)
			case ",":
				emit(text, false)
			case ".":
				emit(text, false)
			default:
				emit(text, prevNeedsSpace(prev))
			}
		case tokOp:
			if text == "::" {
				emit(text, false)
			} else {
				emit(text, true)
			}
		default:
			if t.kind == tokWord && depth == 0 && clauseBreak[t.upper()] && prev != nil && !continuesClause(prev, t) {
				lineStart = true
			}
			space := prevNeedsSpace(prev)
			if prev != nil && prev.kind == tokOp && prev.text == "::" {
				space = false
			}
			emit(text, space)
		}
		prev = &stmt[i]
	}
	return b.String()
}

// prevNeedsSpace reports whether a space separates prev from a
// following word-like token.
func prevNeedsSpace(prev *token) bool {
	if prev == nil {
		return false
	}
	if prev.kind == tokPunct {
		return prev.text != "(" && prev.text != "."
	}
	return true
}

// continuesClause suppresses a break when the clause keyword is part
// of a multi-word construct already on the line (LEFT OUTER JOIN,
// GROUP BY, UNION ALL).
func continuesClause(prev *token, cur token) bool {
	if prev.kind != tokWord {
		return false
	}
	p, c := prev.upper(), cur.upper()
	switch c {
	case "JOIN":
		return p == "INNER" || p == "LEFT" || p == "RIGHT" || p == "FULL" ||
			p == "OUTER" || p == "CROSS"
	case "OUTER":
		return p == "LEFT" || p == "RIGHT" || p == "FULL"
	}
	return false
}
