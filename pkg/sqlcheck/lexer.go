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

// Package sqlcheck validates and formats model-generated SQL before it
// reaches an executor adapter. Validation is token-level: the lexer
// understands strings, quoted identifiers, and comments, so forbidden
// statement keywords cannot hide inside literals, and literals cannot
// be mistaken for keywords.
package sqlcheck

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // bare identifier or keyword
	tokIdent                   // quoted identifier ("...", `...`, [...])
	tokString                  // string literal, quotes included
	tokNumber                  // numeric literal
	tokPunct                   // single operator/punctuation rune
	tokOp                      // multi-rune operator (<=, !=, ||, ::)
)

type token struct {
	kind tokenKind
	text string // original text
}

// upper returns the uppercased text for word tokens; other kinds keep
// their original text.
func (t token) upper() string {
	if t.kind == tokWord {
		return strings.ToUpper(t.text)
	}
	return t.text
}

// lex tokenizes sql. Comments are dropped. An unterminated string,
// quoted identifier, or block comment is a parse error.
func lex(sql string) ([]token, error) {
	var toks []token
	runes := []rune(sql)
	i := 0
	n := len(runes)

	for i < n {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '-' && i+1 < n && runes[i+1] == '-':
			for i < n && runes[i] != '\n' {
				i++
			}

		case r == '/' && i+1 < n && runes[i+1] == '*':
			end := strings.Index(string(runes[i+2:]), "*/")
			if end < 0 {
				return nil, &ParseError{Pos: i, Msg: "unterminated block comment"}
			}
			i += 2 + end + 2

		case r == '\'':
			start := i
			i++
			for {
				if i >= n {
					return nil, &ParseError{Pos: start, Msg: "unterminated string literal"}
				}
				if runes[i] == '\'' {
					// doubled quote is an escaped quote
					if i+1 < n && runes[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{tokString, string(runes[start:i])})

		case r == '"' || r == '`':
			quote := r
			start := i
			i++
			for i < n && runes[i] != quote {
				i++
			}
			if i >= n {
				return nil, &ParseError{Pos: start, Msg: "unterminated quoted identifier"}
			}
			i++
			toks = append(toks, token{tokIdent, string(runes[start:i])})

		case r == '[':
			// T-SQL style bracket identifier; harmless to accept
			start := i
			for i < n && runes[i] != ']' {
				i++
			}
			if i >= n {
				return nil, &ParseError{Pos: start, Msg: "unterminated bracket identifier"}
			}
			i++
			toks = append(toks, token{tokIdent, string(runes[start:i])})

		case r == '$':
			// dollar-quoted string: $$...$$ or $tag$...$tag$
			if tag, body, consumed, ok := lexDollarQuote(runes[i:]); ok {
				_ = tag
				toks = append(toks, token{tokString, body})
				i += consumed
				break
			}
			toks = append(toks, token{tokPunct, "$"})
			i++

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < n && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			toks = append(toks, token{tokWord, string(runes[start:i])})

		case unicode.IsDigit(r):
			start := i
			for i < n && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E' ||
				((runes[i] == '+' || runes[i] == '-') && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i])})

		default:
			if op, ok := lexOperator(runes[i:]); ok {
				toks = append(toks, token{tokOp, op})
				i += len([]rune(op))
			} else {
				toks = append(toks, token{tokPunct, string(r)})
				i++
			}
		}
	}
	return toks, nil
}

var multiOps = []string{"<=", ">=", "<>", "!=", "||", "::", "->>", "->", "#>>", "#>", "~*", "!~*", "!~"}

func lexOperator(rest []rune) (string, bool) {
	s := string(rest)
	for _, op := range multiOps {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenWord   TokenKind = iota // bare identifier or keyword
	TokenIdent                   // quoted identifier
	TokenString                  // string literal, quotes included
	TokenNumber                  // numeric literal
	TokenPunct                   // single operator/punctuation rune
	TokenOp                      // multi-rune operator
)

// Token is one lexed SQL token with comments already dropped.
type Token struct {
	Kind TokenKind
	Text string
}

// Upper returns the uppercased text for word tokens; other kinds keep
// their original text.
func (t Token) Upper() string {
	if t.Kind == TokenWord {
		return strings.ToUpper(t.Text)
	}
	return t.Text
}

// Tokenize lexes sql for callers that interpret restricted SQL shapes
// themselves.
func Tokenize(sql string) ([]Token, error) {
	toks, err := lex(sql)
	if err != nil {
		return nil, err
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token{Kind: TokenKind(t.kind), Text: t.text}
	}
	return out, nil
}

// lexDollarQuote consumes a PostgreSQL dollar-quoted string starting at
// runes[0] == '$'. Returns the tag, the full quoted text, and the rune
// count consumed.
func lexDollarQuote(runes []rune) (tag, body string, consumed int, ok bool) {
	// find closing '$' of the opening tag
	j := 1
	for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
		j++
	}
	if j >= len(runes) || runes[j] != '$' {
		return "", "", 0, false
	}
	delim := string(runes[:j+1]) // "$tag$"
	rest := string(runes[j+1:])
	end := strings.Index(rest, delim)
	if end < 0 {
		return "", "", 0, false
	}
	full := delim + rest[:end] + delim
	return delim, full, len([]rune(full)), true
}

// splitStatements splits a token stream on top-level semicolons.
// Empty statements are dropped.
func splitStatements(toks []token) [][]token {
	var stmts [][]token
	var cur []token
	depth := 0
	for _, t := range toks {
		if t.kind == tokPunct {
			switch t.text {
			case "(":
				depth++
			case ")":
				if depth > 0 {
					depth--
				}
			case ";":
				if depth == 0 {
					if len(cur) > 0 {
						stmts = append(stmts, cur)
						cur = nil
					}
					continue
				}
			}
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		stmts = append(stmts, cur)
	}
	return stmts
}

// rootKeyword resolves the statement type of a token slice. WITH and
// EXPLAIN prefixes are skipped to the underlying statement: a CTE
// chain "WITH a AS (...), b AS (...) SELECT" is a SELECT.
func rootKeyword(stmt []token) (string, error) {
	if len(stmt) == 0 {
		return "", &ParseError{Msg: "empty statement"}
	}
	first := stmt[0]
	if first.kind != tokWord {
		return "", &ParseError{Msg: fmt.Sprintf("statement starts with %q, expected a keyword", first.text)}
	}
	kw := first.upper()
	switch kw {
	case "EXPLAIN":
		// skip EXPLAIN [ANALYZE|VERBOSE|(...)]
		rest := stmt[1:]
		for len(rest) > 0 {
			if rest[0].kind == tokWord {
				u := rest[0].upper()
				if u == "ANALYZE" || u == "VERBOSE" {
					rest = rest[1:]
					continue
				}
				return rootKeyword(rest)
			}
			if rest[0].kind == tokPunct && rest[0].text == "(" {
				depth := 0
				i := 0
				for ; i < len(rest); i++ {
					if rest[i].kind == tokPunct {
						if rest[i].text == "(" {
							depth++
						} else if rest[i].text == ")" {
							depth--
							if depth == 0 {
								i++
								break
							}
						}
					}
				}
				rest = rest[i:]
				continue
			}
			break
		}
		return "", &ParseError{Msg: "EXPLAIN without a statement"}
	case "WITH":
		// scan at paren depth 0 for the main statement keyword
		depth := 0
		for _, t := range stmt[1:] {
			if t.kind == tokPunct {
				switch t.text {
				case "(":
					depth++
				case ")":
					depth--
				}
				continue
			}
			if depth == 0 && t.kind == tokWord {
				switch t.upper() {
				case "SELECT", "INSERT", "UPDATE", "DELETE", "VALUES", "TABLE":
					return t.upper(), nil
				}
			}
		}
		return "", &ParseError{Msg: "WITH without a main statement"}
	}
	return kw, nil
}
