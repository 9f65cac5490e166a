// Package sqlitedriver registers a SQLite database/sql driver under the name
// "sqlite3". When built with CGO (the default on macOS/Linux) it uses
// go-sqlcipher which provides SQLCipher encryption for the query history
// database. When CGO is unavailable it falls back to the pure-Go
// modernc.org/sqlite driver, which works everywhere but has no
// encryption support.
//
// Import this package for its side effects only:
//
//	import _ "github.com/teradata-labs/weft/internal/sqlitedriver"
package sqlitedriver
