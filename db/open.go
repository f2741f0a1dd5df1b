// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the few statements that differ between the supported stores
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured database type to a Dialect
func ParseDialect(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3", "":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported database type %q", dbType)
}

// ShareLock is appended to a SELECT to block concurrent writers of the row
// until the transaction ends. SQLite serializes write transactions instead.
func (d Dialect) ShareLock() string {
	if d == DialectPostgres {
		return " FOR SHARE"
	}
	return ""
}

// UpdateLock is appended to a SELECT that precedes an UPDATE of the same row
func (d Dialect) UpdateLock() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// TimestampType is the column type for instants. Postgres stores them
// zone-aware; SQLite keeps the declared TIMESTAMP, since a type name
// containing "INT" would give the column integer affinity.
func (d Dialect) TimestampType() string {
	if d == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// SnapshotTxOptions returns options for a read transaction that sees a single
// consistent snapshot across statements
func (d Dialect) SnapshotTxOptions() *sql.TxOptions {
	if d == DialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// Open connects to the configured store and verifies the connection
func Open(dbType, url string) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(dbType)
	if err != nil {
		return nil, "", err
	}

	var conn *sql.DB
	switch dialect {
	case DialectPostgres:
		conn, err = sql.Open("postgres", url)
	case DialectSQLite:
		conn, err = sql.Open("sqlite", sqliteDSN(url))
		if err == nil {
			// One writer at a time; a single connection also keeps :memory: databases shared
			conn.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, dialect, nil
}

// sqliteDSN enables foreign keys, a busy timeout and immediate write locks
func sqliteDSN(url string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}
	if !strings.Contains(url, ":memory:") {
		params = append(params, "_pragma=journal_mode(WAL)")
	}

	var missing []string
	for _, p := range params {
		if !strings.Contains(url, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return url
	}

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(url, "file:") {
		url = "file:" + url
	}
	return url + sep + strings.Join(missing, "&")
}
