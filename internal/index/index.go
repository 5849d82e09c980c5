// Package index provides the SQLite-backed reference candidate index, with
// optional FTS5 full-text search over localization text.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	origin     TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS candidates (
	kind   TEXT NOT NULL,
	key    TEXT NOT NULL,
	path   TEXT NOT NULL,
	origin TEXT NOT NULL,
	UNIQUE(kind, key, path)
);

CREATE INDEX IF NOT EXISTS idx_candidates_kind ON candidates(kind, key);
CREATE INDEX IF NOT EXISTS idx_candidates_path ON candidates(path);

CREATE TABLE IF NOT EXISTS localization (
	key  TEXT NOT NULL,
	path TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	UNIQUE(key, path)
);

CREATE INDEX IF NOT EXISTS idx_localization_path ON localization(path);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
