//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS localization_fts USING fts5(
			key UNINDEXED,
			path UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, key, path, text string) error {
	_, err := tx.Exec(`INSERT INTO localization_fts (key, path, text) VALUES (?, ?, ?)`,
		key, path, text)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM localization_fts WHERE path = ?`, path)
}

// SearchLocalization performs an FTS5 search over localization text and
// returns matching keys with snippets.
func (db *DB) SearchLocalization(query string, limit int) ([]LocSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT key,
		       path,
		       snippet(localization_fts, 2, '<b>', '</b>', '...', 64)
		FROM localization_fts
		WHERE localization_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search localization: %w", err)
	}
	defer rows.Close()

	var out []LocSearchResult
	for rows.Next() {
		var r LocSearchResult
		if err := rows.Scan(&r.Key, &r.Path, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
