//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; localization search uses a LIKE fallback on the
	// localization table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Text is already stored in the localization table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// SearchLocalization performs a LIKE-based search (fallback when FTS5 is not
// compiled in).
func (db *DB) SearchLocalization(query string, limit int) ([]LocSearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT key, path, substr(text, 1, 200)
		FROM localization
		WHERE key LIKE ? OR text LIKE ?
		LIMIT ?
	`, like, like, limit)
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
