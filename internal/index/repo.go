package index

import (
	"database/sql"
	"fmt"
	"time"
)

// FileRow represents a row in the files table.
type FileRow struct {
	Path      string
	Category  string
	Origin    string
	Checksum  string
	UpdatedAt time.Time
}

// CandidateRow is one referenceable target provided by an indexed file.
type CandidateRow struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	Origin string `json:"origin"`
}

// LocRow is one localization entry (key plus display text).
type LocRow struct {
	Key  string
	Text string
}

// LocSearchResult is one localization search hit.
type LocSearchResult struct {
	Key     string `json:"key"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// UpsertFile replaces a file row, its candidates, and its localization
// entries within one transaction.
func (db *DB) UpsertFile(f FileRow, cands []CandidateRow, locs []LocRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO files (path, category, origin, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			category   = excluded.category,
			origin     = excluded.origin,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, f.Path, f.Category, f.Origin, f.Checksum, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	// Replace candidates: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM candidates WHERE path = ?`, f.Path)
	if len(cands) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO candidates (kind, key, path, origin) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare candidate insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range cands {
			if _, err := stmt.Exec(c.Kind, c.Key, f.Path, f.Origin); err != nil {
				return fmt.Errorf("index: insert candidate: %w", err)
			}
		}
	}

	// Replace localization entries and their FTS shadow.
	_, _ = tx.Exec(`DELETE FROM localization WHERE path = ?`, f.Path)
	ftsDelete(tx, f.Path)
	if len(locs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO localization (key, path, text) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare localization insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range locs {
			if _, err := stmt.Exec(l.Key, f.Path, l.Text); err != nil {
				return fmt.Errorf("index: insert localization: %w", err)
			}
			if err := ftsUpsert(tx, l.Key, f.Path, l.Text); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteFile removes a file row with its candidates and localization entries.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM candidates WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM localization WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// AllChecksums returns the stored checksum for every indexed file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Candidates returns every candidate of one reference kind, overlay entries
// first so shadowing targets list before shadowed ones.
func (db *DB) Candidates(kind string, limit int) ([]CandidateRow, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.conn.Query(`
		SELECT kind, key, path, origin
		FROM candidates
		WHERE kind = ?
		ORDER BY CASE origin WHEN 'overlay' THEN 0 ELSE 1 END, key
		LIMIT ?
	`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("index: candidates: %w", err)
	}
	return scanCandidates(rows)
}

// LookupCandidates returns the candidates matching one exact key.
func (db *DB) LookupCandidates(kind, key string) ([]CandidateRow, error) {
	rows, err := db.conn.Query(`
		SELECT kind, key, path, origin
		FROM candidates
		WHERE kind = ? AND key = ?
		ORDER BY CASE origin WHEN 'overlay' THEN 0 ELSE 1 END
	`, kind, key)
	if err != nil {
		return nil, fmt.Errorf("index: lookup candidates: %w", err)
	}
	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]CandidateRow, error) {
	defer rows.Close()
	var out []CandidateRow
	for rows.Next() {
		var c CandidateRow
		if err := rows.Scan(&c.Kind, &c.Key, &c.Path, &c.Origin); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
