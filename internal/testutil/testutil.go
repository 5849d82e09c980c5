// Package testutil provides shared test helpers for setting up overlay trees
// and reference index databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/overlay"
	"github.com/starford/othala/internal/storage"
)

// Logger returns a discard logger for quiet tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestTrees creates temporary base and overlay directories and returns a
// resolver over them plus the raw directory paths for seeding fixtures.
func TestTrees(t *testing.T) (baseDir, ovlDir string, r *overlay.Resolver) {
	t.Helper()
	baseDir = t.TempDir()
	ovlDir = t.TempDir()

	base, err := storage.NewReadOnlyFS(baseDir)
	if err != nil {
		t.Fatal(err)
	}
	ovl, err := storage.NewFS(ovlDir)
	if err != nil {
		t.Fatal(err)
	}
	return baseDir, ovlDir, overlay.New(base, ovl, Logger())
}

// Seed writes one file under root, creating parent directories.
func Seed(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
