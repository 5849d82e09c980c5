package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFS(t *testing.T) *FS {
	t.Helper()
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return f
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := testFS(t)
	if err := f.Write("entities/tank.json", []byte(`{"a": 1}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := f.Read("entities/tank.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"a": 1}` {
		t.Errorf("content = %q", data)
	}
	if !f.Exists("entities/tank.json") {
		t.Error("Exists should report the file")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	f := testFS(t)
	if err := f.Write("a.json", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(f.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".othala-tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestTraversalRejected(t *testing.T) {
	f := testFS(t)
	if _, err := f.Read("../outside.txt"); err == nil {
		t.Error("read outside root should fail")
	}
	if err := f.Write("../outside.txt", []byte("x")); err == nil {
		t.Error("write outside root should fail")
	}
	if _, err := f.Read("/etc/passwd"); err == nil {
		t.Error("absolute path should fail")
	}
	if f.Exists("../outside.txt") {
		t.Error("Exists must not resolve outside root")
	}
}

func TestReadOnlyFS(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := NewReadOnlyFS(dir)
	if err != nil {
		t.Fatalf("NewReadOnlyFS: %v", err)
	}
	if _, err := f.Read("base.json"); err != nil {
		t.Errorf("read should work: %v", err)
	}
	if err := f.Write("base.json", []byte("nope")); err == nil {
		t.Error("write on read-only tree should fail")
	}
	if err := f.Delete("base.json"); err == nil {
		t.Error("delete on read-only tree should fail")
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	f := testFS(t)
	files, err := f.List("entities", ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if files != nil {
		t.Errorf("expected nil for sparse dir, got %v", files)
	}
}

func TestListFiltersExtensions(t *testing.T) {
	f := testFS(t)
	_ = f.Write("textures/a.png", []byte("png"))
	_ = f.Write("textures/b.dds", []byte("dds"))
	_ = f.Write("textures/notes.txt", []byte("txt"))

	files, err := f.List("textures", ".png", ".dds")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	for _, fi := range files {
		if fi.Checksum == "" {
			t.Errorf("%s missing checksum", fi.Path)
		}
		if !strings.HasPrefix(fi.Path, "textures/") {
			t.Errorf("path %q not tree-relative with forward slashes", fi.Path)
		}
	}
}

func TestNewFSRequiresExistingDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewFS on a missing directory should fail")
	}
}
