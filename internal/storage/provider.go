// Package storage defines the file-system abstraction for one data tree.
//
// The engine holds two providers: the immutable base dataset and the mutable
// overlay. Overlay resolution across the pair lives in internal/overlay.
package storage

import "github.com/starford/othala/internal/models"

// Provider is the interface for tree file operations.
type Provider interface {
	// List returns metadata for every file under dir (relative to the tree
	// root) whose name carries one of exts (e.g. ".json", ".png"). An empty
	// exts list matches every file.
	List(dir string, exts ...string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Exists reports whether path resolves to a regular file.
	Exists(path string) bool
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root).
	Delete(path string) error
	// Root returns the absolute path of the tree root.
	Root() string
}
