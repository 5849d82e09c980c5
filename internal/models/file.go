// Package models defines the domain types shared across the engine.
package models

import "time"

// Origin says which tree physically holds a resolved file.
type Origin string

const (
	OriginBase    Origin = "base"
	OriginOverlay Origin = "overlay"
)

// FileInfo is a lightweight description of one file in a tree.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is a FileInfo resolved through the overlay: the overlay copy shadows
// the base copy under the same relative path.
type Entry struct {
	FileInfo
	Origin Origin `json:"origin"`
}

// DocumentRef identifies one loadable document.
type DocumentRef struct {
	Category string `json:"category"`
	Path     string `json:"path"`
}
