// Package session wires the engine together for one open mod: overlay
// resolver, schema registry, reference index and event broker, plus the
// per-document handles that the collaborator surfaces consume.
//
// A session replaces global application state: base path, overlay path and
// schema set are fixed at construction and live exactly as long as the
// session (one session per open mod).
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/overlay"
	"github.com/starford/othala/internal/reference"
	"github.com/starford/othala/internal/schema"
	"github.com/starford/othala/internal/sse"
)

// Session is the root object for one open mod.
//
// The overlay resolver and schema registry are read-only and shared by every
// open document; each document has its own model and command stack. Document
// mutation is single-writer per document (the shell serializes callers); the
// mutex here only guards the handle map.
type Session struct {
	ID uuid.UUID

	resolver *overlay.Resolver
	schemas  *schema.Registry
	idx      index.ReferenceIndex
	refs     *reference.Resolver
	broker   *sse.Broker
	logger   *slog.Logger

	mu   sync.Mutex
	docs map[string]*Document
}

// New creates a session over an already-constructed resolver, registry,
// index and broker.
func New(resolver *overlay.Resolver, schemas *schema.Registry, idx index.ReferenceIndex,
	broker *sse.Broker, logger *slog.Logger) *Session {
	return &Session{
		ID:       uuid.New(),
		resolver: resolver,
		schemas:  schemas,
		idx:      idx,
		refs:     reference.NewResolver(idx),
		broker:   broker,
		logger:   logger,
		docs:     make(map[string]*Document),
	}
}

// Resolver exposes the shared overlay resolver.
func (s *Session) Resolver() *overlay.Resolver { return s.resolver }

// Open loads (or returns the already-open handle for) one document.
func (s *Session) Open(ref models.DocumentRef) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[ref.Path]; ok {
		return d, nil
	}

	cat, err := overlay.ParseCategory(ref.Category)
	if err != nil {
		return nil, err
	}
	if !cat.IsDocument() {
		return nil, fmt.Errorf("session: category %s holds assets, not documents: %w", cat, apperr.ErrInvalidMutation)
	}

	baseData, ovlData, err := s.resolver.ReadLayers(ref.Path)
	if err != nil {
		return nil, err
	}

	var sn *schema.Node
	if kind := cat.SchemaKind(); kind != "" {
		sn, err = s.schemas.Get(kind)
		if err != nil {
			if !errors.Is(err, apperr.ErrSchemaMissing) {
				return nil, err
			}
			// Degrade gracefully: the document loads without descriptors and
			// renders as opaque editable values upstream.
			s.logger.Warn("no schema registered", slog.String("kind", kind), slog.String("path", ref.Path))
			sn = nil
		}
	}

	d := newDocument(s, ref, baseData, ovlData, sn)
	s.docs[ref.Path] = d
	s.logger.Info("document opened",
		slog.String("path", ref.Path),
		slog.String("id", d.ID.String()))
	return d, nil
}

// Get returns the open handle for a path, if any.
func (s *Session) Get(path string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	return d, ok
}

// CloseDocument discards one document handle. Its model and history go with
// it; a background scan whose document is gone simply abandons its result.
func (s *Session) CloseDocument(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// OpenDocuments returns the refs of every open document.
func (s *Session) OpenDocuments() []models.DocumentRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentRef, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Ref)
	}
	return out
}

// List returns the merged category listing.
func (s *Session) List(cat overlay.Category) ([]models.Entry, error) {
	return s.resolver.List(cat)
}

// Candidates lists the known targets for one reference kind.
func (s *Session) Candidates(kind schema.RefKind, limit int) ([]reference.Target, error) {
	return s.refs.Candidates(kind, limit)
}

// SearchLocalization searches localization text.
func (s *Session) SearchLocalization(query string, limit int) ([]index.LocSearchResult, error) {
	return s.idx.SearchLocalization(query, limit)
}

// CopyFromBase copies a file into the overlay and, when the copy registered a
// manifest id, announces the manifest update so listings refresh. A shadow
// copy changes no manifest and stays silent.
func (s *Session) CopyFromBase(path, newName string, addToManifest bool) (string, error) {
	target, manifested, err := s.resolver.CopyFromBase(path, newName, addToManifest)
	if err != nil {
		return "", err
	}
	// An open handle on the target now shadows different bytes; rebuild it.
	if d, ok := s.Get(target); ok {
		if err := d.reload(); err != nil {
			s.logger.Warn("reload after copy failed",
				slog.String("path", target), slog.String("error", err.Error()))
		}
	}
	if manifested {
		s.broker.PublishDocEvent("manifest", sse.DocumentChange{Path: target})
	}
	return target, nil
}

// Warnings runs the manifest consistency check over every category.
func (s *Session) Warnings() []overlay.Warning {
	var out []overlay.Warning
	for _, cat := range overlay.Categories() {
		ws, err := s.resolver.CheckConsistency(cat)
		if err != nil {
			s.logger.Warn("consistency check failed",
				slog.String("category", string(cat)), slog.String("error", err.Error()))
			continue
		}
		out = append(out, ws...)
	}
	return out
}
