package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sess *session.Session, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Category listings and overlay file operations.
	r.Get("/files", h.ListFiles)
	r.Post("/copy", h.Copy)
	r.Get("/warnings", h.Warnings)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.OpenDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Delete("/documents/*", h.CloseDocument)

	// Edits. Document paths contain slashes, so mutation endpoints take the
	// path in the body rather than the URL.
	r.Post("/mutate", h.Mutate)
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
	r.Post("/save", h.Save)

	// References.
	r.Get("/resolve", h.Resolve)
	r.Get("/candidates", h.Candidates)
	r.Get("/localization/search", h.SearchLocalization)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
