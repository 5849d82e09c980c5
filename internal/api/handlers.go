package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/overlay"
	"github.com/starford/othala/internal/schema"
	"github.com/starford/othala/internal/session"
)

// Handler holds API route handlers.
//
// Mutation endpoints (mutate, undo, redo, save, copy) run under one mutex:
// the engine is single-writer per document and the HTTP surface is the shell
// that enforces it. Reads go through unlocked.
type Handler struct {
	sess *session.Session

	mu sync.Mutex
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// docPath extracts the document path from the URL (everything after the
// wildcard). Supports encoded slashes from OpenAPI clients
// (e.g. entities%2Ftank.json).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// open resolves a logical path to its open document handle, opening it on
// first use. The category is derived from the path prefix.
func (h *Handler) open(path string) (*session.Document, error) {
	cat, ok := overlay.CategoryOf(path)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return h.sess.Open(models.DocumentRef{Category: string(cat), Path: path})
}

func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrSchemaMissing):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNameCollision):
		writeJSON(w, http.StatusConflict, errorBody("name collision"))
	case errors.Is(err, apperr.ErrRecording), errors.Is(err, apperr.ErrNotRecording):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidMutation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListFiles handles GET /api/files.
//
//	@Summary		List files in a category (merged base+overlay view)
//	@Tags			files
//	@Produce		json
//	@Param			category	query		string	true	"Category"	Enums(entities, research, uniforms, textures, sounds, localization)
//	@Success		200			{object}	map[string]any
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	cat, err := overlay.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entries, err := h.sess.List(cat)
	if err != nil {
		h.writeErr(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": cat,
		"files":    entries,
	})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List open documents
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	infos := []DocumentInfo{}
	for _, ref := range h.sess.OpenDocuments() {
		if d, ok := h.sess.Get(ref.Path); ok {
			infos = append(infos, docInfo(d))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": infos})
}

// OpenDocument handles POST /api/documents.
//
//	@Summary		Open a document (idempotent)
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenRequest	true	"Document to open"
//	@Success		200		{object}	DocumentInfo
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) OpenDocument(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.open(req.Path)
	if err != nil {
		h.writeErr(w, "open document", err)
		return
	}
	writeJSON(w, http.StatusOK, docInfo(d))
}

// GetDocument handles GET /api/documents/*.
//
// Without a path query it returns the full annotated tree; with ?path=$.a.b
// it returns the one node plus its schema descriptor.
//
//	@Summary		Read a document's annotated tree or one node
//	@Tags			documents
//	@Produce		json
//	@Param			path	query		string	false	"Property path ($.a.b[0])"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	p := docPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.open(p)
	if err != nil {
		h.writeErr(w, "get document", err)
		return
	}

	if q := r.URL.Query().Get("path"); q != "" {
		nodePath, err := document.ParsePath(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		n := d.Get(nodePath)
		if n == nil {
			writeJSON(w, http.StatusNotFound, errorBody("no such node"))
			return
		}
		desc, err := d.Describe(nodePath)
		if err != nil {
			h.writeErr(w, "describe", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"document":   docInfo(d),
			"node":       renderNode(n),
			"descriptor": desc,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document": docInfo(d),
		"root":     renderNode(d.Root()),
	})
}

// CloseDocument handles DELETE /api/documents/*.
//
//	@Summary		Close a document, discarding its history
//	@Tags			documents
//	@Success		204	"Document closed"
//	@Security		BearerAuth
//	@Router			/documents/{path} [delete]
func (h *Handler) CloseDocument(w http.ResponseWriter, r *http.Request) {
	p := docPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	h.sess.CloseDocument(p)
	w.WriteHeader(http.StatusNoContent)
}

// Mutate handles POST /api/mutate.
//
// The ops commit as one command: all apply or, on a mid-command failure,
// the already-applied ones roll back and the document is unchanged.
//
//	@Summary		Apply one command (one or more ops) to a document
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MutateRequest	true	"Command to apply"
//	@Success		200		{object}	MutateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mutate [post]
func (h *Handler) Mutate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req MutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || len(req.Ops) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("path and ops are required"))
		return
	}
	ops, err := decodeOps(req.Ops)
	if err != nil {
		h.writeErr(w, "decode ops", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	d, err := h.open(req.Path)
	if err != nil {
		h.writeErr(w, "mutate", err)
		return
	}
	cmd, err := d.Mutate(ops...)
	if err != nil {
		h.writeErr(w, "mutate", err)
		return
	}
	resp := MutateResponse{Document: docInfo(d)}
	if cmd != nil {
		resp.ShapeChanged = cmd.ShapeChanged
	}
	writeJSON(w, http.StatusOK, resp)
}

// Undo handles POST /api/undo.
//
//	@Summary		Undo the newest command; a no-op at the bottom of history
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocRequest	true	"Document"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "undo", (*session.Document).Undo)
}

// Redo handles POST /api/redo.
//
//	@Summary		Redo the next command; a no-op at the top of history
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocRequest	true	"Document"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "redo", (*session.Document).Redo)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, op string, step func(*session.Document) (bool, error)) {
	var req DocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.sess.Get(req.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("document not open"))
		return
	}
	applied, err := step(d)
	if err != nil {
		h.writeErr(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Document: docInfo(d), Applied: applied})
}

// Save handles POST /api/save.
//
//	@Summary		Write the document's overlay delta to disk
//	@Tags			edits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocRequest	true	"Document"
//	@Success		200		{object}	DocumentInfo
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req DocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.sess.Get(req.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("document not open"))
		return
	}
	if err := d.Save(); err != nil {
		h.writeErr(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, docInfo(d))
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Classify and resolve the reference value at a property path
//	@Tags			references
//	@Produce		json
//	@Param			doc		query		string	true	"Document path"
//	@Param			path	query		string	true	"Property path"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("doc")
	q := r.URL.Query().Get("path")
	if doc == "" || q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("doc and path are required"))
		return
	}
	nodePath, err := document.ParsePath(q)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	d, err := h.open(doc)
	if err != nil {
		h.writeErr(w, "resolve", err)
		return
	}
	kind, targets, err := d.ResolveCandidates(nodePath)
	if err != nil {
		h.writeErr(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":       kind,
		"resolved":   len(targets) > 0,
		"candidates": targets,
	})
}

// Candidates handles GET /api/candidates.
//
//	@Summary		List known targets for a reference kind
//	@Tags			references
//	@Produce		json
//	@Param			kind	query		string	true	"Reference kind"	Enums(entity-id, localization-key, texture-path, sound-path, file-path)
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/candidates [get]
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("kind is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	targets, err := h.sess.Candidates(schema.RefKind(kind), limit)
	if err != nil {
		h.writeErr(w, "candidates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": targets})
}

// SearchLocalization handles GET /api/localization/search.
//
//	@Summary		Full-text search across localization entries
//	@Tags			references
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/localization/search [get]
func (h *Handler) SearchLocalization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.sess.SearchLocalization(q, limit)
	if err != nil {
		h.writeErr(w, "localization search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Copy handles POST /api/copy.
//
//	@Summary		Copy a base file into the overlay, optionally renamed
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CopyRequest	true	"Copy request"
//	@Success		201		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/copy [post]
func (h *Handler) Copy(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	target, err := h.sess.CopyFromBase(req.Path, req.NewName, req.AddToManifest)
	if err != nil {
		h.writeErr(w, "copy", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"path": target})
}

// Warnings handles GET /api/warnings.
//
//	@Summary		Manifest consistency warnings across all categories
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/warnings [get]
func (h *Handler) Warnings(w http.ResponseWriter, r *http.Request) {
	ws := h.sess.Warnings()
	if ws == nil {
		ws = []overlay.Warning{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": ws})
}
