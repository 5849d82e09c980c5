package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/session"
)

// OpenRequest is the request body for opening a document.
type OpenRequest struct {
	Path string `json:"path" example:"entities/tank.json" validate:"required"`
}

// OpRequest is one mutation in a MutateRequest. Value carries the raw JSON
// of the replacement scalar or subtree.
type OpRequest struct {
	Op    string          `json:"op" example:"set" validate:"required"`
	Path  string          `json:"path" example:"$.armor.front" validate:"required"`
	Name  string          `json:"name,omitempty" example:"speed"`
	Pos   *int            `json:"pos,omitempty"`
	Index int             `json:"index,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MutateRequest applies one command (one or more ops) to an open document.
type MutateRequest struct {
	Path string      `json:"path" example:"entities/tank.json" validate:"required"`
	Ops  []OpRequest `json:"ops" validate:"required"`
}

// DocRequest addresses an open document for undo/redo/save/close.
type DocRequest struct {
	Path string `json:"path" example:"entities/tank.json" validate:"required"`
}

// CopyRequest copies a base file into the overlay, optionally under a new name.
type CopyRequest struct {
	Path          string `json:"path" example:"entities/tank.json" validate:"required"`
	NewName       string `json:"new_name,omitempty" example:"heavy_tank"`
	AddToManifest bool   `json:"add_to_manifest,omitempty"`
}

// DocumentInfo is the per-document status block returned by most endpoints.
type DocumentInfo struct {
	ID       string `json:"id" validate:"required"`
	Path     string `json:"path" example:"entities/tank.json" validate:"required"`
	Category string `json:"category" example:"entities" validate:"required"`
	Revision string `json:"revision" validate:"required"`
	Dirty    bool   `json:"dirty"`
	CanUndo  bool   `json:"can_undo"`
	CanRedo  bool   `json:"can_redo"`
}

// NodeView is the annotated tree rendering: plain values plus per-node
// provenance so the editor can grey out inherited properties.
type NodeView struct {
	Kind       string       `json:"kind" example:"object"`
	Value      any          `json:"value,omitempty"`
	Provenance string       `json:"provenance" example:"inherited"`
	Members    []MemberView `json:"members,omitempty"`
	Elems      []NodeView   `json:"elems,omitempty"`
}

// MemberView is one named member inside an object NodeView.
type MemberView struct {
	Name string   `json:"name" example:"speed"`
	Node NodeView `json:"node"`
}

// MutateResponse reports a committed (or reverted) command.
type MutateResponse struct {
	Document     DocumentInfo `json:"document"`
	ShapeChanged bool         `json:"shape_changed"`
}

// HistoryResponse reports an undo/redo outcome. Applied is false at the
// history bounds; that is a no-op, not an error.
type HistoryResponse struct {
	Document DocumentInfo `json:"document"`
	Applied  bool         `json:"applied"`
}

func docInfo(d *session.Document) DocumentInfo {
	return DocumentInfo{
		ID:       d.ID.String(),
		Path:     d.Ref.Path,
		Category: d.Ref.Category,
		Revision: d.Revision(),
		Dirty:    d.Dirty(),
		CanUndo:  d.CanUndo(),
		CanRedo:  d.CanRedo(),
	}
}

func renderNode(n *document.Node) NodeView {
	v := NodeView{Kind: n.Kind.String(), Provenance: n.Prov.String()}
	switch n.Kind {
	case document.KindObject:
		for _, m := range n.Members {
			v.Members = append(v.Members, MemberView{Name: m.Name, Node: renderNode(m.Node)})
		}
	case document.KindArray:
		for _, e := range n.Elems {
			v.Elems = append(v.Elems, renderNode(e))
		}
	default:
		v.Value = n.ToValue()
	}
	return v
}

// decodeOps converts wire ops to engine ops. Values decode through
// json.Number so numeric literals survive verbatim.
func decodeOps(reqs []OpRequest) ([]document.Op, error) {
	ops := make([]document.Op, 0, len(reqs))
	for i, r := range reqs {
		kind, err := document.ParseOpKind(r.Op)
		if err != nil {
			return nil, err
		}
		path, err := document.ParsePath(r.Path)
		if err != nil {
			return nil, err
		}
		op := document.Op{Kind: kind, Path: path, Name: r.Name, Pos: -1, Index: r.Index}
		if r.Pos != nil {
			op.Pos = *r.Pos
		}
		if len(r.Value) > 0 {
			v, err := decodeValue(r.Value)
			if err != nil {
				return nil, fmt.Errorf("api: op %d: %w: %w", i, err, apperr.ErrInvalidMutation)
			}
			op.Value = document.FromValue(v)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
