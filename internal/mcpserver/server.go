// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala editing tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/overlay"
	"github.com/starford/othala/internal/schema"
	"github.com/starford/othala/internal/session"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
}

// New creates a new MCP server with all Othala tools registered.
func New(sess *session.Session) *Server {
	s := &Server{sess: sess}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the files of one category in the merged base+overlay view."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category name (entities, research, uniforms, textures, sounds, localization)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document's merged tree with per-property provenance "+
			"(inherited, overridden, computed-default)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path (e.g. entities/tank.json)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("describe_property",
		mcp.WithDescription("Return the schema descriptor (type, required, readonly, enum, "+
			"reference kind) for one property path inside a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("property", mcp.Required(), mcp.Description("Property path, e.g. $.armor.front")),
	), s.describeProperty)

	s.mcp.AddTool(mcp.NewTool("mutate_document",
		mcp.WithDescription("Apply one command (a JSON array of ops) to a document. All ops "+
			"commit atomically; a rejected op leaves the document unchanged. Read the "+
			"othala://document-format resource for the op wire format."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
		mcp.WithString("ops", mcp.Required(), mcp.Description(`JSON array of ops, e.g. [{"op":"set","path":"$.speed","value":12}]`)),
	), s.mutateDocument)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the newest command on a document. At the bottom of history this is a no-op."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
	), s.undo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the next command on a document. At the top of history this is a no-op."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
	), s.redo)

	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Write the document's overlay delta to disk. Properties equal to "+
			"their inherited base value are omitted; a pure-inheritance document writes no file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path")),
	), s.saveDocument)

	s.mcp.AddTool(mcp.NewTool("list_candidates",
		mcp.WithDescription("List the known targets for one reference kind (entity-id, "+
			"localization-key, texture-path, sound-path, file-path)."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Reference kind")),
	), s.listCandidates)

	s.mcp.AddTool(mcp.NewTool("search_localization",
		mcp.WithDescription("Full-text search across localization entries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchLocalization)

	s.mcp.AddTool(mcp.NewTool("copy_from_base",
		mcp.WithDescription("Copy a base file into the overlay for editing, optionally under "+
			"a new name. A renamed copy of a manifested category registers in the manifest."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Base file path")),
		mcp.WithString("new_name", mcp.Description("Optional new stem for the copy")),
	), s.copyFromBase)

	// Resource: document format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical document layout, provenance model and mutation op wire format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) open(path string) (*session.Document, error) {
	cat, ok := overlay.CategoryOf(path)
	if !ok {
		return nil, fmt.Errorf("no category for %s: %w", path, apperr.ErrNotFound)
	}
	return s.sess.Open(models.DocumentRef{Category: string(cat), Path: path})
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cat, err := overlay.ParseCategory(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.sess.List(cat)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s\t(%s)", e.Path, e.Origin))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no files"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"path":     d.Ref.Path,
		"revision": d.Revision(),
		"dirty":    d.Dirty(),
		"root":     annotate(d.Root()),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) describeProperty(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prop, err := req.RequireString("property")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	propPath, err := document.ParsePath(prop)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	desc, err := d.Describe(propPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(desc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) mutateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawOps, err := req.RequireString("ops")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ops, err := decodeOps([]byte(rawOps))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	cmd, err := d.Mutate(ops...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	shape := cmd != nil && cmd.ShapeChanged
	return mcp.NewToolResultText(fmt.Sprintf("applied %d op(s); revision %s; shape_changed=%t",
		len(ops), d.Revision(), shape)), nil
}

func (s *Server) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.history(req, "undo", (*session.Document).Undo)
}

func (s *Server) redo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.history(req, "redo", (*session.Document).Redo)
}

func (s *Server) history(req mcp.CallToolRequest, op string, step func(*session.Document) (bool, error)) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, ok := s.sess.Get(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("document not open: %s", path)), nil
	}
	applied, err := step(d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !applied {
		return mcp.NewToolResultText(fmt.Sprintf("nothing to %s", op)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s applied; revision %s", op, d.Revision())), nil
}

func (s *Server) saveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, ok := s.sess.Get(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("document not open: %s", path)), nil
	}
	if err := d.Save(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", path)), nil
}

func (s *Server) listCandidates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targets, err := s.sess.Candidates(schema.RefKind(kind), 100)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(targets) == 0 {
		return mcp.NewToolResultText("no candidates"), nil
	}
	var lines []string
	for _, t := range targets {
		lines = append(lines, fmt.Sprintf("%s\t%s\t(%s)", t.Key, t.Path, t.Origin))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchLocalization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.sess.SearchLocalization(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) copyFromBase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName := ""
	if v, err := req.RequireString("new_name"); err == nil {
		newName = v
	}
	target, err := s.sess.CopyFromBase(path, newName, newName != "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("copied to overlay: %s", target)), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}

// annotate renders a node tree as nested maps with provenance markers,
// compact enough for an LLM to read.
func annotate(n *document.Node) any {
	switch n.Kind {
	case document.KindObject:
		members := make([]map[string]any, 0, len(n.Members))
		for _, m := range n.Members {
			members = append(members, map[string]any{
				"name":       m.Name,
				"provenance": m.Node.Prov.String(),
				"value":      annotate(m.Node),
			})
		}
		return members
	case document.KindArray:
		elems := make([]any, 0, len(n.Elems))
		for _, e := range n.Elems {
			elems = append(elems, annotate(e))
		}
		return elems
	default:
		return n.ToValue()
	}
}

type opArg struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Name  string          `json:"name,omitempty"`
	Pos   *int            `json:"pos,omitempty"`
	Index int             `json:"index,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

func decodeOps(raw []byte) ([]document.Op, error) {
	var args []opArg
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("ops must be a JSON array: %w", err)
	}
	ops := make([]document.Op, 0, len(args))
	for _, a := range args {
		kind, err := document.ParseOpKind(a.Op)
		if err != nil {
			return nil, err
		}
		path, err := document.ParsePath(a.Path)
		if err != nil {
			return nil, err
		}
		op := document.Op{Kind: kind, Path: path, Name: a.Name, Pos: -1, Index: a.Index}
		if a.Pos != nil {
			op.Pos = *a.Pos
		}
		if len(a.Value) > 0 {
			dec := json.NewDecoder(bytes.NewReader(a.Value))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, fmt.Errorf("invalid op value: %w", err)
			}
			op.Value = document.FromValue(v)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
