package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/schema"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()

	baseDir, ovlDir, resolver := testutil.TestTrees(t)
	testutil.Seed(t, baseDir, "entities/tank.json",
		"{\n    \"id\": \"tank\",\n    \"speed\": 5\n}\n")
	testutil.Seed(t, baseDir, "entities/entities.manifest",
		"{\n    \"ids\": [\n        \"tank\"\n    ]\n}\n")

	schemas := schema.NewRegistry()
	def := &schema.Definition{
		Kind: "entity",
		Root: &schema.Node{Type: schema.TypeObject, Members: []schema.Member{
			{Name: "id", Node: schema.Node{Type: schema.TypeString, Required: true, ReadOnly: true}},
			{Name: "speed", Node: schema.Node{Type: schema.TypeNumber, Default: 5}},
		}},
	}
	if err := schemas.Register(def); err != nil {
		t.Fatal(err)
	}

	db := testutil.TestDB(t)
	broker := sse.NewBroker(time.Hour)
	t.Cleanup(broker.Close)

	sess := session.New(resolver, schemas, db, broker, testutil.Logger())
	return New(sess), ovlDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_files":
		result, err = srv.listFiles(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "describe_property":
		result, err = srv.describeProperty(ctx, req)
	case "mutate_document":
		result, err = srv.mutateDocument(ctx, req)
	case "undo":
		result, err = srv.undo(ctx, req)
	case "redo":
		result, err = srv.redo(ctx, req)
	case "save_document":
		result, err = srv.saveDocument(ctx, req)
	case "list_candidates":
		result, err = srv.listCandidates(ctx, req)
	case "search_localization":
		result, err = srv.searchLocalization(ctx, req)
	case "copy_from_base":
		result, err = srv.copyFromBase(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadDocumentWithProvenance(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_document", map[string]interface{}{"path": "entities/tank.json"})
	if r.IsError {
		t.Fatalf("read_document error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"provenance": "inherited"`) {
		t.Errorf("missing provenance markers in %s", text)
	}
	if !strings.Contains(text, `"speed"`) {
		t.Errorf("missing member in %s", text)
	}
}

func TestMutateAndHistory(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "mutate_document", map[string]interface{}{
		"path": "entities/tank.json",
		"ops":  `[{"op":"set","path":"$.speed","value":12}]`,
	})
	if r.IsError {
		t.Fatalf("mutate error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "applied 1 op(s)") {
		t.Errorf("mutate result = %q", resultText(r))
	}

	r = callTool(t, srv, "undo", map[string]interface{}{"path": "entities/tank.json"})
	if !strings.Contains(resultText(r), "undo applied") {
		t.Errorf("undo result = %q", resultText(r))
	}

	// A second undo hits the bottom of history: a quiet no-op.
	r = callTool(t, srv, "undo", map[string]interface{}{"path": "entities/tank.json"})
	if r.IsError || resultText(r) != "nothing to undo" {
		t.Errorf("undo at bottom = %q", resultText(r))
	}

	r = callTool(t, srv, "redo", map[string]interface{}{"path": "entities/tank.json"})
	if !strings.Contains(resultText(r), "redo applied") {
		t.Errorf("redo result = %q", resultText(r))
	}
}

func TestMutateRejected(t *testing.T) {
	srv, _ := testServer(t)

	// id is readonly; the rejection surfaces as a tool error, not a Go error.
	r := callTool(t, srv, "mutate_document", map[string]interface{}{
		"path": "entities/tank.json",
		"ops":  `[{"op":"set","path":"$.id","value":"jeep"}]`,
	})
	if !r.IsError {
		t.Error("expected error for readonly property")
	}

	r = callTool(t, srv, "mutate_document", map[string]interface{}{
		"path": "entities/tank.json",
		"ops":  `not json`,
	})
	if !r.IsError {
		t.Error("expected error for malformed ops")
	}
}

func TestDescribeProperty(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "describe_property", map[string]interface{}{
		"path":     "entities/tank.json",
		"property": "$.id",
	})
	if r.IsError {
		t.Fatalf("describe error: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"readonly": true`) {
		t.Errorf("descriptor = %s", text)
	}
}

func TestSaveDocumentWritesDelta(t *testing.T) {
	srv, ovlDir := testServer(t)

	_ = callTool(t, srv, "mutate_document", map[string]interface{}{
		"path": "entities/tank.json",
		"ops":  `[{"op":"set","path":"$.speed","value":12}]`,
	})
	r := callTool(t, srv, "save_document", map[string]interface{}{"path": "entities/tank.json"})
	if r.IsError {
		t.Fatalf("save error: %s", resultText(r))
	}
	raw, err := os.ReadFile(filepath.Join(ovlDir, "entities", "tank.json"))
	if err != nil {
		t.Fatalf("overlay file: %v", err)
	}
	if want := "{\n    \"speed\": 12\n}\n"; string(raw) != want {
		t.Errorf("delta = %q, want %q", raw, want)
	}
}

func TestCopyFromBaseTool(t *testing.T) {
	srv, ovlDir := testServer(t)

	r := callTool(t, srv, "copy_from_base", map[string]interface{}{
		"path":     "entities/tank.json",
		"new_name": "heavy_tank",
	})
	if r.IsError {
		t.Fatalf("copy error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "entities/heavy_tank.json") {
		t.Errorf("copy result = %q", resultText(r))
	}
	if _, err := os.Stat(filepath.Join(ovlDir, "entities", "heavy_tank.json")); err != nil {
		t.Errorf("copied file missing: %v", err)
	}
}

func TestListFiles(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_files", map[string]interface{}{"category": "entities"})
	if !strings.Contains(resultText(r), "entities/tank.json") {
		t.Errorf("list = %q", resultText(r))
	}

	r = callTool(t, srv, "list_files", map[string]interface{}{"category": "spaceships"})
	if !r.IsError {
		t.Error("expected error for unknown category")
	}
}

func TestDecodeOps(t *testing.T) {
	ops, err := decodeOps([]byte(`[{"op":"insert-member","path":"$","name":"crew","pos":0,"value":3}]`))
	if err != nil {
		t.Fatalf("decodeOps: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("ops = %d, want 1", len(ops))
	}
	op := ops[0]
	if op.Kind != document.OpInsertMember || op.Name != "crew" || op.Pos != 0 {
		t.Errorf("op = %+v", op)
	}
	// Numbers decode as literals, not float64.
	if n, ok := op.Value.Value.(json.Number); !ok || string(n) != "3" {
		t.Errorf("value = %#v, want json.Number(3)", op.Value.Value)
	}

	// Omitted pos means append.
	ops, err = decodeOps([]byte(`[{"op":"insert-member","path":"$","name":"crew","value":3}]`))
	if err != nil {
		t.Fatal(err)
	}
	if ops[0].Pos != -1 {
		t.Errorf("default pos = %d, want -1", ops[0].Pos)
	}

	if _, err := decodeOps([]byte(`[{"op":"teleport","path":"$"}]`)); err == nil {
		t.Error("unknown op kind should fail")
	}
}

func TestDocumentFormatResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readDocumentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] = %T", contents[0])
	}
	if !strings.Contains(tc.Text, "provenance") || !strings.Contains(tc.Text, "insert-member") {
		t.Error("contract text missing core sections")
	}
}
