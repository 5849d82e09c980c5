package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/schema"
)

func testModel(t *testing.T, base, ovl string) *document.Model {
	t.Helper()
	var b, o []byte
	if base != "" {
		b = []byte(base)
	}
	if ovl != "" {
		o = []byte(ovl)
	}
	ref := models.DocumentRef{Category: "entities", Path: "entities/tank.json"}
	return document.Load(ref, b, o, nil)
}

func path(t *testing.T, s string) models.Path {
	t.Helper()
	p, err := document.ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}

func set(t *testing.T, p, lit string) document.Op {
	t.Helper()
	return document.Op{Kind: document.OpSetScalar, Path: path(t, p), Value: document.Scalar(json.Number(lit))}
}

func commit(t *testing.T, s *Stack, ops ...document.Op) *Command {
	t.Helper()
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, op := range ops {
		if err := s.Push(op); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	cmd, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return cmd
}

func TestCommitAppliesOps(t *testing.T) {
	m := testModel(t, `{"a": 1, "b": 2}`, "")
	s := NewStack(m)

	cmd := commit(t, s, set(t, "$.a", "10"), set(t, "$.b", "20"))
	if cmd == nil {
		t.Fatal("commit returned nil command")
	}
	if len(cmd.Forward) != 2 || len(cmd.Inverse) != 2 {
		t.Fatalf("forward/inverse = %d/%d, want 2/2", len(cmd.Forward), len(cmd.Inverse))
	}
	a := m.At(path(t, "$.a"))
	if string(a.Value.(json.Number)) != "10" {
		t.Errorf("a = %v, want 10", a.Value)
	}
	if !s.CanUndo() || s.CanRedo() {
		t.Error("after commit: CanUndo true, CanRedo false expected")
	}
}

func TestUndoRedoByteIdentity(t *testing.T) {
	m := testModel(t, `{"a": 1, "tags": ["x"]}`, "")
	s := NewStack(m)

	snapshots := []string{string(document.Encode(m.Root()))}
	commit(t, s, set(t, "$.a", "2"))
	snapshots = append(snapshots, string(document.Encode(m.Root())))
	commit(t, s, document.Op{Kind: document.OpInsertMember, Path: path(t, "$"), Name: "fresh", Pos: -1, Value: document.Scalar("v")})
	snapshots = append(snapshots, string(document.Encode(m.Root())))
	commit(t, s, document.Op{Kind: document.OpInsertElement, Path: path(t, "$.tags"), Index: 1, Value: document.Scalar("y")})
	snapshots = append(snapshots, string(document.Encode(m.Root())))

	// Undo all the way down, then over-undo extra times.
	for i := 0; i < 6; i++ {
		if _, _, err := s.Undo(); err != nil {
			t.Fatalf("Undo %d: %v", i, err)
		}
	}
	if got := string(document.Encode(m.Root())); got != snapshots[0] {
		t.Errorf("after full undo:\ngot:\n%s\nwant:\n%s", got, snapshots[0])
	}

	// Redo all the way up, with extra no-ops at the top.
	for i := 0; i < 6; i++ {
		if _, _, err := s.Redo(); err != nil {
			t.Fatalf("Redo %d: %v", i, err)
		}
	}
	if got := string(document.Encode(m.Root())); got != snapshots[3] {
		t.Errorf("after full redo:\ngot:\n%s\nwant:\n%s", got, snapshots[3])
	}
}

func TestUndoAtBottomIsNoop(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)
	before := document.Encode(m.Root())

	cmd, ok, err := s.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if ok || cmd != nil {
		t.Error("undo on empty history must report nothing done")
	}
	if !bytes.Equal(document.Encode(m.Root()), before) {
		t.Error("no-op undo must not touch the document")
	}
}

func TestRedoAtTopIsNoop(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)
	commit(t, s, set(t, "$.a", "2"))

	cmd, ok, err := s.Redo()
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if ok || cmd != nil {
		t.Error("redo with no redo tail must report nothing done")
	}
}

func TestUndoInsertEqualToBase(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)
	before := document.Encode(m.Root())

	// Inserting a value identical to the inherited one commits fine; after
	// provenance refresh the member reads as inherited again, so the inverse
	// removal must not be re-validated as fresh user input.
	commit(t, s, document.Op{Kind: document.OpInsertMember, Path: path(t, "$"), Name: "a", Pos: -1, Value: document.Scalar(json.Number("1"))})

	cmd, ok, err := s.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !ok || cmd == nil {
		t.Fatal("undo must revert the committed insert")
	}
	if s.CanUndo() {
		t.Error("cursor must move below the reverted command")
	}
	if !bytes.Equal(document.Encode(m.Root()), before) {
		t.Error("undo must restore the pre-insert bytes")
	}
	if _, ok, err := s.Redo(); !ok || err != nil {
		t.Fatalf("Redo = %v, %v", ok, err)
	}
}

func TestUndoRemoveExtraMemberInClosedObject(t *testing.T) {
	sn := &schema.Node{Type: schema.TypeObject, Closed: true, Members: []schema.Member{
		{Name: "a", Node: schema.Node{Type: schema.TypeNumber}},
	}}
	ref := models.DocumentRef{Category: "entities", Path: "entities/tank.json"}
	m := document.Load(ref, []byte(`{"a": 1}`), []byte(`{"extra": "x"}`), sn)
	s := NewStack(m)
	before := document.Encode(m.Root())

	// The extra member predates the closed-object rule (it came from the
	// overlay file); removing it is legal, and undoing the removal must put
	// it back despite the closed check on new inserts.
	commit(t, s, document.Op{Kind: document.OpRemoveMember, Path: path(t, "$"), Name: "extra"})

	if _, ok, err := s.Undo(); !ok || err != nil {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	if !bytes.Equal(document.Encode(m.Root()), before) {
		t.Errorf("after undo:\ngot:\n%s\nwant:\n%s", document.Encode(m.Root()), before)
	}
	if _, ok, err := s.Redo(); !ok || err != nil {
		t.Fatalf("Redo = %v, %v", ok, err)
	}
}

func TestCommitRollbackAfterBaseEqualInsert(t *testing.T) {
	m := testModel(t, `{"a": 1, "obj": {}}`, "")
	s := NewStack(m)
	before := document.Encode(m.Root())

	// First op lands a value equal to the base, second op is rejected; the
	// rollback of the first must still succeed.
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = s.Push(document.Op{Kind: document.OpInsertMember, Path: path(t, "$"), Name: "a", Pos: -1, Value: document.Scalar(json.Number("1"))})
	_ = s.Push(set(t, "$.obj", "5"))
	_, err := s.Commit()
	if !errors.Is(err, apperr.ErrInvalidMutation) {
		t.Fatalf("err = %v, want ErrInvalidMutation", err)
	}
	if !bytes.Equal(document.Encode(m.Root()), before) {
		t.Error("failed commit must roll the document back")
	}
	if s.Len() != 0 || s.CanUndo() {
		t.Error("failed commit must not enter history")
	}
}

func TestNewCommandTruncatesRedoTail(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)

	commit(t, s, set(t, "$.a", "2"))
	commit(t, s, set(t, "$.a", "3"))
	if _, _, err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !s.CanRedo() {
		t.Fatal("redo tail expected after undo")
	}

	commit(t, s, set(t, "$.a", "7"))
	if s.CanRedo() {
		t.Error("new command must discard the redo tail")
	}
	if s.Len() != 2 {
		t.Errorf("history len = %d, want 2", s.Len())
	}
}

func TestCancelDiscardsPending(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Push(set(t, "$.a", "99")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	a := m.At(path(t, "$.a"))
	if string(a.Value.(json.Number)) != "1" {
		t.Error("cancelled command must not apply")
	}
	if s.State() != Idle {
		t.Error("cancel must return to idle")
	}
}

func TestRecordingStateGuards(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)

	if err := s.Push(set(t, "$.a", "2")); !errors.Is(err, apperr.ErrNotRecording) {
		t.Errorf("push while idle: err = %v, want ErrNotRecording", err)
	}
	if _, err := s.Commit(); !errors.Is(err, apperr.ErrNotRecording) {
		t.Errorf("commit while idle: err = %v, want ErrNotRecording", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(); !errors.Is(err, apperr.ErrRecording) {
		t.Errorf("nested begin: err = %v, want ErrRecording", err)
	}
	if _, _, err := s.Undo(); !errors.Is(err, apperr.ErrRecording) {
		t.Errorf("undo while recording: err = %v, want ErrRecording", err)
	}
}

func TestCommitRollsBackOnRejectedOp(t *testing.T) {
	m := testModel(t, `{"a": 1, "obj": {}}`, "")
	s := NewStack(m)
	before := document.Encode(m.Root())

	// Second op is invalid: set on an object target.
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = s.Push(set(t, "$.a", "5"))
	_ = s.Push(set(t, "$.obj", "5"))
	_, err := s.Commit()
	if !errors.Is(err, apperr.ErrInvalidMutation) {
		t.Fatalf("err = %v, want ErrInvalidMutation", err)
	}
	if !bytes.Equal(document.Encode(m.Root()), before) {
		t.Error("failed commit must roll the document back")
	}
	if s.Len() != 0 || s.CanUndo() {
		t.Error("failed commit must not enter history")
	}
}

func TestEmptyCommitIsNil(t *testing.T) {
	m := testModel(t, `{"a": 1}`, "")
	s := NewStack(m)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cmd, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if cmd != nil {
		t.Error("empty command should commit to nil without entering history")
	}
	if s.Len() != 0 {
		t.Errorf("history len = %d, want 0", s.Len())
	}
}
