package session

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/command"
	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/reference"
	"github.com/starford/othala/internal/schema"
	"github.com/starford/othala/internal/sse"
)

// Document is the handle for one open document: the live model plus its own
// command stack. All mutation goes through Mutate/Undo/Redo here, which is
// what keeps the history consistent and the change events flowing.
type Document struct {
	ID  uuid.UUID
	Ref models.DocumentRef

	sess  *Session
	model *document.Model
	stack *command.Stack

	savedRev string
}

func newDocument(s *Session, ref models.DocumentRef, baseData, ovlData []byte, sn *schema.Node) *Document {
	m := document.Load(ref, baseData, ovlData, sn)
	d := &Document{
		ID:    uuid.New(),
		Ref:   ref,
		sess:  s,
		model: m,
		stack: command.NewStack(m),
	}
	d.savedRev = d.Revision()
	return d
}

// Root returns the live merged tree (read-only for callers).
func (d *Document) Root() *document.Node { return d.model.Root() }

// Get returns the node at a path, or nil.
func (d *Document) Get(path models.Path) *document.Node { return d.model.At(path) }

// Describe returns the schema-derived descriptor for a path.
func (d *Document) Describe(path models.Path) (*schema.Descriptor, error) {
	return d.model.Describe(path)
}

// Mutate records and commits the given ops as one command. On success the
// committed command is returned and a document.changed event is emitted with
// the shape-changed flag; a rejected mutation emits nothing.
func (d *Document) Mutate(ops ...document.Op) (*command.Command, error) {
	if err := d.stack.Begin(); err != nil {
		return nil, err
	}
	for _, op := range ops {
		if err := d.stack.Push(op); err != nil {
			_ = d.stack.Cancel()
			return nil, err
		}
	}
	cmd, err := d.stack.Commit()
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		d.emitChanged(cmd)
	}
	return cmd, nil
}

// Begin/Push/Commit/Cancel expose command assembly for gestures spanning
// several edits (the stack enforces at most one recording at a time).
func (d *Document) Begin() error                   { return d.stack.Begin() }
func (d *Document) Push(op document.Op) error      { return d.stack.Push(op) }
func (d *Document) Cancel() error                  { return d.stack.Cancel() }
func (d *Document) Commit() (*command.Command, error) {
	cmd, err := d.stack.Commit()
	if err != nil {
		return nil, err
	}
	if cmd != nil {
		d.emitChanged(cmd)
	}
	return cmd, nil
}

// Undo reverts the newest applied command. At the bottom of history it
// reports false and does nothing, never an error.
func (d *Document) Undo() (bool, error) {
	cmd, ok, err := d.stack.Undo()
	if err != nil || !ok {
		return ok, err
	}
	d.emitChanged(cmd)
	return true, nil
}

// Redo re-applies the next command, a no-op at the top of history.
func (d *Document) Redo() (bool, error) {
	cmd, ok, err := d.stack.Redo()
	if err != nil || !ok {
		return ok, err
	}
	d.emitChanged(cmd)
	return true, nil
}

// CanUndo and CanRedo report the history bounds.
func (d *Document) CanUndo() bool { return d.stack.CanUndo() }
func (d *Document) CanRedo() bool { return d.stack.CanRedo() }

// Revision is a short content digest of the live tree, used for dirty
// tracking and event payloads.
func (d *Document) Revision() string {
	return checksum.Short(document.Encode(d.model.Root()))
}

// Dirty reports whether the document changed since the last save (or load).
func (d *Document) Dirty() bool { return d.Revision() != d.savedRev }

// Save serializes the overlay delta. Members equal to their inherited base
// value are omitted; a pure-inheritance document writes no overlay file and
// removes a redundant one left behind by earlier saves.
func (d *Document) Save() error {
	data, ok := d.model.EncodeDelta()
	if !ok {
		if d.sess.resolver.OverlayHas(d.Ref.Path) {
			if err := d.sess.resolver.DeleteOverlay(d.Ref.Path); err != nil {
				return err
			}
		}
		d.savedRev = d.Revision()
		d.emitSaved()
		return nil
	}
	if err := d.sess.resolver.WriteOverlay(d.Ref.Path, data); err != nil {
		return err
	}
	d.savedRev = d.Revision()
	d.emitSaved()
	return nil
}

// Classify returns the reference kind of the scalar at path. Pure schema
// classification: values without a declared kind are RefNone.
func (d *Document) Classify(path models.Path) (schema.RefKind, error) {
	desc, err := d.model.Describe(path)
	if err != nil {
		return schema.RefNone, err
	}
	raw, _ := d.rawString(path)
	return reference.Classify(desc, raw), nil
}

// ResolveCandidates resolves the value at path against the reference index.
// Zero candidates means an unresolved reference, not a failure.
func (d *Document) ResolveCandidates(path models.Path) (schema.RefKind, []reference.Target, error) {
	kind, err := d.Classify(path)
	if err != nil {
		return schema.RefNone, nil, err
	}
	raw, ok := d.rawString(path)
	if !ok {
		return kind, nil, nil
	}
	targets, err := d.sess.refs.ResolveValue(kind, raw)
	return kind, targets, err
}

func (d *Document) rawString(path models.Path) (string, bool) {
	n := d.model.At(path)
	if n == nil || n.Kind != document.KindScalar {
		return "", false
	}
	s, ok := n.Value.(string)
	return s, ok
}

func (d *Document) emitChanged(cmd *command.Command) {
	change := sse.DocumentChange{
		Path:         d.Ref.Path,
		ShapeChanged: cmd.ShapeChanged,
		Revision:     d.Revision(),
	}
	if len(cmd.Forward) > 0 {
		change.DataPath = cmd.Forward[0].Path.String()
	}
	d.sess.broker.PublishDocEvent("changed", change)
	d.sess.logger.Debug("document changed",
		slog.String("path", d.Ref.Path),
		slog.Bool("shape_changed", cmd.ShapeChanged))
}

func (d *Document) emitSaved() {
	d.sess.broker.PublishDocEvent("saved", sse.DocumentChange{
		Path:     d.Ref.Path,
		Revision: d.savedRev,
	})
}

// reload re-reads both trees and rebuilds the model, dropping history.
// Used after external overlay changes (e.g. copy-from-base over this path).
func (d *Document) reload() error {
	baseData, ovlData, err := d.sess.resolver.ReadLayers(d.Ref.Path)
	if err != nil {
		return err
	}
	m := document.Load(d.Ref, baseData, ovlData, d.model.Schema)
	d.model = m
	d.stack = command.NewStack(m)
	d.savedRev = d.Revision()
	return nil
}
