package document

import (
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/schema"
)

// Model is the live view of one document: base and overlay bytes merged into
// an ordered tree, schema defaults synthesized, provenance derived.
//
// The model is single-writer: all Apply calls for one document must execute
// on one logical sequence (the command stack enforces the write path; the
// surrounding shell serializes callers). Reads between mutations are fine;
// reads concurrent with an in-flight Apply are not.
type Model struct {
	Ref    models.DocumentRef
	Schema *schema.Node // nil when no schema is registered for the kind

	base *Node // parsed base tree, nil when the file is overlay-only
	root *Node // live merged tree
}

// Load parses base and overlay bytes (either may be nil when that tree lacks
// the file) and builds the merged, annotated model.
func Load(ref models.DocumentRef, baseData, ovlData []byte, sn *schema.Node) *Model {
	m := &Model{Ref: ref, Schema: sn}
	if baseData != nil {
		m.base = Parse(baseData)
	}
	var ovl *Node
	if ovlData != nil {
		ovl = Parse(ovlData)
	}
	m.root = merge(m.base, ovl)
	if m.root == nil {
		m.root = Object()
	}
	m.refresh(nil)
	return m
}

// Root returns the live tree. Callers must not mutate it directly; every
// write goes through Apply via the command stack.
func (m *Model) Root() *Node { return m.root }

// At returns the node addressed by path, or nil.
func (m *Model) At(path models.Path) *Node { return At(m.root, path) }

// Describe returns the schema-derived descriptor for the node at path.
// Undeclared locations yield an editable "extra" descriptor.
func (m *Model) Describe(path models.Path) (*schema.Descriptor, error) {
	sn, err := m.schemaAt(path)
	if err != nil {
		return nil, invalid("describe %s: %v", path, err)
	}
	return schema.Describe(sn), nil
}

func (m *Model) schemaAt(path models.Path) (*schema.Node, error) {
	if m.Schema == nil {
		return nil, nil
	}
	return schema.At(m.Schema, path)
}

// Apply validates and applies one mutation, returning the inverse op and
// whether the mutation changed document shape (root member add/remove).
// A rejected op leaves the model untouched.
func (m *Model) Apply(op Op) (inverse Op, shapeChanged bool, err error) {
	if err := m.validate(op); err != nil {
		return Op{}, false, err
	}
	inverse, shapeChanged = m.apply(op)
	return inverse, shapeChanged, nil
}

// Replay applies one history op, skipping the schema policy checks. Inverse
// ops are derived from applied state, and the provenance refresh after the
// forward op can stamp the touched member inherited or computed-default;
// re-validating the inverse against that stamp would reject a legal revert
// (removing an override whose value equals the base, reinserting an extra
// member into a closed object). Only the structural checks run here, so undo,
// redo and commit rollback cannot strand the history cursor.
func (m *Model) Replay(op Op) error {
	if err := m.checkShape(op); err != nil {
		return err
	}
	m.apply(op)
	return nil
}

// apply runs one already-checked mutation.
func (m *Model) apply(op Op) (inverse Op, shapeChanged bool) {
	shapeChanged = op.Path.IsRoot() &&
		(op.Kind == OpInsertMember || op.Kind == OpRemoveMember)

	switch op.Kind {
	case OpSetScalar:
		target := At(m.root, op.Path)
		inverse = Op{Kind: OpSetScalar, Path: op.Path, Value: target.Clone()}
		target.Kind = op.Value.Kind
		target.Value = op.Value.Value
		target.Raw = op.Value.Raw

	case OpInsertMember:
		parent := At(m.root, op.Path)
		inverse = Op{Kind: OpRemoveMember, Path: op.Path, Name: op.Name}
		if _, idx := parent.Member(op.Name); idx >= 0 {
			// Replacing an inherited or computed-default slot in place; the
			// inverse (remove) reverts it the same way.
			parent.Members[idx].Node = op.Value.Clone()
		} else {
			pos := op.Pos
			if pos < 0 || pos > len(parent.Members) {
				pos = len(parent.Members)
			}
			member := Member{Name: op.Name, Node: op.Value.Clone()}
			parent.Members = append(parent.Members, Member{})
			copy(parent.Members[pos+1:], parent.Members[pos:])
			parent.Members[pos] = member
		}

	case OpRemoveMember:
		parent := At(m.root, op.Path)
		member, idx := parent.Member(op.Name)
		inverse = Op{Kind: OpInsertMember, Path: op.Path, Name: op.Name, Pos: idx, Value: member.Clone()}
		baseMember := m.baseMemberAt(op.Path, op.Name)
		sn, _ := m.schemaAt(op.Path)
		var ms *schema.Node
		if sn != nil {
			ms = sn.Member(op.Name)
		}
		switch {
		case baseMember != nil:
			// Revert in place to the inherited value.
			parent.Members[idx].Node = baseMember.Clone()
		case ms != nil:
			// Revert in place to the computed default.
			parent.Members[idx].Node = defaultNode(ms, 0)
		default:
			parent.Members = append(parent.Members[:idx], parent.Members[idx+1:]...)
		}

	case OpInsertElement:
		parent := At(m.root, op.Path)
		inverse = Op{Kind: OpRemoveElement, Path: op.Path, Index: op.Index}
		parent.Elems = append(parent.Elems, nil)
		copy(parent.Elems[op.Index+1:], parent.Elems[op.Index:])
		parent.Elems[op.Index] = op.Value.Clone()

	case OpRemoveElement:
		parent := At(m.root, op.Path)
		inverse = Op{Kind: OpInsertElement, Path: op.Path, Index: op.Index, Value: parent.Elems[op.Index].Clone()}
		parent.Elems = append(parent.Elems[:op.Index], parent.Elems[op.Index+1:]...)
	}

	if shapeChanged {
		// Root shape changed: full provenance/descriptor recomputation.
		// Costly on very large documents, and allowed to be.
		m.refresh(nil)
	} else {
		m.refresh(op.Path)
		m.fixAncestors(op.Path)
	}
	return inverse, shapeChanged
}

// refresh re-synthesizes schema defaults and recomputes provenance for the
// subtree at path (nil = whole document).
func (m *Model) refresh(path models.Path) {
	node := At(m.root, path)
	if node == nil {
		return
	}
	sn, err := m.schemaAt(path)
	if err != nil {
		sn = nil
	}
	synthesize(node, sn, 0)
	annotate(node, m.baseAt(path), sn)
}

// fixAncestors recomputes container provenance up the path after a subtree
// change, so a first override inside an inherited container flips the
// container to overridden (and vice versa on undo).
func (m *Model) fixAncestors(path models.Path) {
	for i := len(path) - 1; i >= 0; i-- {
		prefix := path[:i]
		node := At(m.root, prefix)
		if node == nil {
			continue
		}
		sn, _ := m.schemaAt(prefix)
		if node.Kind == KindArray {
			// Arrays override wholesale: any change inside re-stamps the
			// whole array against its base counterpart.
			annotate(node, m.baseAt(prefix), sn)
			continue
		}
		if node.Kind != KindObject {
			continue
		}
		overridden := false
		for _, mem := range node.Members {
			if mem.Node.Prov == ProvOverridden {
				overridden = true
				break
			}
		}
		node.Prov = containerProv(node, m.baseAt(prefix), sn, overridden)
	}
}

func (m *Model) baseAt(path models.Path) *Node {
	return At(m.base, path)
}

func (m *Model) baseMemberAt(path models.Path, name string) *Node {
	parent := m.baseAt(path)
	if parent == nil || parent.Kind != KindObject {
		return nil
	}
	n, _ := parent.Member(name)
	return n
}

// Delta builds the overlay tree to persist: only overridden content plus
// members the schema marks always-materialized. Returns nil when the
// document is pure inheritance (no overlay file should exist).
func (m *Model) Delta() *Node {
	return buildDelta(m.root, m.Schema, m.base == nil)
}

// EncodeDelta serializes the delta. ok is false for pure inheritance.
func (m *Model) EncodeDelta() (data []byte, ok bool) {
	d := m.Delta()
	if d == nil {
		return nil, false
	}
	return Encode(d), true
}

func buildDelta(n *Node, sn *schema.Node, wholeFile bool) *Node {
	if n == nil {
		return nil
	}
	if n.Prov != ProvOverridden && !wholeFile {
		return nil
	}
	if n.Kind != KindObject || wholeFile {
		// Scalars, arrays and opaque subtrees persist wholesale, as do
		// overlay-only files.
		return stripDefaults(n)
	}
	out := Object()
	for _, m := range n.Members {
		var ms *schema.Node
		if sn != nil && sn.Type == schema.TypeObject {
			ms = sn.Member(m.Name)
		}
		always := ms != nil && ms.Materialize == schema.MaterializeAlways
		switch {
		case m.Node.Prov == ProvOverridden:
			if child := buildDelta(m.Node, ms, false); child != nil {
				out.Members = append(out.Members, Member{Name: m.Name, Node: child})
			}
		case always && m.Node.Prov != ProvDefault:
			out.Members = append(out.Members, Member{Name: m.Name, Node: stripDefaults(m.Node)})
		}
	}
	if len(out.Members) == 0 {
		return nil
	}
	return out
}

// stripDefaults clones a subtree dropping computed-default members, which
// belong to neither file.
func stripDefaults(n *Node) *Node {
	out := &Node{Kind: n.Kind, Value: n.Value, Raw: n.Raw, Prov: n.Prov}
	for _, m := range n.Members {
		if m.Node.Prov == ProvDefault {
			continue
		}
		out.Members = append(out.Members, Member{Name: m.Name, Node: stripDefaults(m.Node)})
	}
	for _, e := range n.Elems {
		out.Elems = append(out.Elems, stripDefaults(e))
	}
	return out
}
