// Package document implements the mutable in-memory document model: an
// ordered node tree parsed from JSON, merged across the base and overlay
// trees, annotated with provenance and schema descriptors, and mutated
// through invertible operations.
package document

import "encoding/json"

// Kind discriminates the node shapes.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
	// KindOpaque holds the uninterpreted text of a subtree that failed to
	// parse. Opaque nodes stay editable as raw text and round-trip verbatim.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Provenance classifies where a node's effective content originates.
// It is derived on load/merge and after every mutation, never hand-set.
type Provenance int

const (
	// ProvInherited means the value comes unmodified from the base dataset.
	ProvInherited Provenance = iota
	// ProvOverridden means the overlay contributes the value (for containers:
	// anywhere in the subtree).
	ProvOverridden
	// ProvDefault means the value is present in neither file and was
	// synthesized from the schema default.
	ProvDefault
)

func (p Provenance) String() string {
	switch p {
	case ProvInherited:
		return "inherited"
	case ProvOverridden:
		return "overridden"
	case ProvDefault:
		return "computed-default"
	default:
		return "unknown"
	}
}

// Node is one node of the live structured value.
//
// Scalar values are normalized to string, json.Number, bool or nil, so value
// equality is a plain comparison and number literals round-trip exactly.
type Node struct {
	Kind    Kind
	Value   any      // KindScalar
	Raw     string   // KindOpaque: uninterpreted source text
	Members []Member // KindObject, ordered
	Elems   []*Node  // KindArray, ordered
	Prov    Provenance
}

// Member is one named, ordered object member.
type Member struct {
	Name string
	Node *Node
}

// Scalar builds a scalar node from a normalized value.
func Scalar(v any) *Node { return &Node{Kind: KindScalar, Value: v} }

// Object builds an empty object node.
func Object() *Node { return &Node{Kind: KindObject} }

// Array builds an empty array node.
func Array() *Node { return &Node{Kind: KindArray} }

// Member returns the member node with the given name and its position,
// or (nil, -1).
func (n *Node) Member(name string) (*Node, int) {
	for i, m := range n.Members {
		if m.Name == name {
			return m.Node, i
		}
	}
	return nil, -1
}

// Clone returns a deep copy of the node, provenance included.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Value: n.Value, Raw: n.Raw, Prov: n.Prov}
	if len(n.Members) > 0 {
		out.Members = make([]Member, len(n.Members))
		for i, m := range n.Members {
			out.Members[i] = Member{Name: m.Name, Node: m.Node.Clone()}
		}
	}
	if len(n.Elems) > 0 {
		out.Elems = make([]*Node, len(n.Elems))
		for i, e := range n.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	return out
}

// Equal reports deep content equality, ignoring provenance. Object member
// order is ignored (JSON objects are semantically unordered); array order
// is significant.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindScalar:
		return scalarEqual(a.Value, b.Value)
	case KindOpaque:
		return a.Raw == b.Raw
	case KindArray:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for _, m := range a.Members {
			other, idx := b.Member(m.Name)
			if idx < 0 || !Equal(m.Node, other) {
				return false
			}
		}
		return true
	}
	return false
}

func scalarEqual(a, b any) bool {
	an, aok := a.(json.Number)
	bn, bok := b.(json.Number)
	if aok && bok {
		return string(an) == string(bn)
	}
	return a == b
}
