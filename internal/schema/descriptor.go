package schema

import (
	"fmt"

	"github.com/starford/othala/internal/models"
)

// Descriptor is the per-node property classification derived from the schema.
// Required and ReadOnly come from the schema exclusively; they are structural
// classification, never derived from current value state.
type Descriptor struct {
	Type        Type     `json:"type"`
	Required    bool     `json:"required"`
	ReadOnly    bool     `json:"readonly"`
	Closed      bool     `json:"closed"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Reference   RefKind  `json:"reference,omitempty"`
	Materialize string   `json:"materialize,omitempty"`
	// Extra marks a value member present in the document but undeclared in
	// the schema. Extra nodes carry no other classification and stay editable
	// unless the enclosing object is closed.
	Extra bool `json:"extra,omitempty"`
}

// Describe derives the descriptor for a schema node.
func Describe(n *Node) *Descriptor {
	if n == nil {
		return &Descriptor{Type: TypeAny, Extra: true}
	}
	return &Descriptor{
		Type:        n.Type,
		Required:    n.Required,
		ReadOnly:    n.ReadOnly,
		Closed:      n.Closed,
		Default:     n.Default,
		Enum:        n.Enum,
		Reference:   n.Reference,
		Materialize: n.Materialize,
	}
}

// At walks the schema tree along a document path and returns the schema node
// governing that location. A nil result with a nil error means the location
// is undeclared ("extra") but structurally reachable; an error means the path
// contradicts the schema (e.g. indexing into a declared object).
func At(root *Node, path models.Path) (*Node, error) {
	n := root
	for depth, step := range path {
		if depth > maxDepth {
			return nil, fmt.Errorf("schema: path deeper than %d levels", maxDepth)
		}
		if n == nil {
			// Inside an undeclared subtree everything is undeclared.
			return nil, nil
		}
		switch n.Type {
		case TypeObject:
			if step.IsIndex {
				return nil, fmt.Errorf("schema: index step %d into object", step.Index)
			}
			n = n.Member(step.Key)
		case TypeArray:
			if !step.IsIndex {
				return nil, fmt.Errorf("schema: member step %q into array", step.Key)
			}
			// Every element shares the one element schema.
			n = n.Element
		case TypeAny:
			return nil, nil
		default:
			return nil, fmt.Errorf("schema: step %q into %s leaf", step.Key, n.Type)
		}
	}
	return n, nil
}

// DescribeAt combines At and Describe for one path lookup.
func DescribeAt(root *Node, path models.Path) (*Descriptor, error) {
	n, err := At(root, path)
	if err != nil {
		return nil, err
	}
	return Describe(n), nil
}
