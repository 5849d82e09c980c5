// Package schema loads per-kind schema definitions and derives property
// descriptors for document values.
//
// Definitions are YAML files, one per entity/data kind, loaded once at startup
// and treated as read-only for the process lifetime. Because the definition
// tree never changes after load, the registry is safe for concurrent reads
// across documents without locking.
package schema

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Type is the declared primitive or container kind of a schema node.
type Type string

const (
	TypeString Type = "string"
	TypeNumber Type = "number"
	TypeBool   Type = "bool"
	TypeObject Type = "object"
	TypeArray  Type = "array"
	// TypeAny accepts any value shape; members of such nodes are never
	// synthesized and carry no nested declarations.
	TypeAny Type = "any"
)

// RefKind is the schema-declared semantic meaning of a string leaf.
// Classification is driven by this annotation alone, never by value content.
type RefKind string

const (
	RefNone            RefKind = ""
	RefEntityID        RefKind = "entity-id"
	RefLocalizationKey RefKind = "localization-key"
	RefTexturePath     RefKind = "texture-path"
	RefSoundPath       RefKind = "sound-path"
	RefFilePath        RefKind = "file-path"
)

// MaterializeAlways marks a member that is written to the overlay file even
// when its value equals the inherited base value.
const MaterializeAlways = "always"

// maxDepth bounds schema recursion. Entity schemas do not self-embed in
// practice, but the walker must not assume that.
const maxDepth = 64

// Node is a recursive description of an allowed value shape.
type Node struct {
	Type        Type     `yaml:"type"`
	Required    bool     `yaml:"required"`
	ReadOnly    bool     `yaml:"readonly"`
	Closed      bool     `yaml:"closed"`
	Default     any      `yaml:"default"`
	Enum        []string `yaml:"enum"`
	Reference   RefKind  `yaml:"reference"`
	Materialize string   `yaml:"materialize"`
	Members     []Member `yaml:"members"`
	Element     *Node    `yaml:"element"`
}

// Member is one declared object member. The list form keeps declaration order,
// which drives the order of synthesized defaults.
type Member struct {
	Name string `yaml:"name"`
	Node `yaml:",inline"`
}

// Definition is one loaded schema file: a kind name plus its root node.
type Definition struct {
	Kind string `yaml:"kind"`
	Root *Node  `yaml:"root"`
}

// Validate checks the definition header and the whole node tree.
func (d *Definition) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.Kind, validation.Required),
		validation.Field(&d.Root, validation.Required),
	); err != nil {
		return err
	}
	return d.Root.validate(0)
}

func (n *Node) validate(depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("schema: node nesting exceeds %d levels", maxDepth)
	}
	if err := validation.ValidateStruct(n,
		validation.Field(&n.Type, validation.Required, validation.In(
			TypeString, TypeNumber, TypeBool, TypeObject, TypeArray, TypeAny)),
		validation.Field(&n.Materialize, validation.In("", MaterializeAlways)),
		validation.Field(&n.Reference, validation.In(
			RefNone, RefEntityID, RefLocalizationKey, RefTexturePath, RefSoundPath, RefFilePath)),
	); err != nil {
		return err
	}
	if n.Type != TypeObject && len(n.Members) > 0 {
		return fmt.Errorf("schema: members declared on non-object node")
	}
	if n.Type != TypeArray && n.Element != nil {
		return fmt.Errorf("schema: element declared on non-array node")
	}
	if n.Type == TypeArray && n.Element == nil {
		return fmt.Errorf("schema: array node missing element schema")
	}
	seen := make(map[string]struct{}, len(n.Members))
	for i := range n.Members {
		m := &n.Members[i]
		if m.Name == "" {
			return fmt.Errorf("schema: object member without a name")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("schema: duplicate member %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if err := m.Node.validate(depth + 1); err != nil {
			return fmt.Errorf("member %q: %w", m.Name, err)
		}
	}
	if n.Element != nil {
		if err := n.Element.validate(depth + 1); err != nil {
			return fmt.Errorf("element: %w", err)
		}
	}
	return nil
}

// Member returns the declared member with the given name, or nil.
func (n *Node) Member(name string) *Node {
	for i := range n.Members {
		if n.Members[i].Name == name {
			return &n.Members[i].Node
		}
	}
	return nil
}

// ZeroValue returns the schema default for the node, or a type-appropriate
// zero value when no default is declared.
func (n *Node) ZeroValue() any {
	if n.Default != nil {
		return n.Default
	}
	switch n.Type {
	case TypeString:
		return ""
	case TypeNumber:
		return 0
	case TypeBool:
		return false
	default:
		return nil
	}
}
