package document

import (
	"encoding/json"
	"fmt"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/schema"
)

// OpKind enumerates the supported mutations.
type OpKind int

const (
	OpSetScalar OpKind = iota
	OpInsertMember
	OpRemoveMember
	OpInsertElement
	OpRemoveElement
)

func (k OpKind) String() string {
	switch k {
	case OpSetScalar:
		return "set"
	case OpInsertMember:
		return "insert-member"
	case OpRemoveMember:
		return "remove-member"
	case OpInsertElement:
		return "insert-element"
	case OpRemoveElement:
		return "remove-element"
	default:
		return "unknown"
	}
}

// ParseOpKind maps the wire names used by the collaborator surfaces.
func ParseOpKind(s string) (OpKind, error) {
	switch s {
	case "set":
		return OpSetScalar, nil
	case "insert-member":
		return OpInsertMember, nil
	case "remove-member":
		return OpRemoveMember, nil
	case "insert-element":
		return OpInsertElement, nil
	case "remove-element":
		return OpRemoveElement, nil
	default:
		return 0, fmt.Errorf("document: unknown operation %q: %w", s, apperr.ErrInvalidMutation)
	}
}

// Op is one mutation against a document.
//
//   - OpSetScalar: Path addresses the scalar node; Value holds the new scalar.
//   - OpInsertMember: Path addresses the parent object; Name and Value set the
//     member. Inserting over an inherited or computed-default slot replaces it
//     in place; Pos (-1 = append) places genuinely new members.
//   - OpRemoveMember: Path addresses the parent object; Name selects the
//     member. Removal strips the overlay contribution: a base-backed member
//     reverts in place to its inherited value, a defaulted one to its
//     computed default, anything else disappears.
//   - OpInsertElement / OpRemoveElement: Path addresses the array; Index the
//     position.
type Op struct {
	Kind  OpKind
	Path  models.Path
	Name  string
	Pos   int
	Index int
	Value *Node
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("document: "+format+": %w", append(args, apperr.ErrInvalidMutation)...)
}

// checkShape verifies the structural preconditions a mutation needs to run:
// the addressed nodes exist and have the right kinds, indexes are in range.
// It is the only validation history replay gets.
func (m *Model) checkShape(op Op) error {
	switch op.Kind {
	case OpSetScalar:
		target := At(m.root, op.Path)
		if target == nil {
			return invalid("set %s: no such node", op.Path)
		}
		if target.Kind == KindObject || target.Kind == KindArray {
			return invalid("set %s: target is a %s, not a scalar", op.Path, target.Kind)
		}
		if op.Value == nil || (op.Value.Kind != KindScalar && op.Value.Kind != KindOpaque) {
			return invalid("set %s: replacement must be a scalar", op.Path)
		}
	case OpInsertMember:
		parent := At(m.root, op.Path)
		if parent == nil || parent.Kind != KindObject {
			return invalid("insert %s.%s: parent is not an object", op.Path, op.Name)
		}
		if op.Name == "" {
			return invalid("insert at %s: empty member name", op.Path)
		}
		if op.Value == nil {
			return invalid("insert %s.%s: missing value", op.Path, op.Name)
		}
	case OpRemoveMember:
		parent := At(m.root, op.Path)
		if parent == nil || parent.Kind != KindObject {
			return invalid("remove %s.%s: parent is not an object", op.Path, op.Name)
		}
		if _, idx := parent.Member(op.Name); idx < 0 {
			return invalid("remove %s.%s: no such member", op.Path, op.Name)
		}
	case OpInsertElement:
		parent := At(m.root, op.Path)
		if parent == nil || parent.Kind != KindArray {
			return invalid("insert element at %s: parent is not an array", op.Path)
		}
		if op.Value == nil {
			return invalid("insert element at %s: missing value", op.Path)
		}
		if op.Index < 0 || op.Index > len(parent.Elems) {
			return invalid("insert element at %s[%d]: index out of range", op.Path, op.Index)
		}
	case OpRemoveElement:
		parent := At(m.root, op.Path)
		if parent == nil || parent.Kind != KindArray {
			return invalid("remove element at %s: parent is not an array", op.Path)
		}
		if op.Index < 0 || op.Index >= len(parent.Elems) {
			return invalid("remove element at %s[%d]: index out of range", op.Path, op.Index)
		}
	default:
		return invalid("unknown operation kind %d", op.Kind)
	}
	return nil
}

// validate rejects fresh user input before any state change. On top of the
// structural checks it enforces schema policy against the current document:
// readonly and closed flags, overlay-contribution requirements, scalar types
// and enum options.
func (m *Model) validate(op Op) error {
	if err := m.checkShape(op); err != nil {
		return err
	}
	switch op.Kind {
	case OpSetScalar:
		desc, err := m.Describe(op.Path)
		if err != nil {
			return err
		}
		if desc.ReadOnly {
			return invalid("set %s: property is read-only", op.Path)
		}
		if err := checkScalarAgainst(desc, op.Value); err != nil {
			return err
		}
	case OpInsertMember:
		parent := At(m.root, op.Path)
		desc, err := m.Describe(op.Path)
		if err != nil {
			return err
		}
		if desc.ReadOnly {
			return invalid("insert %s.%s: object is read-only", op.Path, op.Name)
		}
		sn, _ := m.schemaAt(op.Path)
		declared := sn != nil && sn.Member(op.Name) != nil
		if desc.Closed && !declared {
			return invalid("insert %s.%s: object is closed", op.Path, op.Name)
		}
		if existing, idx := parent.Member(op.Name); idx >= 0 && existing.Prov == ProvOverridden {
			return invalid("insert %s.%s: member already present", op.Path, op.Name)
		}
		if declared {
			memberDesc := schema.Describe(sn.Member(op.Name))
			if memberDesc.ReadOnly {
				return invalid("insert %s.%s: property is read-only", op.Path, op.Name)
			}
			if op.Value.Kind == KindScalar {
				if err := checkScalarAgainst(memberDesc, op.Value); err != nil {
					return err
				}
			}
		}
	case OpRemoveMember:
		parent := At(m.root, op.Path)
		member, _ := parent.Member(op.Name)
		if member.Prov != ProvOverridden {
			return invalid("remove %s.%s: member has no overlay contribution", op.Path, op.Name)
		}
		if sn, _ := m.schemaAt(op.Path); sn != nil {
			if ms := sn.Member(op.Name); ms != nil {
				if ms.ReadOnly {
					return invalid("remove %s.%s: property is read-only", op.Path, op.Name)
				}
			}
		}
	case OpInsertElement:
		desc, err := m.Describe(op.Path)
		if err != nil {
			return err
		}
		if desc.ReadOnly {
			return invalid("insert element at %s: array is read-only", op.Path)
		}
	case OpRemoveElement:
		desc, err := m.Describe(op.Path)
		if err != nil {
			return err
		}
		if desc.ReadOnly {
			return invalid("remove element at %s: array is read-only", op.Path)
		}
	}
	return nil
}

// checkScalarAgainst enforces the schema type and enum options on a scalar
// replacement value.
func checkScalarAgainst(desc *schema.Descriptor, v *Node) error {
	if v.Kind != KindScalar {
		return nil
	}
	switch desc.Type {
	case schema.TypeString:
		if _, ok := v.Value.(string); !ok && v.Value != nil {
			return invalid("value %v is not a string", v.Value)
		}
	case schema.TypeNumber:
		if _, ok := v.Value.(json.Number); !ok {
			return invalid("value %v is not a number", v.Value)
		}
	case schema.TypeBool:
		if _, ok := v.Value.(bool); !ok {
			return invalid("value %v is not a bool", v.Value)
		}
	}
	if len(desc.Enum) > 0 {
		s, ok := v.Value.(string)
		if !ok {
			return invalid("enum property requires a string value")
		}
		for _, e := range desc.Enum {
			if e == s {
				return nil
			}
		}
		return invalid("value %q is not one of the declared options", s)
	}
	return nil
}
