package document

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/starford/othala/internal/models"
)

// ParsePath parses the dotted path syntax used on the collaborator surfaces
// ("stats.resists[2].value") into path steps. "" and "$" address the root.
// Only child and index fragments are accepted; wildcard, descent, slice and
// filter expressions are not addressable document locations.
func ParsePath(s string) (models.Path, error) {
	if s == "" || s == "$" {
		return nil, nil
	}
	expr, err := jp.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("document: parse path %q: %w", s, err)
	}
	var out models.Path
	for _, frag := range expr {
		switch t := frag.(type) {
		case jp.Root:
			// Leading '$' is optional; ignore it.
		case jp.Child:
			out = append(out, models.MemberStep(string(t)))
		case jp.Nth:
			out = append(out, models.IndexStep(int(t)))
		default:
			return nil, fmt.Errorf("document: unsupported path fragment in %q", s)
		}
	}
	return out, nil
}

// At walks the tree along path and returns the addressed node, or nil when
// any step does not resolve.
func At(root *Node, path models.Path) *Node {
	n := root
	for _, step := range path {
		if n == nil {
			return nil
		}
		if step.IsIndex {
			if n.Kind != KindArray || step.Index < 0 || step.Index >= len(n.Elems) {
				return nil
			}
			n = n.Elems[step.Index]
			continue
		}
		if n.Kind != KindObject {
			return nil
		}
		n, _ = n.Member(step.Key)
	}
	return n
}
