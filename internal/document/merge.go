package document

import "github.com/starford/othala/internal/schema"

// merge composes base and overlay content into one tree. Objects merge per
// member recursively (overlay wins per leaf, inherited siblings survive);
// arrays and scalars are replaced wholesale by the overlay. Provenance is not
// set here; annotate derives it afterwards, so the classification is always
// a pure function of (tree, base, schema) and never drifts under mutation.
func merge(base, ovl *Node) *Node {
	if ovl == nil {
		return base.Clone()
	}
	if base == nil {
		return ovl.Clone()
	}
	if base.Kind != KindObject || ovl.Kind != KindObject {
		return ovl.Clone()
	}
	out := Object()
	for _, bm := range base.Members {
		if om, idx := ovl.Member(bm.Name); idx >= 0 {
			out.Members = append(out.Members, Member{Name: bm.Name, Node: merge(bm.Node, om)})
		} else {
			out.Members = append(out.Members, Member{Name: bm.Name, Node: bm.Node.Clone()})
		}
	}
	for _, om := range ovl.Members {
		if _, idx := base.Member(om.Name); idx < 0 {
			out.Members = append(out.Members, Member{Name: om.Name, Node: om.Node.Clone()})
		}
	}
	return out
}

// synthesize inserts every declared-but-absent object member, using the
// schema default or a type-appropriate zero value. Synthesized members are
// appended in declaration order; annotate later tags them ProvDefault.
func synthesize(n *Node, sn *schema.Node, depth int) {
	if n == nil || sn == nil || depth > 64 {
		return
	}
	switch {
	case sn.Type == schema.TypeObject && n.Kind == KindObject:
		for i := range sn.Members {
			sm := &sn.Members[i]
			child, idx := n.Member(sm.Name)
			if idx < 0 {
				child = defaultNode(&sm.Node, depth+1)
				n.Members = append(n.Members, Member{Name: sm.Name, Node: child})
				continue
			}
			synthesize(child, &sm.Node, depth+1)
		}
	case sn.Type == schema.TypeArray && n.Kind == KindArray:
		for _, e := range n.Elems {
			synthesize(e, sn.Element, depth+1)
		}
	}
}

// defaultNode builds the synthesized value for a missing declared member.
func defaultNode(sn *schema.Node, depth int) *Node {
	if sn.Default != nil {
		return FromValue(sn.Default)
	}
	switch sn.Type {
	case schema.TypeObject:
		n := Object()
		synthesize(n, sn, depth)
		return n
	case schema.TypeArray:
		return Array()
	default:
		return FromValue(sn.ZeroValue())
	}
}

// annotate recomputes provenance for the whole subtree:
//
//   - equal to the base counterpart → Inherited
//   - absent from base and equal to the synthesized schema value → ComputedDefault
//   - otherwise → Overridden
//
// Containers are Overridden iff the overlay contributes anywhere in their
// subtree; an array that differs from base is overridden wholesale, children
// included.
func annotate(n, base *Node, sn *schema.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindObject:
		overridden := false
		for _, m := range n.Members {
			var childBase *Node
			if base != nil && base.Kind == KindObject {
				childBase, _ = base.Member(m.Name)
			}
			var childSchema *schema.Node
			if sn != nil && sn.Type == schema.TypeObject {
				childSchema = sn.Member(m.Name)
			}
			annotate(m.Node, childBase, childSchema)
			if m.Node.Prov == ProvOverridden {
				overridden = true
			}
		}
		n.Prov = containerProv(n, base, sn, overridden)
	case KindArray:
		switch {
		case base != nil && Equal(n, base):
			setProv(n, ProvInherited)
		case base == nil && sn != nil && Equal(n, defaultNode(sn, 0)):
			setProv(n, ProvDefault)
		default:
			setProv(n, ProvOverridden)
		}
	default: // scalar, opaque
		switch {
		case base != nil && Equal(n, base):
			n.Prov = ProvInherited
		case base == nil && sn != nil && Equal(n, defaultNode(sn, 0)):
			n.Prov = ProvDefault
		default:
			n.Prov = ProvOverridden
		}
	}
}

func containerProv(n, base *Node, sn *schema.Node, overridden bool) Provenance {
	if overridden {
		return ProvOverridden
	}
	if base != nil {
		return ProvInherited
	}
	if sn != nil {
		return ProvDefault
	}
	// No base counterpart and undeclared, yet nothing overridden inside:
	// only possible for an empty container the overlay introduced.
	if n.Kind == KindObject && len(n.Members) == 0 {
		return ProvOverridden
	}
	// All children are defaults.
	return ProvDefault
}

// setProv stamps a provenance over a whole subtree (wholesale semantics for
// arrays and replaced values).
func setProv(n *Node, p Provenance) {
	n.Prov = p
	for _, m := range n.Members {
		setProv(m.Node, p)
	}
	for _, e := range n.Elems {
		setProv(e, p)
	}
}
