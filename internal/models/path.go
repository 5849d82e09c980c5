package models

import (
	"fmt"
	"strings"
)

// PathStep addresses one hop inside a document tree: an object member by name
// or an array element by index.
type PathStep struct {
	Key     string
	Index   int
	IsIndex bool
}

// MemberStep returns a step addressing an object member.
func MemberStep(name string) PathStep { return PathStep{Key: name} }

// IndexStep returns a step addressing an array element.
func IndexStep(i int) PathStep { return PathStep{Index: i, IsIndex: true} }

// Path addresses a node inside a document tree. The empty path is the root.
type Path []PathStep

// String renders the path in dotted form with bracketed indexes,
// e.g. "stats.resists[2].value". The root renders as "$".
func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, s := range p {
		if s.IsIndex {
			fmt.Fprintf(&b, "[%d]", s.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Parent returns the path without its last step. Parent of the root is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Child returns a new path with one more step appended.
func (p Path) Child(s PathStep) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = s
	return out
}

// IsRoot reports whether the path addresses the document root.
func (p Path) IsRoot() bool { return len(p) == 0 }
