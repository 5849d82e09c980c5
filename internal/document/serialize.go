package document

import (
	"bytes"
	"encoding/json"
	"strings"
)

// indentUnit matches the original editor's output (json indent=4).
const indentUnit = "    "

// Encode serializes a node tree to JSON with 4-space indentation and a
// trailing newline. Encoding is deterministic, so parse→encode is stable and
// an unmutated load→save round-trips byte-identically.
func Encode(n *Node) []byte {
	var b bytes.Buffer
	writeNode(&b, n, 0)
	b.WriteByte('\n')
	return b.Bytes()
}

func writeNode(b *bytes.Buffer, n *Node, depth int) {
	if n == nil {
		b.WriteString("null")
		return
	}
	switch n.Kind {
	case KindOpaque:
		// Uninterpreted subtree: written back verbatim.
		b.WriteString(strings.TrimRight(n.Raw, "\n"))
	case KindScalar:
		writeScalar(b, n.Value)
	case KindArray:
		if len(n.Elems) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, e := range n.Elems {
			writeIndent(b, depth+1)
			writeNode(b, e, depth+1)
			if i < len(n.Elems)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		writeIndent(b, depth)
		b.WriteByte(']')
	case KindObject:
		if len(n.Members) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for i, m := range n.Members {
			writeIndent(b, depth+1)
			b.WriteString(quote(m.Name))
			b.WriteString(": ")
			writeNode(b, m.Node, depth+1)
			if i < len(n.Members)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		writeIndent(b, depth)
		b.WriteByte('}')
	}
}

func writeScalar(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(quote(t))
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(string(t))
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			b.WriteString("null")
			return
		}
		b.Write(raw)
	}
}

func writeIndent(b *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString(indentUnit)
	}
}

// quote JSON-quotes a string without HTML escaping, matching the original
// editor's files (Python json does not escape <, >, &).
func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimRight(b.String(), "\n")
}
