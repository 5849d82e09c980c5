package document

import (
	"encoding/json"
	"sort"
	"strconv"
)

// FromValue converts an arbitrary decoded value (YAML schema defaults, API
// request bodies) into a node tree with normalized scalar types. Map keys are
// sorted so synthesized containers are deterministic.
func FromValue(v any) *Node {
	switch t := v.(type) {
	case nil:
		return Scalar(nil)
	case string:
		return Scalar(t)
	case bool:
		return Scalar(t)
	case json.Number:
		return Scalar(t)
	case int:
		return Scalar(json.Number(strconv.Itoa(t)))
	case int64:
		return Scalar(json.Number(strconv.FormatInt(t, 10)))
	case float64:
		return Scalar(json.Number(strconv.FormatFloat(t, 'g', -1, 64)))
	case []any:
		n := Array()
		for _, e := range t {
			n.Elems = append(n.Elems, FromValue(e))
		}
		return n
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := Object()
		for _, k := range keys {
			n.Members = append(n.Members, Member{Name: k, Node: FromValue(t[k])})
		}
		return n
	default:
		// Unrepresentable value; keep something printable rather than panic.
		return Scalar(json.Number("0"))
	}
}

// ToValue converts a node tree back into plain decoded values, for JSON
// responses on the collaborator surfaces.
func (n *Node) ToValue() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return n.Value
	case KindOpaque:
		return n.Raw
	case KindArray:
		out := make([]any, len(n.Elems))
		for i, e := range n.Elems {
			out[i] = e.ToValue()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.Members))
		for _, m := range n.Members {
			out[m.Name] = m.Node.ToValue()
		}
		return out
	}
	return nil
}
