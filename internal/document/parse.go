package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Parse decodes one JSON root value into a node tree, preserving object
// member order and exact number literals.
//
// Parse never fails: a malformed document degrades to a single opaque node
// carrying the raw text, so the rest of the load keeps going (structural
// problems are recovered locally, not escalated).
func Parse(data []byte) *Node {
	n, err := parseStrict(data)
	if err != nil {
		return &Node{Kind: KindOpaque, Raw: string(data)}
	}
	return n
}

func parseStrict(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	// Trailing garbage after the root value is malformed too.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("document: trailing content after root value")
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("document: non-string object key")
				}
				child, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.Members = append(n.Members, Member{Name: key, Node: child})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return n, nil
		case '[':
			n := Array()
			for dec.More() {
				child, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				n.Elems = append(n.Elems, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return n, nil
		default:
			return nil, fmt.Errorf("document: unexpected delimiter %v", t)
		}
	case string, bool, json.Number, nil:
		return Scalar(tok), nil
	default:
		return nil, fmt.Errorf("document: unexpected token %v", tok)
	}
}
