// Package docnode defines a generic document tree — the shape the schema
// front-end consumes, deliberately decoupled from any one textual format.
// [LoadYAML] turns a concrete YAML document into this tree once;
// everything downstream of the front-end never imports a YAML library.
package docnode

import "fmt"

// Kind identifies the shape of a [Node].
type Kind uint8

const (
	// KindScalar is a leaf value: string, integer, float, bool, or null.
	KindScalar Kind = iota
	// KindSeq is an ordered sequence of nodes.
	KindSeq
	// KindMap is an ordered mapping of string keys to nodes.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	default:
		return "unknown"
	}
}

// Span is a half-open source range used for diagnostics.
type Span struct {
	File        string
	Line, Col   int // 1-based, start of the node
	EndLine     int
	EndCol      int
}

// String renders a span as "file:line:col".
func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Col)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// Node is one element of a document tree: a mapping, a sequence, or a
// scalar, each carrying the source [Span] it was parsed from.
type Node struct {
	Kind  Kind
	Span  Span
	Value string // valid when Kind == KindScalar; the raw scalar text
	Seq   []*Node
	Map   []MapEntry // preserves document order; use Field for lookup
}

// MapEntry is one key/value pair of a [KindMap] node.
type MapEntry struct {
	Key      string
	KeySpan  Span
	Value    *Node
}

// Field returns the value for key in a map node, and whether it was present.
// Returns (nil, false) for a non-map node.
func (n *Node) Field(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMap {
		return nil, false
	}
	for _, e := range n.Map {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the ordered set of keys of a map node, or nil otherwise.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	keys := make([]string, len(n.Map))
	for i, e := range n.Map {
		keys[i] = e.Key
	}
	return keys
}

// IsNull reports whether n is a nil node or a YAML null scalar.
func (n *Node) IsNull() bool {
	return n == nil || (n.Kind == KindScalar && (n.Value == "" || n.Value == "null" || n.Value == "~"))
}
