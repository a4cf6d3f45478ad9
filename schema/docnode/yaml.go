package docnode

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadYAML parses src as a YAML document and returns its root [Node].
// file is used only to stamp [Span.File] for diagnostics.
func LoadYAML(file string, src []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if len(doc.Content) == 0 {
		// An empty document decodes to a Node with Kind DocumentNode
		// and no content; treat it as an empty mapping.
		return &Node{Kind: KindMap, Span: Span{File: file, Line: 1, Col: 1}}, nil
	}
	return fromYAML(file, doc.Content[0]), nil
}

func fromYAML(file string, y *yaml.Node) *Node {
	span := Span{File: file, Line: y.Line, Col: y.Column}
	switch y.Kind {
	case yaml.MappingNode:
		n := &Node{Kind: KindMap, Span: span}
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			n.Map = append(n.Map, MapEntry{
				Key:     k.Value,
				KeySpan: Span{File: file, Line: k.Line, Col: k.Column},
				Value:   fromYAML(file, v),
			})
		}
		return n
	case yaml.SequenceNode:
		n := &Node{Kind: KindSeq, Span: span}
		for _, e := range y.Content {
			n.Seq = append(n.Seq, fromYAML(file, e))
		}
		return n
	case yaml.AliasNode:
		return fromYAML(file, y.Alias)
	default: // yaml.ScalarNode
		return &Node{Kind: KindScalar, Span: span, Value: y.Value}
	}
}
