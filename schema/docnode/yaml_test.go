package docnode

import "testing"

func TestLoadYAML(t *testing.T) {
	src := []byte("name: demo\ntypes:\n  - name: Header\n    type: struct\n    fields:\n      - name: magic\n        type: u32\n")
	root, err := LoadYAML("demo.schema.yaml", src)
	if err != nil {
		t.Fatal(err)
	}
	if root.Kind != KindMap {
		t.Fatalf("root kind = %v, want map", root.Kind)
	}
	name, ok := root.Field("name")
	if !ok || name.Value != "demo" {
		t.Fatalf("name = %+v, ok=%v", name, ok)
	}
	types, ok := root.Field("types")
	if !ok || types.Kind != KindSeq || len(types.Seq) != 1 {
		t.Fatalf("types = %+v, ok=%v", types, ok)
	}
	hdr := types.Seq[0]
	fields, ok := hdr.Field("fields")
	if !ok || len(fields.Seq) != 1 {
		t.Fatalf("fields = %+v, ok=%v", fields, ok)
	}
	if hdr.Span.Line == 0 {
		t.Error("expected a non-zero line span")
	}
}

func TestLoadYAMLEmpty(t *testing.T) {
	root, err := LoadYAML("empty.schema.yaml", []byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if root.Kind != KindMap || len(root.Map) != 0 {
		t.Fatalf("expected empty map, got %+v", root)
	}
}
