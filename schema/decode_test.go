package schema

import (
	"testing"

	"github.com/binschema/binschema/schema/docnode"
)

func mustLoad(t *testing.T, src string) *docnode.Node {
	t.Helper()
	n, err := docnode.LoadYAML("test.schema.yaml", []byte(src))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	return n
}

func TestDecodeUnitPNGChunk(t *testing.T) {
	src := `
name: png_chunk
endianness: big
types:
  - name: Chunk
    type: struct
    fields:
      - name: length
        type: u32
      - name: chunk_type
        type: u8[4]
      - name: data
        type: u8[length]
      - name: crc
        type: u32
  - name: Image
    type: struct
    fields:
      - name: chunks
        type: Chunk[]
        until: chunk_type equals 'IEND'
`
	root := mustLoad(t, src)
	unit, includes, errs := DecodeUnit(root)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(includes) != 0 {
		t.Fatalf("unexpected includes: %v", includes)
	}
	if unit.Name != "png_chunk" || unit.Endian != EndianBig {
		t.Fatalf("unit = %+v", unit)
	}
	if len(unit.Types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(unit.Types))
	}

	chunk := unit.Types[0]
	if !chunk.IsStruct() || len(chunk.Struct.Fields) != 4 {
		t.Fatalf("Chunk = %+v", chunk)
	}
	lengthField := chunk.Struct.Fields[0]
	if sc, ok := lengthField.Kind.(ScalarKind); !ok || sc.Width != 32 || sc.Signed != Unsigned {
		t.Fatalf("length field kind = %+v", lengthField.Kind)
	}
	typeField := chunk.Struct.Fields[1]
	arr, ok := typeField.Kind.(FixedArrayKind)
	if !ok || arr.Length != 4 {
		t.Fatalf("chunk_type field kind = %+v", typeField.Kind)
	}
	if _, ok := arr.Elem.(ScalarKind); !ok {
		t.Fatalf("chunk_type element kind = %+v", arr.Elem)
	}
	dataField := chunk.Struct.Fields[2]
	dyn, ok := dataField.Kind.(DynamicArrayKind)
	if !ok || dyn.LengthField != "length" {
		t.Fatalf("data field kind = %+v", dataField.Kind)
	}

	image := unit.Types[1]
	chunksField := image.Struct.Fields[0]
	until, ok := chunksField.Kind.(UntilArrayKind)
	if !ok {
		t.Fatalf("chunks field kind = %+v", chunksField.Kind)
	}
	if until.Predicate == nil {
		t.Fatal("expected a predicate, got until-EOF")
	}
	if until.Predicate.Kind != ExprBinary || until.Predicate.Op != OpEq {
		t.Fatalf("predicate = %+v", until.Predicate)
	}
	if until.Predicate.Left.Kind != ExprIdent || until.Predicate.Left.Name != "chunk_type" {
		t.Fatalf("predicate left = %+v", until.Predicate.Left)
	}
	if until.Predicate.Right.Kind != ExprBytesLit || string(until.Predicate.Right.BytesVal) != "IEND" {
		t.Fatalf("predicate right = %+v", until.Predicate.Right)
	}
}

func TestDecodeUnitMissingName(t *testing.T) {
	root := mustLoad(t, "types: []\n")
	_, _, errs := DecodeUnit(root)
	if len(errs) == 0 {
		t.Fatal("expected an error for missing name")
	}
	if errs[0].Code != CodeSchemaError {
		t.Fatalf("unexpected error code: %v", errs[0].Code)
	}
}

func TestDecodeUnitDuplicateType(t *testing.T) {
	src := `
name: dup
types:
  - name: A
    type: struct
    fields: []
  - name: A
    type: struct
    fields: []
`
	root := mustLoad(t, src)
	_, _, errs := DecodeUnit(root)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 duplicate-type error, got %d: %v", len(errs), errs)
	}
}

func TestDecodeUnitInclude(t *testing.T) {
	src := `
name: with_includes
include:
  - ./shared.schema.yaml
  - oci://ghcr.io/acme/binschema-shared:0.2.0
types: []
`
	root := mustLoad(t, src)
	unit, includes, errs := DecodeUnit(root)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(includes) != 2 || includes[0] != "./shared.schema.yaml" {
		t.Fatalf("includes = %v", includes)
	}
	if unit.Name != "with_includes" {
		t.Fatalf("unit = %+v", unit)
	}
}

func TestMergeIncludesPreservesOrderAndRejectsDuplicates(t *testing.T) {
	base := &Unit{Name: "root", Types: []*TypeDef{{Name: "A"}, {Name: "B"}}}
	inc1 := &Unit{Name: "inc1", Types: []*TypeDef{{Name: "C"}}}
	inc2 := &Unit{Name: "inc2", Types: []*TypeDef{{Name: "B"}, {Name: "D"}}}

	merged, errs := MergeIncludes(base, inc1, inc2)
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly one duplicate-name error", errs)
	}

	var names []string
	for _, td := range merged.Types {
		names = append(names, td.Name)
	}
	want := []string{"A", "B", "C", "D"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestParseTypeExprForms(t *testing.T) {
	tests := []struct {
		expr string
		kind Kind
	}{
		{"u8", KindScalar},
		{"i64", KindScalar},
		{"u3", KindBits},
		{"u8[4]", KindFixedArray},
		{"u8[length]", KindDynamicArray},
		{"Chunk[]", KindUntilArray},
		{"str[8]", KindString},
		{"str(name_len)", KindString},
		{"cstr", KindString},
		{"blob(size)", KindBlob},
		{"Header", KindNamedStruct},
	}
	for _, tt := range tests {
		k, err := parseTypeExpr(tt.expr, docnode.Span{})
		if err != nil {
			t.Fatalf("parseTypeExpr(%q): %v", tt.expr, err)
		}
		if k.fieldKind() != tt.kind {
			t.Errorf("parseTypeExpr(%q) kind = %v, want %v", tt.expr, k.fieldKind(), tt.kind)
		}
	}
}

func TestParseTypeExprInvalidWidth(t *testing.T) {
	if _, err := parseTypeExpr("u9", docnode.Span{}); err == nil {
		t.Fatal("expected error for u9")
	}
}
