package lower

import (
	"testing"

	"github.com/binschema/binschema/lir"
	"github.com/binschema/binschema/schema"
	"github.com/binschema/binschema/schema/docnode"
)

func lowerSource(t *testing.T, src string) (*lir.Unit, []*schema.Error) {
	t.Helper()
	root, err := docnode.LoadYAML("test.schema.yaml", []byte(src))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	unit, _, errs := schema.DecodeUnit(root)
	if len(errs) != 0 {
		t.Fatalf("decode errors: %v", errs)
	}
	if errs := schema.Resolve(unit); len(errs) != 0 {
		t.Fatalf("resolve errors: %v", errs)
	}
	return Unit(unit)
}

// TestLowerHeaderScalars covers scenario 1 from spec.md §8: a flat struct
// of little-endian scalars lowers to a mirrored ReadScalar/WriteScalar
// pair per field, in declaration order, with endianness materialized.
func TestLowerHeaderScalars(t *testing.T) {
	src := `
name: header_fmt
endianness: little
types:
  - name: Header
    type: struct
    fields:
      - name: magic
        type: u32
      - name: version
        type: u16
      - name: flags
        type: u16
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Header"]
	if s == nil {
		t.Fatal("missing Header struct")
	}
	if len(s.Read.Ops) != 3 {
		t.Fatalf("read ops = %d, want 3: %+v", len(s.Read.Ops), s.Read.Ops)
	}
	wantWidths := []int{32, 16, 16}
	for i, op := range s.Read.Ops {
		if op.Tag != lir.TagReadScalar {
			t.Fatalf("op[%d].Tag = %v, want ReadScalar", i, op.Tag)
		}
		if op.Width != wantWidths[i] {
			t.Errorf("op[%d].Width = %d, want %d", i, op.Width, wantWidths[i])
		}
		if op.Endian != schema.EndianLittle {
			t.Errorf("op[%d].Endian = %v, want little", i, op.Endian)
		}
	}
	if len(s.Write.Ops) != 3 || s.Write.Ops[0].Tag != lir.TagWriteScalar {
		t.Fatalf("write ops = %+v", s.Write.Ops)
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
	if errs := lir.Validate(s.Write); len(errs) != 0 {
		t.Errorf("Validate(write) = %v", errs)
	}
}

// TestLowerDynamicArray covers scenario 2 (a PNG-like chunk):
// a big-endian length field feeds a dynamic byte array, and the trailing
// CRC is an independent scalar. No assertion is present here (assertion
// handling is covered by TestLowerAssertion below).
func TestLowerDynamicArray(t *testing.T) {
	src := `
name: chunk_fmt
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
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Chunk"]
	var foundDynamic bool
	for _, op := range s.Read.Ops {
		if op.Tag == lir.TagReadBytesDynamic {
			foundDynamic = true
			if op.LengthReg != lir.Reg("length") {
				t.Errorf("dynamic array LengthReg = %q, want %q", op.LengthReg, "length")
			}
		}
	}
	if !foundDynamic {
		t.Fatalf("expected a ReadBytesDynamic op, ops = %+v", s.Read.Ops)
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
}

// TestLowerUntilArray covers scenario 3: an until-array of a nested struct
// terminated by a predicate comparing the just-read element's field
// against a byte-array literal, canonicalized per the lowering's
// byte-literal policy.
func TestLowerUntilArray(t *testing.T) {
	src := `
name: chunks_fmt
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
  - name: Stream
    type: struct
    fields:
      - name: chunks
        type: Chunk[]
        until: "self[-1].chunk_type equals 'IEND'"
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Stream"]
	if len(s.Read.Ops) != 2 || s.Read.Ops[0].Tag != lir.TagBeginRepeatUntil {
		t.Fatalf("read ops = %+v", s.Read.Ops)
	}
	pred := s.Read.Ops[0].Predicate
	if pred == nil || pred.Kind != lir.CondBinary {
		t.Fatalf("predicate = %+v, want a binary comparison", pred)
	}
	// The literal operand must have been canonicalized to a byte form
	// regardless of how it was written in the schema.
	var bytesOperand *lir.Cond
	if pred.Left.Kind == lir.CondBytesLit {
		bytesOperand = pred.Left
	} else if pred.Right.Kind == lir.CondBytesLit {
		bytesOperand = pred.Right
	}
	if bytesOperand == nil {
		t.Fatalf("predicate has no canonicalized byte literal: %+v", pred)
	}
	if string(bytesOperand.BytesVal) != "IEND" {
		t.Errorf("canonicalized literal = %q, want %q", bytesOperand.BytesVal, "IEND")
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
}

// TestLowerBitfield covers scenario 4: four consecutive bit-packed fields
// form one bit region that opens before the first and closes after the
// last, with a total width of 8 bits that need not itself be checked here
// (lowering does not enforce region width — that is just a read/write
// symmetry property, tested against the emitted C++ in codegen/cpp).
func TestLowerBitfield(t *testing.T) {
	src := `
name: flags_fmt
bit_order: msb
types:
  - name: Flags
    type: struct
    fields:
      - name: version
        type: u3
      - name: compressed
        type: u1
      - name: encrypted
        type: u1
      - name: reserved
        type: u3
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Flags"]
	tags := tagsOf(s.Read.Ops)
	want := []lir.Tag{
		lir.TagOpenBitRegion,
		lir.TagReadBits, lir.TagReadBits, lir.TagReadBits, lir.TagReadBits,
		lir.TagCloseBitRegionRead,
	}
	if !tagsEqual(tags, want) {
		t.Fatalf("read tags = %v, want %v", tags, want)
	}
	for _, op := range s.Read.Ops {
		if op.Tag == lir.TagOpenBitRegion && op.BitOrder != schema.BitOrderMSBFirst {
			t.Errorf("OpenBitRegion.BitOrder = %v, want msb", op.BitOrder)
		}
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
	if errs := lir.Validate(s.Write); len(errs) != 0 {
		t.Errorf("Validate(write) = %v", errs)
	}
}

// TestLowerGatedField covers scenario 5: a field gated by a comparison
// against an earlier scalar lowers to BeginIf/EndIf wrapping its body in
// both directions, with the condition referencing the earlier field's
// register.
func TestLowerGatedField(t *testing.T) {
	src := `
name: gated_fmt
endianness: little
types:
  - name: Packet
    type: struct
    fields:
      - name: version
        type: u16
      - name: legacy
        type: u32
        if: "version less-than 2"
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Packet"]
	// FieldDecl must mark the gated field optional (spec.md §3: "a
	// conditional field is, in the generated data model, an optional of
	// its kind").
	var legacyDecl *lir.FieldDecl
	for i := range s.Fields {
		if s.Fields[i].Name == "legacy" {
			legacyDecl = &s.Fields[i]
		}
	}
	if legacyDecl == nil || !legacyDecl.Optional {
		t.Fatalf("legacy FieldDecl = %+v, want Optional=true", legacyDecl)
	}
	var beginIf *lir.Op
	for i := range s.Read.Ops {
		if s.Read.Ops[i].Tag == lir.TagBeginIf {
			beginIf = &s.Read.Ops[i]
		}
	}
	if beginIf == nil {
		t.Fatalf("no BeginIf op in read plan: %+v", s.Read.Ops)
	}
	if beginIf.Cond == nil || beginIf.Cond.Kind != lir.CondBinary {
		t.Fatalf("BeginIf.Cond = %+v, want a binary comparison", beginIf.Cond)
	}
	if beginIf.Cond.Left.Kind != lir.CondIdent || beginIf.Cond.Left.Reg != lir.Reg("version") {
		t.Errorf("BeginIf.Cond.Left = %+v, want ident version", beginIf.Cond.Left)
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
	if errs := lir.Validate(s.Write); len(errs) != 0 {
		t.Errorf("Validate(write) = %v", errs)
	}
}

// TestLowerAssertion covers scenario 6: an assertion appends AssertEquals
// immediately after the field's read op, naming the field and literal;
// the write direction carries the value through unverified.
func TestLowerAssertion(t *testing.T) {
	src := `
name: zip_fmt
endianness: little
types:
  - name: Local
    type: struct
    fields:
      - name: magic
        type: u32
        assert:
          equals: 0x04034B50
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Local"]
	if len(s.Read.Ops) != 2 || s.Read.Ops[1].Tag != lir.TagAssertEquals {
		t.Fatalf("read ops = %+v, want [ReadScalar, AssertEquals]", s.Read.Ops)
	}
	assertOp := s.Read.Ops[1]
	if !assertOp.IsInt || assertOp.Literal.Int != 0x04034B50 {
		t.Errorf("assert literal = %+v, want int 0x04034B50", assertOp.Literal)
	}
	if assertOp.Dest != lir.Reg("magic") {
		t.Errorf("assert Dest = %q, want magic", assertOp.Dest)
	}
	for _, op := range s.Write.Ops {
		if op.Tag == lir.TagAssertEquals {
			t.Errorf("write plan must not carry AssertEquals, found %+v", op)
		}
	}
}

// TestLowerPaddingAndAlign exercises the three post-field padding
// directives, each of which must mirror to a distinct read/write pair.
func TestLowerPaddingAndAlign(t *testing.T) {
	src := `
name: pad_fmt
endianness: little
types:
  - name: Rec
    type: struct
    fields:
      - name: a
        type: u8
        pad: 3
      - name: b
        type: u8
        align: 4
      - name: skip_amt
        type: u8
      - name: c
        type: u8
        skip_field: skip_amt
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Rec"]
	readTags := tagsOf(s.Read.Ops)
	wantRead := []lir.Tag{
		lir.TagReadScalar, lir.TagSkipFixed,
		lir.TagReadScalar, lir.TagAlignRead,
		lir.TagReadScalar,
		lir.TagReadScalar, lir.TagSkipVariable,
	}
	if !tagsEqual(readTags, wantRead) {
		t.Fatalf("read tags = %v, want %v", readTags, wantRead)
	}
	writeTags := tagsOf(s.Write.Ops)
	wantWrite := []lir.Tag{
		lir.TagWriteScalar, lir.TagWritePadding,
		lir.TagWriteScalar, lir.TagAlignWrite,
		lir.TagWriteScalar,
		lir.TagWriteScalar, lir.TagSkipVariable,
	}
	if !tagsEqual(writeTags, wantWrite) {
		t.Fatalf("write tags = %v, want %v", writeTags, wantWrite)
	}
	if errs := lir.Validate(s.Read); len(errs) != 0 {
		t.Errorf("Validate(read) = %v", errs)
	}
}

// TestLowerNullTerminatedString checks the write direction emits a
// trailing zero byte per spec.md §4.D.
func TestLowerNullTerminatedString(t *testing.T) {
	src := `
name: str_fmt
types:
  - name: Rec
    type: struct
    fields:
      - name: name
        type: cstr
`
	lu, errs := lowerSource(t, src)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	s := lu.Structs["Rec"]
	writeTags := tagsOf(s.Write.Ops)
	want := []lir.Tag{lir.TagWriteBytes, lir.TagWriteZeroByte}
	if !tagsEqual(writeTags, want) {
		t.Fatalf("write tags = %v, want %v", writeTags, want)
	}
	readTags := tagsOf(s.Read.Ops)
	wantRead := []lir.Tag{lir.TagReadBytesUntilZero, lir.TagDecodeUTF8}
	if !tagsEqual(readTags, wantRead) {
		t.Fatalf("read tags = %v, want %v", readTags, wantRead)
	}
}

func tagsOf(ops []lir.Op) []lir.Tag {
	out := make([]lir.Tag, len(ops))
	for i, op := range ops {
		out[i] = op.Tag
	}
	return out
}

func tagsEqual(a, b []lir.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
