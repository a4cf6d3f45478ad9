package cpp

import (
	"strings"
	"testing"

	"github.com/binschema/binschema/lir"
	"github.com/binschema/binschema/lower"
	"github.com/binschema/binschema/schema"
	"github.com/binschema/binschema/schema/docnode"
)

func emitSource(t *testing.T, src string) string {
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
	lu, errs := lower.Unit(unit)
	if len(errs) != 0 {
		t.Fatalf("lower errors: %v", errs)
	}
	for _, name := range lu.Order {
		if s, ok := lu.Structs[name]; ok {
			if verrs := lir.Validate(s.Read); len(verrs) != 0 {
				t.Fatalf("Validate(%s.read) = %v", name, verrs)
			}
			if verrs := lir.Validate(s.Write); len(verrs) != 0 {
				t.Fatalf("Validate(%s.write) = %v", name, verrs)
			}
		}
	}
	out, err := (Emitter{}).Emit(lu)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return string(out)
}

func TestEmitHeaderScalars(t *testing.T) {
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
`
	out := emitSource(t, src)
	for _, want := range []string{
		"namespace header_fmt {",
		"struct Header {",
		"uint32_t magic{};",
		"uint16_t version{};",
		"static Header read(Reader& r) {",
		"void write(Writer& w) const {",
		"out.magic = r.readLE<uint32_t>(\"magic\");",
		"w.writeLE<uint32_t>(static_cast<uint32_t>(v.magic));",
		"bool operator==(const Header& other) const {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("emitted artifact missing %q\n--- artifact ---\n%s", want, out)
		}
	}
}

func TestEmitBigEndian(t *testing.T) {
	src := `
name: chunk_fmt
endianness: big
types:
  - name: Chunk
    type: struct
    fields:
      - name: length
        type: u32
`
	out := emitSource(t, src)
	if !strings.Contains(out, "r.readBE<uint32_t>") {
		t.Errorf("expected big-endian read, got:\n%s", out)
	}
	if !strings.Contains(out, "w.writeBE<uint32_t>") {
		t.Errorf("expected big-endian write, got:\n%s", out)
	}
}

func TestEmitBitfield(t *testing.T) {
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
	out := emitSource(t, src)
	for _, want := range []string{
		"BitReader br1(r, BitOrder::MSBFirst);",
		"readBits(3, false,",
		"br1.close();",
		"BitWriter bw1(w, BitOrder::MSBFirst);",
		"bw1.writeBits(",
		"bw1.close();",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestEmitGatedFieldOptional(t *testing.T) {
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
	out := emitSource(t, src)
	if !strings.Contains(out, "std::optional<uint32_t> legacy{};") {
		t.Errorf("gated field must be declared optional, got:\n%s", out)
	}
	if !strings.Contains(out, "if ((out.version < 2)) {") {
		t.Errorf("missing gate condition in read, got:\n%s", out)
	}
	if !strings.Contains(out, "missing required field 'legacy' under a true gate") {
		t.Errorf("missing MissingRequired guard in write, got:\n%s", out)
	}
}

func TestEmitAssertion(t *testing.T) {
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
	out := emitSource(t, src)
	if !strings.Contains(out, "if (out.magic != 67324752) throw ParseError(\"magic\",") {
		t.Errorf("missing assertion check, got:\n%s", out)
	}
}

func TestEmitUntilArrayStruct(t *testing.T) {
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
	out := emitSource(t, src)
	if !strings.Contains(out, "std::vector<Chunk> chunks{};") {
		t.Errorf("missing chunks field, got:\n%s", out)
	}
	if !strings.Contains(out, "while (true) {") {
		t.Errorf("missing until-loop, got:\n%s", out)
	}
	if !strings.Contains(out, "elem_chunks.chunk_type == std::vector<uint8_t>{0x49, 0x45, 0x4e, 0x44}") {
		t.Errorf("missing canonicalized byte-literal comparison, got:\n%s", out)
	}
	// Chunk must be textually emitted before Stream (topological order).
	if strings.Index(out, "struct Chunk {") > strings.Index(out, "struct Stream {") {
		t.Errorf("Chunk must precede Stream in the emitted artifact")
	}
}

func TestEmitEnum(t *testing.T) {
	src := `
name: enum_fmt
types:
  - name: Kind
    type: enum
    underlying: u8
    variants:
      - name: Foo
        value: 0
      - name: Bar
        value: 1
`
	out := emitSource(t, src)
	if !strings.Contains(out, "enum class Kind : uint8_t {") {
		t.Errorf("missing enum declaration, got:\n%s", out)
	}
	if !strings.Contains(out, "Foo = 0,") || !strings.Contains(out, "Bar = 1,") {
		t.Errorf("missing enum variants, got:\n%s", out)
	}
	if !strings.Contains(out, "operator<<(std::ostream& os, Kind v)") {
		t.Errorf("missing operator<< for enum, got:\n%s", out)
	}
}

func TestEmitVersionSemver(t *testing.T) {
	src := `
name: versioned_fmt
version: "1.2.3"
types:
  - name: Empty
    type: struct
    fields: []
`
	out := emitSource(t, src)
	if !strings.Contains(out, `kVersion = "1.2.3"`) {
		t.Errorf("missing semver version constant, got:\n%s", out)
	}
	if !strings.Contains(out, "kVersionMajor = 1") {
		t.Errorf("missing kVersionMajor, got:\n%s", out)
	}
}

func TestEmitVersionFreeform(t *testing.T) {
	src := `
name: versioned_fmt
version: "rev-42"
types:
  - name: Empty
    type: struct
    fields: []
`
	out := emitSource(t, src)
	if !strings.Contains(out, `kVersion = "rev-42"`) {
		t.Errorf("missing freeform version constant, got:\n%s", out)
	}
	if strings.Contains(out, "kVersionMajor") {
		t.Errorf("freeform version must not emit semver component constants, got:\n%s", out)
	}
}
