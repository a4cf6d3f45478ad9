// Package lir defines the flat, low-level intermediate representation
// lowering produces: one ordered sequence of primitive read operations
// and one of write operations per struct, over typed operands (registers,
// literals, and other structs' names). Op values carry no inheritance —
// the emitter dispatches on Tag.
package lir

import "github.com/binschema/binschema/schema"

// Tag identifies the concrete shape of an [Op].
type Tag uint8

const (
	TagInvalid Tag = iota
	TagReadScalar
	TagWriteScalar
	TagReadBytesFixed
	TagWriteBytesFixed
	TagReadBytesDynamic
	TagWriteBytes
	TagReadBits
	TagWriteBits
	TagAssertEquals
	TagSkipFixed
	TagSkipVariable
	TagWritePadding
	TagAlignRead
	TagAlignWrite
	TagOpenBitRegion
	TagCloseBitRegionRead
	TagCloseBitRegionWrite
	TagBeginIf
	TagEndIf
	TagBeginRepeatFixed
	TagEndRepeatFixed
	TagBeginRepeatCount
	TagEndRepeatCount
	TagBeginRepeatUntil
	TagEndRepeatUntil
	TagCallRead
	TagCallWrite
	TagDecodeUTF8
	TagReadBytesUntilZero
	TagWriteZeroByte
)

func (t Tag) String() string {
	switch t {
	case TagReadScalar:
		return "ReadScalar"
	case TagWriteScalar:
		return "WriteScalar"
	case TagReadBytesFixed:
		return "ReadBytesFixed"
	case TagWriteBytesFixed:
		return "WriteBytesFixed"
	case TagReadBytesDynamic:
		return "ReadBytesDynamic"
	case TagWriteBytes:
		return "WriteBytes"
	case TagReadBits:
		return "ReadBits"
	case TagWriteBits:
		return "WriteBits"
	case TagAssertEquals:
		return "AssertEquals"
	case TagSkipFixed:
		return "SkipFixed"
	case TagSkipVariable:
		return "SkipVariable"
	case TagWritePadding:
		return "WritePadding"
	case TagAlignRead:
		return "AlignRead"
	case TagAlignWrite:
		return "AlignWrite"
	case TagOpenBitRegion:
		return "OpenBitRegion"
	case TagCloseBitRegionRead:
		return "CloseBitRegionRead"
	case TagCloseBitRegionWrite:
		return "CloseBitRegionWrite"
	case TagBeginIf:
		return "BeginIf"
	case TagEndIf:
		return "EndIf"
	case TagBeginRepeatFixed:
		return "BeginRepeatFixed"
	case TagEndRepeatFixed:
		return "EndRepeatFixed"
	case TagBeginRepeatCount:
		return "BeginRepeatCount"
	case TagEndRepeatCount:
		return "EndRepeatCount"
	case TagBeginRepeatUntil:
		return "BeginRepeatUntil"
	case TagEndRepeatUntil:
		return "EndRepeatUntil"
	case TagCallRead:
		return "CallRead"
	case TagCallWrite:
		return "CallWrite"
	case TagDecodeUTF8:
		return "DecodeUTF8"
	case TagReadBytesUntilZero:
		return "ReadBytesUntilZero"
	case TagWriteZeroByte:
		return "WriteZeroByte"
	default:
		return "Invalid"
	}
}

// Reg names a value produced earlier in the same plan — a field's
// destination slot on read, or the source expression feeding a write.
// Registers are field names ("length", "magic"), plus a "<field>_raw"
// register lowering adds for a string's undecoded bytes; none is visible
// outside the plan.
type Reg string

// Const is a literal operand: exactly one of the typed fields is valid,
// selected by the consuming Op's Tag.
type Const struct {
	Int   int64
	Bytes []byte
}

// Op is one primitive LIR operation. Only the fields relevant to Tag are
// meaningful; the rest are zero.
type Op struct {
	Tag  Tag
	Span string // field name this op was lowered from, for diagnostics

	// ReadScalar/WriteScalar/ReadBits/WriteBits
	Width  int
	Signed bool
	Endian schema.Endianness
	Dest   Reg // ReadScalar, ReadBits, ReadBytes*
	Src    Reg // WriteScalar, WriteBits, WriteBytes*

	// ReadBytesFixed/WriteBytesFixed
	Length int
	// ReadBytesDynamic/WriteBytes: count register (dynamic array, string, blob)
	LengthReg Reg

	// AssertEquals
	Literal Const
	IsInt   bool

	// SkipVariable, align, repeat-count operand
	CountReg Reg
	// SkipFixed, WritePadding, AlignRead, AlignWrite, BeginRepeatFixed n
	N int

	// OpenBitRegion
	BitOrder schema.BitOrder

	// BeginIf: gate condition tree (evaluated against prior registers by
	// the emitter); EndIf has no payload.
	Cond *Cond

	// BeginRepeatUntil: predicate over the element just read; nil means
	// "until EOF".
	Predicate *Cond
	ElemReg   Reg // register holding/receiving the just-produced element

	// CallRead/CallWrite: the named struct type being invoked.
	Type string

	// Nested plan for a repeat/if body, populated by lowering; the
	// emitter walks Body in place of a flat op stream index.
	Body []Op
}

// CondKind tags the tiny boolean-and-arithmetic tree gate/until
// expressions lower into — a constant-folded mirror of [schema.Expr]
// operating purely on LIR registers and literals.
type CondKind uint8

const (
	CondIdent CondKind = iota
	CondIntLit
	CondBytesLit
	CondEOF
	CondSelfLast
	CondFieldAccess
	CondUnary
	CondBinary
)

// Cond is a condition-tree node, the LIR-level counterpart of
// [schema.Expr] after identifiers have been bound to registers and
// byte-literal comparisons canonicalized to a single []byte form.
type Cond struct {
	Kind CondKind

	Reg      Reg    // CondIdent
	IntVal   int64  // CondIntLit
	BytesVal []byte // CondBytesLit (canonical form of any byte-array-valued literal)
	Field    string // CondFieldAccess

	Op          schema.Op
	Left, Right *Cond
	Base        *Cond
}

// Plan is the ordered operation sequence for one struct in one direction
// (read or write).
type Plan struct {
	StructName string
	Ops        []Op
}

// FieldDecl is one member of a struct's emitted data-model shape — the
// static type the emitter declares, as distinct from the operational
// steps in Read/Write. A gated field's Optional is true: spec.md §9
// requires a conditional field be, in the generated data model, an
// optional of its kind.
type FieldDecl struct {
	Name     string
	Doc      string
	Kind     schema.FieldKind
	Optional bool
}

// Struct is one HIR struct's declared field shape plus its lowered read
// and write plans.
type Struct struct {
	Name   string
	Doc    string
	Fields []FieldDecl
	Read   Plan
	Write  Plan
}

// EnumVariant mirrors [schema.EnumVariant] for the emitter's convenience,
// keeping codegen from importing schema types directly.
type EnumVariant struct {
	Name  string
	Value int64
}

// Enum is one HIR enum's LIR-facing shape: just its table, since an enum
// has no read/write plan of its own (it is always embedded in a scalar
// read/write site of the containing struct).
type Enum struct {
	Name     string
	Doc      string
	Width    int
	Signed   bool
	Variants []EnumVariant
}

// Unit is the full lowered compilation unit: topologically ordered
// structs and enums, plus the unit-level facts the emitter needs
// (name, version, default bit order) that are not struct-specific.
type Unit struct {
	Name     string
	Version  string
	BitOrder schema.BitOrder

	// Order is the combined topological emission order: each entry names
	// either a Structs or Enums key, so the emitter can interleave enum
	// and struct declarations in the analyzer's resolved order.
	Order   []string
	Structs map[string]*Struct
	Enums   map[string]*Enum
}
