package schema

import "github.com/binschema/binschema/schema/docnode"

// Unit is a top-level compilation unit: a format's name, version, default
// endianness and bit-order, and its ordered sequence of type definitions.
// It is built once by the front-end, reordered in place by [Resolve], and
// consumed read-only by lowering.
type Unit struct {
	Name       string
	Version    string
	Endian     Endianness
	BitOrder   BitOrder
	Types      []*TypeDef
	Span       docnode.Span

	resolved bool
}

// TypeDef is exactly one of Struct or Enum — never both, never neither.
type TypeDef struct {
	Name string
	Doc  string
	Span docnode.Span

	Struct *Struct // non-nil iff this is a struct definition
	Enum   *Enum   // non-nil iff this is an enum definition
}

// IsStruct reports whether t is a struct definition.
func (t *TypeDef) IsStruct() bool { return t.Struct != nil }

// IsEnum reports whether t is an enum definition.
func (t *TypeDef) IsEnum() bool { return t.Enum != nil }

// Struct owns an ordered sequence of fields; field order is the on-wire
// order and is semantically significant.
type Struct struct {
	Fields []*Field

	// Endian is this struct's own endianness override, taking precedence
	// over the unit default but yielding to any field-local override.
	// EndianUnresolved means the struct sets no override of its own.
	Endian Endianness
}

// Enum has an underlying primitive width and a name→value mapping.
type Enum struct {
	Width    int // 8, 16, 32, or 64
	Signed   Signedness
	Variants []EnumVariant
}

// EnumVariant is one name/value pair of an [Enum].
type EnumVariant struct {
	Name  string
	Value int64
	Span  docnode.Span
}

// PaddingKind distinguishes the three post-field padding directives.
type PaddingKind uint8

const (
	PaddingNone PaddingKind = iota
	PaddingFixed
	PaddingAlign
	PaddingSkipField
)

// Padding is a field's optional post-padding directive.
type Padding struct {
	Kind PaddingKind
	N    int    // for PaddingFixed and PaddingAlign
	Field string // for PaddingSkipField: the field naming the skip amount
}

// AssertKind distinguishes the two assertion forms.
type AssertKind uint8

const (
	AssertEquals AssertKind = iota
	AssertInRange
)

// Assertion is a field's optional equality or range check against a
// constant literal.
type Assertion struct {
	Kind AssertKind
	// Equals literal (AssertEquals): an integer, or raw bytes for
	// array/string/blob fields.
	EqualsInt   int64
	EqualsBytes []byte
	IsIntLiteral bool

	// Range bounds (AssertInRange), inclusive.
	Min, Max int64

	Span docnode.Span
}

// Field is one member of a [Struct].
type Field struct {
	Name string
	Doc  string
	Span docnode.Span

	Kind FieldKind

	Assert  *Assertion // optional
	Gate    *Expr      // optional: nil means unconditional
	Padding Padding    // PaddingNone means none

	// Endian is this field's own endianness override (the schema
	// document's per-field `endianness` key), taking precedence over
	// both the struct-local and unit-default endianness. EndianUnresolved
	// means the field sets no override of its own — see spec.md §4.C.5's
	// field-local-else-struct-local-else-unit-default precedence, applied
	// in [applyEndian].
	Endian Endianness
}

// Kind tags the eight field-kind categories from the data model.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindBits
	KindFixedArray
	KindDynamicArray
	KindUntilArray
	KindNamedStruct
	KindString
	KindBlob
)

// FieldKind is the tagged union of the eight field kinds. Each concrete
// type below implements it as a marker.
type FieldKind interface {
	fieldKind() Kind
}

// ScalarKind is an 8/16/32/64-bit integer.
type ScalarKind struct {
	Width  int // 8, 16, 32, 64
	Signed Signedness
	Endian Endianness // EndianUnresolved until the analyzer resolves it
}

func (ScalarKind) fieldKind() Kind { return KindScalar }

// BitsKind is a 1..7-bit packed integer, part of a bit region.
type BitsKind struct {
	Width  int // 1..7
	Signed Signedness
}

func (BitsKind) fieldKind() Kind { return KindBits }

// FixedArrayKind is an element kind repeated a compile-time constant
// number of times.
type FixedArrayKind struct {
	Elem   FieldKind
	Length int
}

func (FixedArrayKind) fieldKind() Kind { return KindFixedArray }

// DynamicArrayKind is an element kind repeated a count drawn from an
// earlier scalar field in the same struct.
type DynamicArrayKind struct {
	Elem        FieldKind
	LengthField string
}

func (DynamicArrayKind) fieldKind() Kind { return KindDynamicArray }

// UntilArrayKind is a sequence of a struct or scalar element whose
// termination is either EOF or a predicate over the element just read.
type UntilArrayKind struct {
	Elem      FieldKind
	Predicate *Expr // nil means "until EOF"
}

func (UntilArrayKind) fieldKind() Kind { return KindUntilArray }

// NamedStructKind is a nested composition referencing another struct type
// defined in the same unit. Name is the raw name from the schema, used
// before resolution; Resolved is filled in by the analyzer.
type NamedStructKind struct {
	Name     string
	Resolved *TypeDef
}

func (NamedStructKind) fieldKind() Kind { return KindNamedStruct }

// StringEncoding distinguishes the three string representations.
type StringEncoding uint8

const (
	StringFixed StringEncoding = iota
	StringLengthPrefixed
	StringNullTerminated
)

// StringKind is a byte sequence interpreted as UTF-8 text at emission time.
type StringKind struct {
	Encoding    StringEncoding
	FixedLength int    // StringFixed
	LengthField string // StringLengthPrefixed
}

func (StringKind) fieldKind() Kind { return KindString }

// BlobKind is an untyped byte sequence whose length is a prior field.
// No endianness applies.
type BlobKind struct {
	LengthField string
}

func (BlobKind) fieldKind() Kind { return KindBlob }
