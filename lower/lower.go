// Package lower implements the HIR→LIR lowering stage: for each resolved
// struct it produces an ordered read plan and write plan of primitive
// [lir.Op] values, bit-accurate and byte-accurate, as described by the
// lowering rules per field kind. Lowering assumes its input unit has
// already passed [schema.Resolve] with no errors — it does not re-check
// type resolution, cycles, or forward references.
package lower

import (
	"fmt"

	"github.com/binschema/binschema/lir"
	"github.com/binschema/binschema/schema"
	"github.com/binschema/binschema/schema/docnode"
)

// Unit lowers every type of a resolved unit into a [lir.Unit]. The caller
// must have already run [schema.Resolve] successfully. Unit does not check
// named-type references itself: a named field is lowered to a call of the
// type it names, whether or not that type exists.
func Unit(u *schema.Unit) (*lir.Unit, []*schema.Error) {
	out := &lir.Unit{
		Name:     u.Name,
		Version:  u.Version,
		BitOrder: u.BitOrder,
		Structs:  map[string]*lir.Struct{},
		Enums:    map[string]*lir.Enum{},
	}
	var errs []*schema.Error
	for _, t := range u.Types {
		out.Order = append(out.Order, t.Name)
		if t.IsEnum() {
			out.Enums[t.Name] = lowerEnum(t)
			continue
		}
		s, serrs := lowerStruct(u, t)
		errs = append(errs, serrs...)
		out.Structs[t.Name] = s
	}
	return out, errs
}

func lowerEnum(t *schema.TypeDef) *lir.Enum {
	e := &lir.Enum{Name: t.Name, Doc: t.Doc, Width: t.Enum.Width, Signed: t.Enum.Signed == schema.Signed}
	for _, v := range t.Enum.Variants {
		e.Variants = append(e.Variants, lir.EnumVariant{Name: v.Name, Value: v.Value})
	}
	return e
}

// structCtx carries the per-struct state lowering needs beyond the
// current field: the unit and the kinds of fields already emitted (for
// gate/predicate register typing). Whether a bit region is open is tracked
// by lowerStruct itself.
type structCtx struct {
	unit   *schema.Unit
	fields map[string]schema.FieldKind
}

func lowerStruct(u *schema.Unit, t *schema.TypeDef) (*lir.Struct, []*schema.Error) {
	ctx := &structCtx{unit: u, fields: map[string]schema.FieldKind{}}
	out := &lir.Struct{Name: t.Name, Doc: t.Doc}
	var errs []*schema.Error

	var readOps, writeOps []lir.Op
	bitOpen := false

	for _, f := range t.Struct.Fields {
		out.Fields = append(out.Fields, lir.FieldDecl{Name: f.Name, Doc: f.Doc, Kind: f.Kind, Optional: f.Gate != nil})
	}

	closeBits := func() {
		if bitOpen {
			readOps = append(readOps, lir.Op{Tag: lir.TagCloseBitRegionRead})
			writeOps = append(writeOps, lir.Op{Tag: lir.TagCloseBitRegionWrite})
			bitOpen = false
		}
	}

	for _, f := range t.Struct.Fields {
		_, isBits := f.Kind.(schema.BitsKind)
		if isBits && !bitOpen {
			readOps = append(readOps, lir.Op{Tag: lir.TagOpenBitRegion, Span: f.Name, BitOrder: u.BitOrder})
			writeOps = append(writeOps, lir.Op{Tag: lir.TagOpenBitRegion, Span: f.Name, BitOrder: u.BitOrder})
			bitOpen = true
		} else if !isBits && bitOpen {
			closeBits()
		}

		fr, fw, ferrs := lowerField(ctx, t.Name, f)
		errs = append(errs, ferrs...)
		readOps = append(readOps, fr...)
		writeOps = append(writeOps, fw...)

		ctx.fields[f.Name] = f.Kind
	}
	closeBits()

	out.Read = lir.Plan{StructName: t.Name, Ops: readOps}
	out.Write = lir.Plan{StructName: t.Name, Ops: writeOps}
	return out, errs
}

// lowerField produces the mirrored read-op / write-op sequence for one
// field, wrapping it in BeginIf/EndIf when gated and appending its
// post-padding directive.
func lowerField(ctx *structCtx, typeName string, f *schema.Field) (readOps, writeOps []lir.Op, errs []*schema.Error) {
	reg := lir.Reg(f.Name)

	bodyRead, bodyWrite, kerrs := lowerKind(ctx, f.Name, f.Kind, reg)
	errs = append(errs, kerrs...)

	if f.Assert != nil {
		bodyRead = append(bodyRead, assertOp(f, reg))
	}

	if f.Gate != nil {
		cond, cerr := lowerCond(ctx, f.Gate, nil)
		if cerr != nil {
			errs = append(errs, schema.Errf(schema.CodeUnsupportedExpression, f.Span, "field %q in %q: %s", f.Name, typeName, cerr))
		} else {
			readOps = append(readOps, lir.Op{Tag: lir.TagBeginIf, Span: f.Name, Cond: cond, Body: bodyRead})
			readOps = append(readOps, lir.Op{Tag: lir.TagEndIf, Span: f.Name})
			writeOps = append(writeOps, lir.Op{Tag: lir.TagBeginIf, Span: f.Name, Cond: cond, Body: bodyWrite})
			writeOps = append(writeOps, lir.Op{Tag: lir.TagEndIf, Span: f.Name})
		}
	} else {
		readOps = append(readOps, bodyRead...)
		writeOps = append(writeOps, bodyWrite...)
	}

	padRead, padWrite := lowerPadding(f)
	readOps = append(readOps, padRead...)
	writeOps = append(writeOps, padWrite...)

	return readOps, writeOps, errs
}

func assertOp(f *schema.Field, reg lir.Reg) lir.Op {
	a := f.Assert
	op := lir.Op{Tag: lir.TagAssertEquals, Span: f.Name, Dest: reg, IsInt: a.IsIntLiteral}
	if a.IsIntLiteral {
		op.Literal = lir.Const{Int: a.EqualsInt}
	} else {
		op.Literal = lir.Const{Bytes: a.EqualsBytes}
	}
	return op
}

func lowerPadding(f *schema.Field) (readOps, writeOps []lir.Op) {
	switch f.Padding.Kind {
	case schema.PaddingFixed:
		readOps = append(readOps, lir.Op{Tag: lir.TagSkipFixed, Span: f.Name, N: f.Padding.N})
		writeOps = append(writeOps, lir.Op{Tag: lir.TagWritePadding, Span: f.Name, N: f.Padding.N})
	case schema.PaddingAlign:
		readOps = append(readOps, lir.Op{Tag: lir.TagAlignRead, Span: f.Name, N: f.Padding.N})
		writeOps = append(writeOps, lir.Op{Tag: lir.TagAlignWrite, Span: f.Name, N: f.Padding.N})
	case schema.PaddingSkipField:
		reg := lir.Reg(f.Padding.Field)
		readOps = append(readOps, lir.Op{Tag: lir.TagSkipVariable, Span: f.Name, CountReg: reg})
		writeOps = append(writeOps, lir.Op{Tag: lir.TagSkipVariable, Span: f.Name, CountReg: reg})
	}
	return readOps, writeOps
}

// lowerKind lowers one field's type expression (without its gate/padding
// wrapping) into a mirrored read/write op pair.
func lowerKind(ctx *structCtx, name string, k schema.FieldKind, reg lir.Reg) (readOps, writeOps []lir.Op, errs []*schema.Error) {
	switch v := k.(type) {
	case schema.ScalarKind:
		readOps = []lir.Op{{Tag: lir.TagReadScalar, Span: name, Width: v.Width, Signed: v.Signed == schema.Signed, Endian: v.Endian, Dest: reg}}
		writeOps = []lir.Op{{Tag: lir.TagWriteScalar, Span: name, Width: v.Width, Signed: v.Signed == schema.Signed, Endian: v.Endian, Src: reg}}

	case schema.BitsKind:
		readOps = []lir.Op{{Tag: lir.TagReadBits, Span: name, Width: v.Width, Signed: v.Signed == schema.Signed, Dest: reg}}
		writeOps = []lir.Op{{Tag: lir.TagWriteBits, Span: name, Width: v.Width, Signed: v.Signed == schema.Signed, Src: reg}}

	case schema.FixedArrayKind:
		if isByteElem(v.Elem) {
			readOps = []lir.Op{{Tag: lir.TagReadBytesFixed, Span: name, Length: v.Length, Dest: reg}}
			writeOps = []lir.Op{{Tag: lir.TagWriteBytesFixed, Span: name, Length: v.Length, Src: reg}}
			break
		}
		er, ew, kerrs := lowerKind(ctx, name, v.Elem, reg)
		errs = append(errs, kerrs...)
		readOps = []lir.Op{{Tag: lir.TagBeginRepeatFixed, Span: name, N: v.Length, Dest: reg, Body: er}, {Tag: lir.TagEndRepeatFixed, Span: name}}
		writeOps = []lir.Op{{Tag: lir.TagBeginRepeatFixed, Span: name, N: v.Length, Dest: reg, Body: ew}, {Tag: lir.TagEndRepeatFixed, Span: name}}

	case schema.DynamicArrayKind:
		lenReg := lir.Reg(v.LengthField)
		if isByteElem(v.Elem) {
			readOps = []lir.Op{{Tag: lir.TagReadBytesDynamic, Span: name, LengthReg: lenReg, Dest: reg}}
			writeOps = []lir.Op{{Tag: lir.TagWriteBytes, Span: name, Src: reg}}
			break
		}
		er, ew, kerrs := lowerKind(ctx, name, v.Elem, reg)
		errs = append(errs, kerrs...)
		readOps = []lir.Op{{Tag: lir.TagBeginRepeatCount, Span: name, CountReg: lenReg, Dest: reg, Body: er}, {Tag: lir.TagEndRepeatCount, Span: name}}
		writeOps = []lir.Op{{Tag: lir.TagBeginRepeatCount, Span: name, CountReg: lenReg, Dest: reg, Body: ew}, {Tag: lir.TagEndRepeatCount, Span: name}}

	case schema.UntilArrayKind:
		er, ew, kerrs := lowerKind(ctx, name, v.Elem, reg)
		errs = append(errs, kerrs...)
		var cond *lir.Cond
		if v.Predicate != nil {
			c, cerr := lowerCond(ctx, v.Predicate, elemFieldsOf(v.Elem))
			if cerr != nil {
				errs = append(errs, schema.Errf(schema.CodeUnsupportedExpression, docnode.Span{}, "field %q: until predicate: %s", name, cerr))
			}
			cond = c
		}
		readOps = []lir.Op{{Tag: lir.TagBeginRepeatUntil, Span: name, Predicate: cond, Dest: reg, ElemReg: reg, Body: er}, {Tag: lir.TagEndRepeatUntil, Span: name}}
		writeOps = []lir.Op{{Tag: lir.TagBeginRepeatUntil, Span: name, Predicate: cond, Dest: reg, ElemReg: reg, Body: ew}, {Tag: lir.TagEndRepeatUntil, Span: name}}

	case schema.NamedStructKind:
		readOps = []lir.Op{{Tag: lir.TagCallRead, Span: name, Type: v.Name, Dest: reg}}
		writeOps = []lir.Op{{Tag: lir.TagCallWrite, Span: name, Type: v.Name, Src: reg}}

	case schema.StringKind:
		readOps, writeOps = lowerString(name, v, reg)

	case schema.BlobKind:
		lenReg := lir.Reg(v.LengthField)
		readOps = []lir.Op{{Tag: lir.TagReadBytesDynamic, Span: name, LengthReg: lenReg, Dest: reg}}
		writeOps = []lir.Op{{Tag: lir.TagWriteBytes, Span: name, Src: reg}}

	default:
		errs = append(errs, schema.Errf(schema.CodeEmitterError, docnode.Span{}, "field %q: unsupported field kind %T in lowering", name, k))
	}
	return readOps, writeOps, errs
}

func lowerString(name string, v schema.StringKind, reg lir.Reg) (readOps, writeOps []lir.Op) {
	raw := lir.Reg(string(reg) + "_raw")
	switch v.Encoding {
	case schema.StringFixed:
		readOps = []lir.Op{
			{Tag: lir.TagReadBytesFixed, Span: name, Length: v.FixedLength, Dest: raw},
			{Tag: lir.TagDecodeUTF8, Span: name, Src: raw, Dest: reg},
		}
		writeOps = []lir.Op{{Tag: lir.TagWriteBytesFixed, Span: name, Length: v.FixedLength, Src: reg}}
	case schema.StringLengthPrefixed:
		lenReg := lir.Reg(v.LengthField)
		readOps = []lir.Op{
			{Tag: lir.TagReadBytesDynamic, Span: name, LengthReg: lenReg, Dest: raw},
			{Tag: lir.TagDecodeUTF8, Span: name, Src: raw, Dest: reg},
		}
		writeOps = []lir.Op{{Tag: lir.TagWriteBytes, Span: name, Src: reg}}
	case schema.StringNullTerminated:
		readOps = []lir.Op{
			{Tag: lir.TagReadBytesUntilZero, Span: name, Dest: raw},
			{Tag: lir.TagDecodeUTF8, Span: name, Src: raw, Dest: reg},
		}
		writeOps = []lir.Op{
			{Tag: lir.TagWriteBytes, Span: name, Src: reg},
			{Tag: lir.TagWriteZeroByte, Span: name},
		}
	}
	return readOps, writeOps
}

func isByteElem(k schema.FieldKind) bool {
	s, ok := k.(schema.ScalarKind)
	return ok && s.Width == 8
}

// elemFieldsOf returns the field-kind table of an until-array element's
// struct type, so self[-1].field accesses in the predicate can be
// checked; returns nil for a scalar element (self[-1] alone is then the
// whole value).
func elemFieldsOf(elem schema.FieldKind) map[string]schema.FieldKind {
	ns, ok := elem.(schema.NamedStructKind)
	if !ok || ns.Resolved == nil || !ns.Resolved.IsStruct() {
		return nil
	}
	fields := map[string]schema.FieldKind{}
	for _, f := range ns.Resolved.Struct.Fields {
		fields[f.Name] = f.Kind
	}
	return fields
}

// lowerCond translates a [schema.Expr] gate/until tree into a [lir.Cond],
// binding identifiers to registers and canonicalizing any byte-array
// comparison literal (quoted-bytes or hex/integer-packed) to a single
// []byte-valued constant, per the lowering's byte-literal canonicalization
// policy. elemFields is the until-array element's field table (nil when
// not lowering an until predicate, or when the element is a bare scalar).
func lowerCond(ctx *structCtx, e *schema.Expr, elemFields map[string]schema.FieldKind) (*lir.Cond, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case schema.ExprIdent:
		return &lir.Cond{Kind: lir.CondIdent, Reg: lir.Reg(e.Name)}, nil
	case schema.ExprIntLit, schema.ExprHexLit:
		return &lir.Cond{Kind: lir.CondIntLit, IntVal: e.IntVal}, nil
	case schema.ExprBytesLit:
		return &lir.Cond{Kind: lir.CondBytesLit, BytesVal: append([]byte(nil), e.BytesVal...)}, nil
	case schema.ExprStringLit:
		return &lir.Cond{Kind: lir.CondBytesLit, BytesVal: []byte(e.StrVal)}, nil
	case schema.ExprEOF:
		return &lir.Cond{Kind: lir.CondEOF}, nil
	case schema.ExprSelfLast:
		return &lir.Cond{Kind: lir.CondSelfLast}, nil
	case schema.ExprFieldAccess:
		base, err := lowerCond(ctx, e.Base, elemFields)
		if err != nil {
			return nil, err
		}
		return &lir.Cond{Kind: lir.CondFieldAccess, Base: base, Field: e.Name}, nil
	case schema.ExprUnary:
		right, err := lowerCond(ctx, e.Right, elemFields)
		if err != nil {
			return nil, err
		}
		return &lir.Cond{Kind: lir.CondUnary, Op: e.Op, Right: right}, nil
	case schema.ExprBinary:
		left, err := lowerCond(ctx, e.Left, elemFields)
		if err != nil {
			return nil, err
		}
		right, err := lowerCond(ctx, e.Right, elemFields)
		if err != nil {
			return nil, err
		}
		canonicalizeByteComparison(ctx, e.Op, left, right, elemFields)
		return &lir.Cond{Kind: lir.CondBinary, Op: e.Op, Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("unsupported expression node kind %d", e.Kind)
	}
}

// canonicalizeByteComparison rewrites an int/hex literal operand of an
// equals/not-equals comparison into a byte-literal of the matching
// field's width when the other operand names a byte-array-shaped field,
// so '<bytes>' and 0x<int> forms of the same comparison always lower to
// one representation.
func canonicalizeByteComparison(ctx *structCtx, op schema.Op, left, right *lir.Cond, elemFields map[string]schema.FieldKind) {
	if op != schema.OpEq && op != schema.OpNe {
		return
	}
	width, ok := byteWidthOf(ctx, left, elemFields)
	if ok && right.Kind == lir.CondIntLit {
		right.Kind = lir.CondBytesLit
		right.BytesVal = bigEndianBytes(right.IntVal, width)
		return
	}
	width, ok = byteWidthOf(ctx, right, elemFields)
	if ok && left.Kind == lir.CondIntLit {
		left.Kind = lir.CondBytesLit
		left.BytesVal = bigEndianBytes(left.IntVal, width)
	}
}

func byteWidthOf(ctx *structCtx, c *lir.Cond, elemFields map[string]schema.FieldKind) (int, bool) {
	var fields map[string]schema.FieldKind
	var name string
	switch c.Kind {
	case lir.CondIdent:
		fields, name = ctx.fields, string(c.Reg)
	case lir.CondFieldAccess:
		if c.Base != nil && c.Base.Kind == lir.CondSelfLast {
			fields, name = elemFields, c.Field
		} else {
			return 0, false
		}
	default:
		return 0, false
	}
	k, ok := fields[name]
	if !ok {
		return 0, false
	}
	switch v := k.(type) {
	case schema.FixedArrayKind:
		if isByteElem(v.Elem) {
			return v.Length, true
		}
	case schema.StringKind:
		if v.Encoding == schema.StringFixed {
			return v.FixedLength, true
		}
	}
	return 0, false
}

func bigEndianBytes(v int64, width int) []byte {
	if width <= 0 {
		width = 4
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
