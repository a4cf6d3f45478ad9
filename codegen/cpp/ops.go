package cpp

import (
	"fmt"
	"strings"

	"github.com/binschema/binschema/lir"
	"github.com/binschema/binschema/schema"
)

// structGen holds the per-struct state the op emitter needs beyond the
// flat op list: which fields are optional (gated), each field's element
// type (for array loop variables), and a bit-region sequence counter so
// nested bit regions across sibling fields never collide on a C++
// variable name.
type structGen struct {
	unitName string
	fields   map[string]bool   // field name -> is a declared struct field (vs. an intermediate register)
	optional map[string]bool   // field name -> gated (optional<T> in the data model)
	elemType map[string]string // field name -> element C++ type, for array fields only
	bitSeq   int
	declared map[string]bool // intermediate registers already declared in this plan
}

func newStructGen(unitName string, s *lir.Struct) *structGen {
	g := &structGen{
		unitName: unitName,
		fields:   map[string]bool{},
		optional: map[string]bool{},
		elemType: map[string]string{},
		declared: map[string]bool{},
	}
	for _, f := range s.Fields {
		g.fields[f.Name] = true
		g.optional[f.Name] = f.Optional
		switch v := f.Kind.(type) {
		case schema.FixedArrayKind:
			g.elemType[f.Name] = cppType(unitName, v.Elem)
		case schema.DynamicArrayKind:
			g.elemType[f.Name] = cppType(unitName, v.Elem)
		case schema.UntilArrayKind:
			g.elemType[f.Name] = cppType(unitName, v.Elem)
		}
	}
	return g
}

// lvalue returns the C++ expression to assign a register's value into.
// loopVar overrides it entirely when emitting inside an array element
// body. Registers not naming a declared struct field are intermediate
// locals (e.g. a string field's raw undecoded bytes), declared with auto
// on first use.
func (g *structGen) lvalue(structVar string, reg lir.Reg, loopVar string) string {
	if loopVar != "" {
		return loopVar
	}
	name := string(reg)
	if g.fields[name] {
		return structVar + "." + name
	}
	if !g.declared[name] {
		g.declared[name] = true
		return "auto " + name
	}
	return name
}

// arrayLValue is [structGen.lvalue] specialized for the container an
// array/until-array read op appends into. A gated array field is, per
// the data model, an optional<vector<...>> — unlike a scalar lvalue, a
// bare assignment cannot populate it element-by-element, so a gated
// array target is first default-constructed in place with emplace() and
// the returned expression derefs through it, letting the caller
// .reserve()/.push_back() directly.
func (g *structGen) arrayLValue(b *strings.Builder, indent, structVar string, reg lir.Reg, loopVar string) string {
	if loopVar != "" {
		return loopVar
	}
	name := string(reg)
	if g.fields[name] && g.optional[name] {
		fmt.Fprintf(b, "%s%s.%s.emplace();\n", indent, structVar, name)
		return structVar + "." + name + ".value()"
	}
	return g.lvalue(structVar, reg, loopVar)
}

// rvalue returns the C++ expression to read a register's already-produced
// value back, unwrapping an optional field with .value().
func (g *structGen) rvalue(structVar string, reg lir.Reg, loopVar string) string {
	if loopVar != "" {
		return loopVar
	}
	name := string(reg)
	if g.fields[name] {
		s := structVar + "." + name
		if g.optional[name] {
			s += ".value()"
		}
		return s
	}
	return name
}

func (g *structGen) literal(c lir.Const, isInt bool) string {
	if isInt {
		return fmt.Sprintf("%d", c.Int)
	}
	return byteVectorLiteral(c.Bytes)
}

// assertFailMessage builds the C++ expression for an AssertEquals
// failure message, naming the actual value alongside the expected
// literal (spec.md §4.F: "a message naming the field, expected literal,
// and actual value"). Byte-sequence actuals are rendered via a runtime
// hex-dump helper since std::to_string does not accept a vector.
func assertFailMessage(got, want string, isInt bool) string {
	if isInt {
		return `"assertion failed, expected " + std::to_string(` + want + `) + ", got " + std::to_string(` + got + `)`
	}
	return `"assertion failed, expected " + hexDump(` + want + `) + ", got " + hexDump(` + got + `)`
}

func byteVectorLiteral(b []byte) string {
	var sb strings.Builder
	sb.WriteString("std::vector<uint8_t>{")
	for i, v := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02x", v)
	}
	sb.WriteString("}")
	return sb.String()
}

func endianMethod(e schema.Endianness) string {
	if e == schema.EndianBig {
		return "readBE"
	}
	return "readLE" // little and native both map to the little-endian helper; native does not select the host byte order
}

func writeEndianMethod(e schema.Endianness) string {
	if e == schema.EndianBig {
		return "writeBE"
	}
	return "writeLE"
}

// condToCpp renders a gate/until condition tree to a C++ boolean
// expression. structVar is "out" (read) or "v" (write); elemVar is the
// just-produced until-array element's variable name, bound to
// self[-1]/self[-1].field — empty outside an until predicate.
func condToCpp(c *lir.Cond, structVar, elemVar string) string {
	if c == nil {
		return "true"
	}
	switch c.Kind {
	case lir.CondIdent:
		return structVar + "." + string(c.Reg)
	case lir.CondIntLit:
		return fmt.Sprintf("%d", c.IntVal)
	case lir.CondBytesLit:
		return byteVectorLiteral(c.BytesVal)
	case lir.CondEOF:
		return "r.remaining() == 0"
	case lir.CondSelfLast:
		return elemVar
	case lir.CondFieldAccess:
		return condToCpp(c.Base, structVar, elemVar) + "." + c.Field
	case lir.CondUnary:
		if c.Op == schema.OpLogicalNot {
			return "!(" + condToCpp(c.Right, structVar, elemVar) + ")"
		}
		return "(-" + condToCpp(c.Right, structVar, elemVar) + ")"
	case lir.CondBinary:
		return "(" + condToCpp(c.Left, structVar, elemVar) + " " + cppBinOp(c.Op) + " " + condToCpp(c.Right, structVar, elemVar) + ")"
	default:
		return "true"
	}
}

func cppBinOp(op schema.Op) string {
	switch op {
	case schema.OpLogicalAnd:
		return "&&"
	case schema.OpLogicalOr:
		return "||"
	default:
		return string(op)
	}
}

// emitRead walks a read plan (or an array/if body within it) and writes
// the corresponding C++ statements to b. loopVar is non-empty when ops
// belongs to an array element body, overriding every op's assignment
// target to the loop-local element variable instead of a struct member.
func (g *structGen) emitRead(b *strings.Builder, indent string, ops []lir.Op, loopVar string) {
	for _, op := range ops {
		switch op.Tag {
		case lir.TagOpenBitRegion:
			g.bitSeq++
			order := "BitOrder::MSBFirst"
			if op.BitOrder == schema.BitOrderLSBFirst {
				order = "BitOrder::LSBFirst"
			}
			fmt.Fprintf(b, "%sBitReader br%d(r, %s);\n", indent, g.bitSeq, order)
		case lir.TagCloseBitRegionRead:
			fmt.Fprintf(b, "%sbr%d.close();\n", indent, g.bitSeq)

		case lir.TagReadScalar:
			cppT := scalarType(op.Width, op.Signed)
			fmt.Fprintf(b, "%s%s = r.%s<%s>(\"%s\");\n", indent, g.lvalue("out", op.Dest, loopVar), endianMethod(op.Endian), cppT, op.Span)
		case lir.TagReadBits:
			cppT := scalarType(op.Width, op.Signed)
			fmt.Fprintf(b, "%s%s = static_cast<%s>(br%d.readBits(%d, %t, \"%s\"));\n", indent, g.lvalue("out", op.Dest, loopVar), cppT, g.bitSeq, op.Width, op.Signed, op.Span)

		case lir.TagReadBytesFixed:
			fmt.Fprintf(b, "%s%s = r.readBytes(%d, \"%s\");\n", indent, g.lvalue("out", op.Dest, loopVar), op.Length, op.Span)
		case lir.TagReadBytesDynamic:
			fmt.Fprintf(b, "%s%s = r.readBytes(static_cast<size_t>(%s), \"%s\");\n", indent, g.lvalue("out", op.Dest, loopVar), g.rvalue("out", op.LengthReg, ""), op.Span)
		case lir.TagReadBytesUntilZero:
			fmt.Fprintf(b, "%s%s = r.readUntilZero(\"%s\");\n", indent, g.lvalue("out", op.Dest, loopVar), op.Span)
		case lir.TagDecodeUTF8:
			src := g.rvalue("out", op.Src, loopVar)
			fmt.Fprintf(b, "%s%s = std::string(%s.begin(), %s.end());\n", indent, g.lvalue("out", op.Dest, loopVar), src, src)

		case lir.TagAssertEquals:
			got := g.rvalue("out", op.Dest, loopVar)
			want := g.literal(op.Literal, op.IsInt)
			msg := assertFailMessage(got, want, op.IsInt)
			fmt.Fprintf(b, "%sif (%s != %s) throw ParseError(\"%s\", %s);\n", indent, got, want, op.Span, msg)

		case lir.TagSkipFixed:
			fmt.Fprintf(b, "%sr.skip(%d, \"%s\");\n", indent, op.N, op.Span)
		case lir.TagSkipVariable:
			fmt.Fprintf(b, "%sr.skip(static_cast<size_t>(%s), \"%s\");\n", indent, g.rvalue("out", op.CountReg, ""), op.Span)
		case lir.TagAlignRead:
			fmt.Fprintf(b, "%sr.alignTo(%d, \"%s\");\n", indent, op.N, op.Span)

		case lir.TagBeginIf:
			fmt.Fprintf(b, "%sif (%s) {\n", indent, condToCpp(op.Cond, "out", ""))
			g.emitRead(b, indent+"    ", op.Body, loopVar)
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagBeginRepeatFixed:
			target := g.arrayLValue(b, indent, "out", op.Dest, loopVar)
			elemVar := "elem_" + string(op.Dest)
			elemT := g.elemType[string(op.Dest)]
			fmt.Fprintf(b, "%s%s.reserve(%d);\n", indent, target, op.N)
			fmt.Fprintf(b, "%sfor (int i_%s = 0; i_%s < %d; i_%s++) {\n", indent, op.Dest, op.Dest, op.N, op.Dest)
			fmt.Fprintf(b, "%s    %s %s{};\n", indent, elemT, elemVar)
			g.emitRead(b, indent+"    ", op.Body, elemVar)
			fmt.Fprintf(b, "%s    %s.push_back(%s);\n", indent, target, elemVar)
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagBeginRepeatCount:
			target := g.arrayLValue(b, indent, "out", op.Dest, loopVar)
			elemVar := "elem_" + string(op.Dest)
			elemT := g.elemType[string(op.Dest)]
			countExpr := g.rvalue("out", op.CountReg, "")
			fmt.Fprintf(b, "%s%s.reserve(static_cast<size_t>(%s));\n", indent, target, countExpr)
			fmt.Fprintf(b, "%sfor (size_t i_%s = 0; i_%s < static_cast<size_t>(%s); i_%s++) {\n", indent, op.Dest, op.Dest, countExpr, op.Dest)
			fmt.Fprintf(b, "%s    %s %s{};\n", indent, elemT, elemVar)
			g.emitRead(b, indent+"    ", op.Body, elemVar)
			fmt.Fprintf(b, "%s    %s.push_back(%s);\n", indent, target, elemVar)
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagBeginRepeatUntil:
			target := g.arrayLValue(b, indent, "out", op.Dest, loopVar)
			elemVar := "elem_" + string(op.Dest)
			elemT := g.elemType[string(op.Dest)]
			fmt.Fprintf(b, "%swhile (true) {\n", indent)
			fmt.Fprintf(b, "%s    %s %s{};\n", indent, elemT, elemVar)
			g.emitRead(b, indent+"    ", op.Body, elemVar)
			fmt.Fprintf(b, "%s    %s.push_back(%s);\n", indent, target, elemVar)
			if op.Predicate == nil {
				fmt.Fprintf(b, "%s    if (r.remaining() == 0) break;\n", indent)
			} else {
				fmt.Fprintf(b, "%s    if (%s) break;\n", indent, condToCpp(op.Predicate, "out", elemVar))
			}
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagCallRead:
			fmt.Fprintf(b, "%s%s = %s::read(r);\n", indent, g.lvalue("out", op.Dest, loopVar), op.Type)

		case lir.TagEndIf, lir.TagEndRepeatFixed, lir.TagEndRepeatCount, lir.TagEndRepeatUntil:
			// structural closers; the corresponding Begin* already wrote
			// the closing brace from its Body recursion.
		}
	}
}

// emitWrite mirrors emitRead for the write plan: it reads already-
// populated struct/element fields and appends bytes to w.
func (g *structGen) emitWrite(b *strings.Builder, indent string, ops []lir.Op, loopVar string) {
	for _, op := range ops {
		switch op.Tag {
		case lir.TagOpenBitRegion:
			g.bitSeq++
			order := "BitOrder::MSBFirst"
			if op.BitOrder == schema.BitOrderLSBFirst {
				order = "BitOrder::LSBFirst"
			}
			fmt.Fprintf(b, "%sBitWriter bw%d(w, %s);\n", indent, g.bitSeq, order)
		case lir.TagCloseBitRegionWrite:
			fmt.Fprintf(b, "%sbw%d.close();\n", indent, g.bitSeq)

		case lir.TagWriteScalar:
			cppT := scalarType(op.Width, op.Signed)
			fmt.Fprintf(b, "%sw.%s<%s>(static_cast<%s>(%s));\n", indent, writeEndianMethod(op.Endian), cppT, cppT, g.rvalue("v", op.Src, loopVar))
		case lir.TagWriteBits:
			fmt.Fprintf(b, "%sbw%d.writeBits(static_cast<uint64_t>(%s), %d);\n", indent, g.bitSeq, g.rvalue("v", op.Src, loopVar), op.Width)

		case lir.TagWriteBytesFixed, lir.TagWriteBytes:
			fmt.Fprintf(b, "%sw.writeBytes(%s);\n", indent, g.rvalue("v", op.Src, loopVar))
		case lir.TagWriteZeroByte:
			fmt.Fprintf(b, "%sw.writeU8(0);\n", indent)

		case lir.TagWritePadding:
			fmt.Fprintf(b, "%sw.writePadding(%d);\n", indent, op.N)
		case lir.TagSkipVariable:
			fmt.Fprintf(b, "%sw.writePadding(static_cast<size_t>(%s));\n", indent, g.rvalue("v", op.CountReg, ""))
		case lir.TagAlignWrite:
			fmt.Fprintf(b, "%sw.alignTo(%d);\n", indent, op.N)

		case lir.TagBeginIf:
			fmt.Fprintf(b, "%sif (%s) {\n", indent, condToCpp(op.Cond, "v", ""))
			fmt.Fprintf(b, "%s    if (!%s.has_value()) throw std::runtime_error(\"missing required field '%s' under a true gate\");\n", indent, "v."+string(fieldOf(op.Body)), op.Span)
			g.emitWrite(b, indent+"    ", op.Body, loopVar)
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagBeginRepeatFixed, lir.TagBeginRepeatCount, lir.TagBeginRepeatUntil:
			elemVar := "elem_" + string(op.Dest)
			elemT := g.elemType[string(op.Dest)]
			src := g.rvalue("v", op.Dest, loopVar)
			fmt.Fprintf(b, "%sfor (const %s& %s : %s) {\n", indent, elemT, elemVar, src)
			g.emitWrite(b, indent+"    ", op.Body, elemVar)
			fmt.Fprintf(b, "%s}\n", indent)

		case lir.TagCallWrite:
			fmt.Fprintf(b, "%s%s.write(w);\n", indent, g.rvalue("v", op.Src, loopVar))

		case lir.TagEndIf, lir.TagEndRepeatFixed, lir.TagEndRepeatCount, lir.TagEndRepeatUntil,
			lir.TagAssertEquals:
			// AssertEquals is a read-direction-only check; the write
			// plan carries the field's value through unverified, per
			// spec.md §4.D "the write direction simply writes the
			// field's carried value".
		}
	}
}

// fieldOf returns the field name a gated body's ops were lowered from,
// used to name the has_value() check in the write direction's
// MissingRequired guard.
func fieldOf(body []lir.Op) lir.Reg {
	if len(body) == 0 {
		return ""
	}
	return lir.Reg(body[0].Span)
}
