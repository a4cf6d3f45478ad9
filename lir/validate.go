package lir

import (
	"fmt"

	"github.com/binschema/binschema/schema"
)

// Validate walks plan checking the structural invariants lowering must
// establish: bit-region open/close balance (the §4.F state machine:
// closed → open-{read,write} → closed, never ending in an open state),
// every scalar/bits op carries a materialized endianness and width, and
// every register a later op reads resolves to an earlier producer in the
// same plan (the LIR "output contract": no operand escapes to global
// state). It returns every violation found rather than stopping at the
// first.
func Validate(plan Plan) []error {
	v := &validator{produced: map[Reg]bool{}}
	v.walk(plan.Ops)
	if v.bitRegion != bitClosed {
		v.errs = append(v.errs, fmt.Errorf("%s: plan ends with an open bit region (lowering bug)", plan.StructName))
	}
	return v.errs
}

type bitRegionState uint8

const (
	bitClosed bitRegionState = iota
	bitOpenRead
	bitOpenWrite
)

type validator struct {
	produced  map[Reg]bool
	bitRegion bitRegionState
	errs      []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) requireProduced(op Op, reg Reg) {
	if reg == "" {
		return
	}
	if !v.produced[reg] {
		v.fail("field %q: op %s references register %q with no earlier producer in this plan", op.Span, op.Tag, reg)
	}
}

func (v *validator) walk(ops []Op) {
	for _, op := range ops {
		switch op.Tag {
		case TagOpenBitRegion:
			if v.bitRegion != bitClosed {
				v.fail("field %q: OpenBitRegion while a bit region is already open", op.Span)
			}
			v.bitRegion = bitOpenRead // direction-agnostic at this point; narrowed below
		case TagReadBits:
			if v.bitRegion == bitClosed {
				v.fail("field %q: ReadBits outside an open bit region", op.Span)
			}
			v.bitRegion = bitOpenRead
			v.checkScalarShape(op, true)
			v.produced[op.Dest] = true
		case TagWriteBits:
			if v.bitRegion == bitClosed {
				v.fail("field %q: WriteBits outside an open bit region", op.Span)
			}
			v.bitRegion = bitOpenWrite
			v.checkScalarShape(op, false)
			v.requireProduced(op, op.Src)
		case TagCloseBitRegionRead:
			if v.bitRegion == bitClosed {
				v.fail("field %q: CloseBitRegionRead without a matching OpenBitRegion", op.Span)
			}
			v.bitRegion = bitClosed
		case TagCloseBitRegionWrite:
			if v.bitRegion == bitClosed {
				v.fail("field %q: CloseBitRegionWrite without a matching OpenBitRegion", op.Span)
			}
			v.bitRegion = bitClosed

		case TagReadScalar:
			v.checkScalarShape(op, true)
			v.produced[op.Dest] = true
		case TagWriteScalar:
			v.checkScalarShape(op, false)
			v.requireProduced(op, op.Src)

		case TagReadBytesFixed:
			v.produced[op.Dest] = true
		case TagWriteBytesFixed:
			v.requireProduced(op, op.Src)
		case TagReadBytesDynamic, TagReadBytesUntilZero:
			v.requireProduced(op, op.LengthReg)
			v.produced[op.Dest] = true
		case TagWriteBytes:
			v.requireProduced(op, op.Src)
		case TagDecodeUTF8:
			v.requireProduced(op, op.Src)
			v.produced[op.Dest] = true
		case TagWriteZeroByte:
			// no operands

		case TagAssertEquals:
			v.requireProduced(op, op.Dest)

		case TagSkipFixed, TagWritePadding, TagAlignRead, TagAlignWrite:
			v.requireProduced(op, op.CountReg)
		case TagSkipVariable:
			v.requireProduced(op, op.CountReg)

		case TagBeginIf:
			v.checkCond(op, op.Cond)
			v.walk(op.Body)
		case TagEndIf:

		case TagBeginRepeatFixed:
			v.walk(op.Body)
			v.produced[op.Dest] = true
		case TagEndRepeatFixed:

		case TagBeginRepeatCount:
			v.requireProduced(op, op.CountReg)
			v.walk(op.Body)
			v.produced[op.Dest] = true
		case TagEndRepeatCount:

		case TagBeginRepeatUntil:
			inner := &validator{produced: copyRegs(v.produced)}
			inner.walk(op.Body)
			if inner.bitRegion != bitClosed {
				v.fail("field %q: until-array element body ends with an open bit region", op.Span)
			}
			v.errs = append(v.errs, inner.errs...)
			if op.Predicate != nil {
				v.checkCond(op, op.Predicate)
			}
			v.produced[op.Dest] = true
		case TagEndRepeatUntil:

		case TagCallRead:
			v.produced[op.Dest] = true
		case TagCallWrite:
			v.requireProduced(op, op.Src)

		default:
			v.fail("field %q: unrecognized LIR tag %d", op.Span, op.Tag)
		}
	}
}

func copyRegs(m map[Reg]bool) map[Reg]bool {
	out := make(map[Reg]bool, len(m)+1)
	for k := range m {
		out[k] = true
	}
	return out
}

func (v *validator) checkScalarShape(op Op, isRead bool) {
	switch op.Width {
	case 1, 2, 3, 4, 5, 6, 7, 8, 16, 32, 64:
	default:
		v.fail("field %q: op %s has invalid width %d", op.Span, op.Tag, op.Width)
	}
	if op.Tag == TagReadScalar || op.Tag == TagWriteScalar {
		if op.Endian == schema.EndianUnresolved {
			v.fail("field %q: op %s has unresolved endianness (lowering bug, should have been materialized by the analyzer)", op.Span, op.Tag)
		}
	}
}

func (v *validator) checkCond(op Op, c *Cond) {
	if c == nil {
		return
	}
	switch c.Kind {
	case CondIdent:
		v.requireProduced(op, c.Reg)
	case CondFieldAccess:
		v.checkCond(op, c.Base)
	case CondUnary:
		v.checkCond(op, c.Right)
	case CondBinary:
		v.checkCond(op, c.Left)
		v.checkCond(op, c.Right)
	}
}
