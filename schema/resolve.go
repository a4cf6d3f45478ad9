package schema

import (
	"math"

	"github.com/binschema/binschema/internal/visitor"
	"github.com/binschema/binschema/schema/docnode"
)

// Resolve performs the semantic analysis pass: type reference resolution,
// cycle detection, topological ordering, forward-reference checking,
// endianness resolution, and assertion typing. It mutates unit in place
// (reordering unit.Types) and returns every diagnostic found. An
// unresolved reference skips the cycle and ordering pass; every other
// check runs over every type, so diagnostics accumulate and the caller
// decides what to do with an invalid type.
func Resolve(unit *Unit) []*Error {
	r := &resolver{
		unit:   unit,
		byName: make(map[string]*TypeDef, len(unit.Types)),
	}
	for _, t := range unit.Types {
		r.byName[t.Name] = t
	}

	r.resolveReferences()
	if len(r.errs) == 0 {
		r.checkCyclesAndOrder()
	}
	for _, t := range unit.Types {
		if t.IsEnum() {
			r.checkEnumRange(t)
			continue
		}
		r.resolveStructEndianness(t)
		r.checkForwardReferences(t)
		r.checkAssertions(t)
	}

	unit.resolved = len(r.errs) == 0
	return r.errs
}

type resolver struct {
	unit   *Unit
	byName map[string]*TypeDef
	errs   []*Error
}

func (r *resolver) fail(code ErrCode, span docnode.Span, format string, args ...any) {
	r.errs = append(r.errs, Errf(code, span, format, args...))
}

// resolveReferences binds every NamedStructKind.Name to its [TypeDef],
// recursing through array element kinds.
func (r *resolver) resolveReferences() {
	for _, t := range r.unit.Types {
		if !t.IsStruct() {
			continue
		}
		for _, f := range t.Struct.Fields {
			resolved, err := r.resolveKind(f.Kind, f.Span)
			if err != nil {
				r.errs = append(r.errs, err)
				continue
			}
			f.Kind = resolved
		}
	}
}

func (r *resolver) resolveKind(k FieldKind, span docnode.Span) (FieldKind, *Error) {
	switch v := k.(type) {
	case NamedStructKind:
		def, ok := r.byName[v.Name]
		if !ok {
			return nil, Errf(CodeUnresolvedType, span, "unresolved type reference %q", v.Name)
		}
		v.Resolved = def
		return v, nil
	case FixedArrayKind:
		elem, err := r.resolveKind(v.Elem, span)
		if err != nil {
			return nil, err
		}
		v.Elem = elem
		return v, nil
	case DynamicArrayKind:
		elem, err := r.resolveKind(v.Elem, span)
		if err != nil {
			return nil, err
		}
		v.Elem = elem
		return v, nil
	case UntilArrayKind:
		elem, err := r.resolveKind(v.Elem, span)
		if err != nil {
			return nil, err
		}
		v.Elem = elem
		return v, nil
	default:
		return k, nil
	}
}

// checkCyclesAndOrder builds the struct-references-struct dependency
// graph (enums have no fields, so they never participate) and both
// detects cycles and reorders unit.Types into a topological order —
// every type's dependencies precede it, independent types keep their
// relative order from the source document.
func (r *resolver) checkCyclesAndOrder() {
	deps := make(map[string][]string, len(r.unit.Types))
	for _, t := range r.unit.Types {
		if !t.IsStruct() {
			continue
		}
		deps[t.Name] = structDeps(t.Struct, t.Name)
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(r.unit.Types))
	var order []*TypeDef
	var stack []string

	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return true
		case gray:
			cycle := append(append([]string{}, stack...), name)
			r.fail(CodeCircularType, r.byName[name].Span, "circular type reference: %v", cycle)
			return false
		}
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if _, ok := r.byName[dep]; !ok {
				continue // already reported by resolveReferences
			}
			if !visit(dep) {
				return false
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		order = append(order, r.byName[name])
		return true
	}

	seen := visitor.New(func(name string) bool { return visit(name) })
	for _, t := range r.unit.Types {
		if seen.Done() {
			break
		}
		seen.Yield(t.Name)
	}

	if len(order) == len(r.unit.Types) {
		r.unit.Types = order
	}
}

// structDeps returns the distinct named types (struct or enum) s's fields
// reference, directly or through array element kinds. Enum references are
// included even though spec.md §3 frames field kind 6 as struct
// composition: a field may equally name an enum type (a packed "kind"
// discriminator field is a common case), and the emitted enum class must
// still appear textually before any struct member typed with it — the
// same topological-order invariant spec.md §8 Property 3 states for
// struct dependencies applies to enum ones.
//
// A self-reference (selfName referencing itself) reached only through an
// until-array's element is the one tolerated degenerate cycle from
// spec.md §4.C.2: such an edge is dropped from the graph entirely rather
// than recorded as a dependency, so it never trips cycle detection and
// the self-referencing struct simply keeps its natural position in the
// topological order (nothing else can depend on the dropped edge, so
// dropping it is equivalent to "ordering the self-edge last"). A
// self-reference reached any other way (plain nesting, fixed array,
// dynamic array) describes an infinitely-sized value and is left in the
// graph so it is reported as CircularType like any other cycle.
func structDeps(s *Struct, selfName string) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(k FieldKind, viaUntil bool)
	walk = func(k FieldKind, viaUntil bool) {
		switch v := k.(type) {
		case NamedStructKind:
			if v.Resolved == nil || !(v.Resolved.IsStruct() || v.Resolved.IsEnum()) {
				return
			}
			if v.Name == selfName && viaUntil {
				return
			}
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case FixedArrayKind:
			walk(v.Elem, viaUntil)
		case DynamicArrayKind:
			walk(v.Elem, viaUntil)
		case UntilArrayKind:
			walk(v.Elem, true)
		}
	}
	for _, f := range s.Fields {
		walk(f.Kind, false)
	}
	return names
}

// resolveStructEndianness materializes the effective endianness onto every
// scalar field and scalar array element in t, so no ScalarKind reaching
// lowering ever carries EndianUnresolved. Per spec.md §4.C.5, the
// effective endianness at each field is the first of: the field's own
// `endianness` override, the struct's own `endianness` override, the
// unit's default — in that order of precedence.
func (r *resolver) resolveStructEndianness(t *TypeDef) {
	structDefault := r.unit.Endian
	if t.Struct.Endian != EndianUnresolved {
		structDefault = t.Struct.Endian
	}
	for _, f := range t.Struct.Fields {
		fieldDefault := structDefault
		if f.Endian != EndianUnresolved {
			fieldDefault = f.Endian
		}
		f.Kind = applyEndian(f.Kind, fieldDefault)
	}
}

func applyEndian(k FieldKind, def Endianness) FieldKind {
	switch v := k.(type) {
	case ScalarKind:
		if v.Endian == EndianUnresolved {
			v.Endian = def
		}
		return v
	case FixedArrayKind:
		v.Elem = applyEndian(v.Elem, def)
		return v
	case DynamicArrayKind:
		v.Elem = applyEndian(v.Elem, def)
		return v
	case UntilArrayKind:
		v.Elem = applyEndian(v.Elem, def)
		return v
	default:
		return k
	}
}

// checkForwardReferences walks t's fields in order, maintaining the set
// of names defined so far, and rejects any length/gate/until expression
// naming a field not strictly earlier in the same struct.
func (r *resolver) checkForwardReferences(t *TypeDef) {
	defined := map[string]bool{}
	for _, f := range t.Struct.Fields {
		r.checkKindRefs(t.Name, f, f.Kind, defined)
		if f.Gate != nil {
			r.checkExprRefs(t.Name, f.Name, "if", f.Gate, defined, false)
		}
		if f.Padding.Kind == PaddingSkipField && !defined[f.Padding.Field] {
			r.fail(CodeForwardReference, f.Span, "field %q in %q: skip_field %q is not defined earlier in the struct", f.Name, t.Name, f.Padding.Field)
		}
		defined[f.Name] = true
	}
}

func (r *resolver) checkKindRefs(typeName string, f *Field, k FieldKind, defined map[string]bool) {
	switch v := k.(type) {
	case DynamicArrayKind:
		if !defined[v.LengthField] {
			r.fail(CodeForwardReference, f.Span, "field %q in %q: length field %q is not defined earlier in the struct", f.Name, typeName, v.LengthField)
		}
	case StringKind:
		if v.Encoding == StringLengthPrefixed && !defined[v.LengthField] {
			r.fail(CodeForwardReference, f.Span, "field %q in %q: length field %q is not defined earlier in the struct", f.Name, typeName, v.LengthField)
		}
	case BlobKind:
		if !defined[v.LengthField] {
			r.fail(CodeForwardReference, f.Span, "field %q in %q: length field %q is not defined earlier in the struct", f.Name, typeName, v.LengthField)
		}
	case UntilArrayKind:
		if v.Predicate != nil {
			r.checkExprRefs(typeName, f.Name, "until", v.Predicate, defined, true)
		}
	}
}

// checkExprRefs verifies every field-name identifier an expression
// touches is already in defined. allowSelfLast permits the until-only
// pseudo-identifier self[-1]; eof is always permitted.
func (r *resolver) checkExprRefs(typeName, fieldName, directive string, e *Expr, defined map[string]bool, allowSelfLast bool) {
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ExprIdent:
			if !defined[n.Name] {
				r.fail(CodeForwardReference, n.Span, "field %q in %q: %s expression references undefined field %q", fieldName, typeName, directive, n.Name)
			}
		case ExprSelfLast:
			if !allowSelfLast {
				r.fail(CodeUnsupportedExpression, n.Span, "field %q in %q: self[-1] is only valid in an until predicate", fieldName, typeName)
			}
		case ExprFieldAccess:
			walk(n.Base)
		case ExprUnary:
			walk(n.Right)
		case ExprBinary:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(e)
}

// checkAssertions verifies each field's assertion literal shape is
// comparable with its field kind.
func (r *resolver) checkAssertions(t *TypeDef) {
	for _, f := range t.Struct.Fields {
		if f.Assert == nil {
			continue
		}
		isInteger := false
		isBytes := false
		switch f.Kind.(type) {
		case ScalarKind, BitsKind:
			isInteger = true
		case FixedArrayKind, StringKind, BlobKind:
			isBytes = true
		}
		switch f.Assert.Kind {
		case AssertEquals:
			if f.Assert.IsIntLiteral && !isInteger {
				r.fail(CodeAssertionIncompatible, f.Assert.Span, "field %q in %q: integer equals assertion on a non-integer field", f.Name, t.Name)
			}
			if !f.Assert.IsIntLiteral && !isBytes {
				r.fail(CodeAssertionIncompatible, f.Assert.Span, "field %q in %q: byte-literal equals assertion on a non-byte-sequence field", f.Name, t.Name)
			}
		case AssertInRange:
			if !isInteger {
				r.fail(CodeAssertionIncompatible, f.Assert.Span, "field %q in %q: in-range assertion is only valid on integer fields", f.Name, t.Name)
			}
		}
	}
}

// checkEnumRange verifies every variant value fits in the enum's
// underlying width and signedness.
func (r *resolver) checkEnumRange(t *TypeDef) {
	e := t.Enum
	var lo, hi int64
	switch {
	case e.Width == 64 && e.Signed == Signed:
		lo, hi = math.MinInt64, math.MaxInt64
	case e.Width == 64:
		lo, hi = 0, math.MaxInt64 // variant values are parsed into int64, so this is the practical ceiling
	case e.Signed == Signed:
		hi = 1<<(e.Width-1) - 1
		lo = -(1 << (e.Width - 1))
	default:
		lo = 0
		hi = 1<<e.Width - 1
	}
	for _, v := range e.Variants {
		if v.Value < lo || v.Value > hi {
			r.fail(CodeSchemaError, v.Span, "enum %q variant %q value %d out of range [%d, %d] for %s%d", t.Name, v.Name, v.Value, lo, hi, e.Signed, e.Width)
		}
	}
}
