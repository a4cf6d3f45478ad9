package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/binschema/binschema/internal/ordered"
	"github.com/binschema/binschema/schema/docnode"
)

// DecodeUnit builds a [Unit] from a generic document tree, as produced by
// a concrete loader such as schema/docnode's YAML adapter. It never
// resolves type references or checks forward-reference rules — that is
// [Resolve]'s job. Includes are reported back as raw `include:` entries
// (relative paths or oci:// references) for the caller to fetch and merge
// via [MergeIncludes]; the front-end itself never touches the filesystem
// or a registry.
//
// DecodeUnit collects every structural error it finds rather than
// stopping at the first one, so a schema with several malformed types
// gets one diagnostic per problem.
func DecodeUnit(root *docnode.Node) (unit *Unit, includes []string, errs []*Error) {
	if root == nil || root.Kind != docnode.KindMap {
		return nil, nil, []*Error{Errf(CodeSchemaError, spanOf(root), "document root must be a mapping")}
	}

	u := &Unit{Span: root.Span}

	name, ok := root.Field("name")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, root.Span, "missing required key %q", "name"))
	} else {
		u.Name = name.Value
		if err := ValidateIdent("unit", u.Name); err != nil {
			errs = append(errs, Errf(CodeSchemaError, name.Span, "%s", err))
		}
	}

	if v, ok := root.Field("version"); ok {
		u.Version = v.Value
	}

	u.Endian = EndianLittle
	if e, ok := root.Field("endianness"); ok {
		end, err := ParseEndianness(e.Value)
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, e.Span, "%s", err))
		} else {
			u.Endian = end
		}
	}

	u.BitOrder = BitOrderMSBFirst
	if b, ok := root.Field("bit_order"); ok {
		order, err := ParseBitOrder(b.Value)
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, b.Span, "%s", err))
		} else {
			u.BitOrder = order
		}
	}

	if inc, ok := root.Field("include"); ok {
		if inc.Kind != docnode.KindSeq {
			errs = append(errs, Errf(CodeSchemaError, inc.Span, "%q must be a sequence of paths", "include"))
		} else {
			for _, e := range inc.Seq {
				includes = append(includes, e.Value)
			}
		}
	}

	types, ok := root.Field("types")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, root.Span, "missing required key %q", "types"))
		return u, includes, errs
	}
	if types.Kind != docnode.KindSeq {
		errs = append(errs, Errf(CodeSchemaError, types.Span, "%q must be a sequence", "types"))
		return u, includes, errs
	}

	seen := map[string]docnode.Span{}
	for _, t := range types.Seq {
		td, tErrs := decodeTypeDef(t)
		errs = append(errs, tErrs...)
		if td == nil {
			continue
		}
		if prev, dup := seen[td.Name]; dup {
			errs = append(errs, Errf(CodeSchemaError, td.Span, "duplicate type name %q (first defined at %s)", td.Name, prev))
			continue
		}
		seen[td.Name] = td.Span
		u.Types = append(u.Types, td)
	}

	return u, includes, errs
}

// MergeIncludes appends each included unit's types into base, failing on
// any type name collision between base and an include or between two
// includes. base's header fields (name, version, endianness, bit order)
// are left untouched; includes contribute types only.
func MergeIncludes(base *Unit, included ...*Unit) (*Unit, []*Error) {
	var errs []*Error
	seen := ordered.New[string, *TypeDef]()
	for _, t := range base.Types {
		seen.Set(t.Name, t)
	}
	for _, inc := range included {
		for _, t := range inc.Types {
			if prev, dup := seen.GetOK(t.Name); dup {
				errs = append(errs, Errf(CodeSchemaError, t.Span, "duplicate type name %q across includes (first defined at %s)", t.Name, prev.Span))
				continue
			}
			seen.Set(t.Name, t)
		}
	}
	base.Types = base.Types[:0]
	seen.All()(func(_ string, t *TypeDef) bool {
		base.Types = append(base.Types, t)
		return true
	})
	return base, errs
}

func decodeTypeDef(n *docnode.Node) (*TypeDef, []*Error) {
	var errs []*Error
	if n.Kind != docnode.KindMap {
		return nil, []*Error{Errf(CodeSchemaError, n.Span, "type definition must be a mapping")}
	}
	td := &TypeDef{Span: n.Span}

	name, ok := n.Field("name")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "type is missing required key %q", "name"))
		return nil, errs
	}
	td.Name = name.Value
	if err := ValidateIdent("type", td.Name); err != nil {
		errs = append(errs, Errf(CodeSchemaError, name.Span, "%s", err))
	}

	if d, ok := n.Field("doc"); ok {
		td.Doc = d.Value
	}

	kind, ok := n.Field("type")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "type %q is missing required key %q", td.Name, "type"))
		return td, errs
	}

	switch kind.Value {
	case "struct":
		s, sErrs := decodeStruct(n, td.Name)
		errs = append(errs, sErrs...)
		td.Struct = s
	case "enum":
		e, eErrs := decodeEnum(n, td.Name)
		errs = append(errs, eErrs...)
		td.Enum = e
	default:
		errs = append(errs, Errf(CodeSchemaError, kind.Span, "type %q has unknown kind %q, want %q or %q", td.Name, kind.Value, "struct", "enum"))
		return td, errs
	}
	return td, errs
}

func decodeStruct(n *docnode.Node, typeName string) (*Struct, []*Error) {
	var errs []*Error
	s := &Struct{}

	if e, ok := n.Field("endianness"); ok {
		end, err := ParseEndianness(e.Value)
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, e.Span, "%s", err))
		} else {
			s.Endian = end
		}
	}

	fieldsNode, ok := n.Field("fields")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "struct %q is missing required key %q", typeName, "fields"))
		return s, errs
	}
	if fieldsNode.Kind != docnode.KindSeq {
		errs = append(errs, Errf(CodeSchemaError, fieldsNode.Span, "%q must be a sequence", "fields"))
		return s, errs
	}

	seen := map[string]docnode.Span{}
	for _, fn := range fieldsNode.Seq {
		f, fErrs := decodeField(fn)
		errs = append(errs, fErrs...)
		if f == nil {
			continue
		}
		if prev, dup := seen[f.Name]; dup {
			errs = append(errs, Errf(CodeSchemaError, f.Span, "duplicate field name %q in %q (first defined at %s)", f.Name, typeName, prev))
			continue
		}
		seen[f.Name] = f.Span
		s.Fields = append(s.Fields, f)
	}
	return s, errs
}

func decodeField(n *docnode.Node) (*Field, []*Error) {
	var errs []*Error
	if n.Kind != docnode.KindMap {
		return nil, []*Error{Errf(CodeSchemaError, n.Span, "field must be a mapping")}
	}
	f := &Field{Span: n.Span}

	name, ok := n.Field("name")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "field is missing required key %q", "name"))
		return nil, errs
	}
	f.Name = name.Value
	if err := ValidateIdent("field", f.Name); err != nil {
		errs = append(errs, Errf(CodeSchemaError, name.Span, "%s", err))
	}

	if d, ok := n.Field("doc"); ok {
		f.Doc = d.Value
	}

	typeNode, ok := n.Field("type")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "field %q is missing required key %q", f.Name, "type"))
		return f, errs
	}
	kind, err := parseTypeExpr(typeNode.Value, typeNode.Span)
	if err != nil {
		errs = append(errs, Errf(CodeSchemaError, typeNode.Span, "field %q: %s", f.Name, err))
		return f, errs
	}
	f.Kind = kind

	if e, ok := n.Field("endianness"); ok {
		end, err := ParseEndianness(e.Value)
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, e.Span, "field %q: %s", f.Name, err))
		} else {
			f.Endian = end
		}
	}

	if until, ok := n.Field("until"); ok {
		ua, isUntil := f.Kind.(UntilArrayKind)
		if !isUntil {
			errs = append(errs, Errf(CodeSchemaError, until.Span, "field %q has %q but is not an until-array", f.Name, "until"))
		} else {
			pred, err := ParseExpr(until.Value, until.Span)
			if err != nil {
				errs = append(errs, Errf(CodeUnsupportedExpression, until.Span, "field %q: %s", f.Name, err))
			} else {
				ua.Predicate = pred
				f.Kind = ua
			}
		}
	}

	if gate, ok := n.Field("if"); ok {
		expr, err := ParseExpr(gate.Value, gate.Span)
		if err != nil {
			errs = append(errs, Errf(CodeUnsupportedExpression, gate.Span, "field %q: %s", f.Name, err))
		} else {
			f.Gate = expr
		}
	}

	if assertNode, ok := n.Field("assert"); ok {
		a, aErrs := decodeAssertion(assertNode)
		errs = append(errs, aErrs...)
		f.Assert = a
	}

	pad, padErrs := decodePadding(n)
	errs = append(errs, padErrs...)
	f.Padding = pad

	return f, errs
}

func decodePadding(n *docnode.Node) (Padding, []*Error) {
	var errs []*Error
	if p, ok := n.Field("pad"); ok {
		v, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, p.Span, "%q must be an integer byte count", "pad"))
			return Padding{}, errs
		}
		return Padding{Kind: PaddingFixed, N: v}, errs
	}
	if a, ok := n.Field("align"); ok {
		v, err := strconv.Atoi(strings.TrimSpace(a.Value))
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, a.Span, "%q must be an integer alignment", "align"))
			return Padding{}, errs
		}
		return Padding{Kind: PaddingAlign, N: v}, errs
	}
	if s, ok := n.Field("skip_field"); ok {
		return Padding{Kind: PaddingSkipField, Field: s.Value}, errs
	}
	return Padding{}, errs
}

func decodeAssertion(n *docnode.Node) (*Assertion, []*Error) {
	var errs []*Error
	if n.Kind == docnode.KindSeq {
		// Shorthand: `assert: [0x89, 0x50, 0x4E, 0x47]` is an equals-bytes literal
		// without the explicit `equals:` key.
		a := &Assertion{Kind: AssertEquals, Span: n.Span}
		for _, elem := range n.Seq {
			v, err := strconv.ParseInt(strings.TrimSpace(elem.Value), 0, 64)
			if err != nil {
				errs = append(errs, Errf(CodeAssertionIncompatible, elem.Span, "byte-list assertion element must be an integer"))
				continue
			}
			a.EqualsBytes = append(a.EqualsBytes, byte(v))
		}
		return a, errs
	}
	if n.Kind != docnode.KindMap {
		return nil, []*Error{Errf(CodeSchemaError, n.Span, "%q must be a mapping or a list of literal bytes", "assert")}
	}
	if eq, ok := n.Field("equals"); ok {
		a := &Assertion{Kind: AssertEquals, Span: n.Span}
		if eq.Kind == docnode.KindScalar {
			if v, err := strconv.ParseInt(strings.TrimSpace(eq.Value), 0, 64); err == nil {
				a.EqualsInt = v
				a.IsIntLiteral = true
				return a, errs
			}
			a.EqualsBytes = []byte(eq.Value)
			return a, errs
		}
		errs = append(errs, Errf(CodeAssertionIncompatible, eq.Span, "%q must be a literal", "equals"))
		return a, errs
	}
	if rng, ok := n.Field("in-range"); ok {
		a := &Assertion{Kind: AssertInRange, Span: n.Span}
		if rng.Kind != docnode.KindSeq || len(rng.Seq) != 2 {
			errs = append(errs, Errf(CodeAssertionIncompatible, rng.Span, "%q must be a two-element [min, max] sequence", "in-range"))
			return a, errs
		}
		min, errMin := strconv.ParseInt(strings.TrimSpace(rng.Seq[0].Value), 0, 64)
		max, errMax := strconv.ParseInt(strings.TrimSpace(rng.Seq[1].Value), 0, 64)
		if errMin != nil || errMax != nil {
			errs = append(errs, Errf(CodeAssertionIncompatible, rng.Span, "%q bounds must be integers", "in-range"))
			return a, errs
		}
		a.Min, a.Max = min, max
		return a, errs
	}
	errs = append(errs, Errf(CodeSchemaError, n.Span, "%q must set %q or %q", "assert", "equals", "in-range"))
	return nil, errs
}

func decodeEnum(n *docnode.Node, typeName string) (*Enum, []*Error) {
	var errs []*Error
	e := &Enum{}

	underlyingNode, ok := n.Field("underlying")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "enum %q is missing required key %q", typeName, "underlying"))
		return nil, errs
	}
	kind, matched, err := parseScalarOrBits(strings.TrimSpace(underlyingNode.Value))
	scalar, isScalar := kind.(ScalarKind)
	if !matched || err != nil || !isScalar {
		errs = append(errs, Errf(CodeSchemaError, underlyingNode.Span, "enum %q underlying type must be one of u8, i8, u16, i16, u32, i32, u64, i64", typeName))
		return nil, errs
	}
	e.Width = scalar.Width
	e.Signed = scalar.Signed

	variantsNode, ok := n.Field("variants")
	if !ok {
		errs = append(errs, Errf(CodeSchemaError, n.Span, "enum %q is missing required key %q", typeName, "variants"))
		return e, errs
	}
	if variantsNode.Kind != docnode.KindSeq {
		errs = append(errs, Errf(CodeSchemaError, variantsNode.Span, "%q must be a sequence", "variants"))
		return e, errs
	}

	seen := map[string]docnode.Span{}
	values := map[int64]docnode.Span{}
	for _, vn := range variantsNode.Seq {
		if vn.Kind != docnode.KindMap {
			errs = append(errs, Errf(CodeSchemaError, vn.Span, "enum variant must be a mapping"))
			continue
		}
		vname, ok := vn.Field("name")
		if !ok {
			errs = append(errs, Errf(CodeSchemaError, vn.Span, "enum variant is missing required key %q", "name"))
			continue
		}
		if err := ValidateIdent("enum variant", vname.Value); err != nil {
			errs = append(errs, Errf(CodeSchemaError, vname.Span, "%s", err))
		}
		vvalue, ok := vn.Field("value")
		if !ok {
			errs = append(errs, Errf(CodeSchemaError, vn.Span, "enum variant %q is missing required key %q", vname.Value, "value"))
			continue
		}
		val, err := strconv.ParseInt(strings.TrimSpace(vvalue.Value), 0, 64)
		if err != nil {
			errs = append(errs, Errf(CodeSchemaError, vvalue.Span, "enum variant %q value must be an integer", vname.Value))
			continue
		}
		if prev, dup := seen[vname.Value]; dup {
			errs = append(errs, Errf(CodeSchemaError, vn.Span, "duplicate variant name %q (first defined at %s)", vname.Value, prev))
			continue
		}
		if prev, dup := values[val]; dup {
			errs = append(errs, Errf(CodeSchemaError, vn.Span, "duplicate variant value %d (first used at %s)", val, prev))
			continue
		}
		seen[vname.Value] = vn.Span
		values[val] = vn.Span
		e.Variants = append(e.Variants, EnumVariant{Name: vname.Value, Value: val, Span: vn.Span})
	}
	return e, errs
}

// parseTypeExpr parses the textual type-expression grammar: scalar and
// bit-packed primitives, fixed/dynamic/until arrays, the three string
// forms, blob, and bare named-type references.
func parseTypeExpr(s string, span docnode.Span) (FieldKind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errf("empty type expression")
	}

	if s == "cstr" {
		return StringKind{Encoding: StringNullTerminated}, nil
	}
	if strings.HasPrefix(s, "str[") && strings.HasSuffix(s, "]") {
		n, err := strconv.Atoi(strings.TrimSpace(s[4 : len(s)-1]))
		if err != nil {
			return nil, errf("malformed fixed string length in %q", s)
		}
		return StringKind{Encoding: StringFixed, FixedLength: n}, nil
	}
	if strings.HasPrefix(s, "str(") && strings.HasSuffix(s, ")") {
		return StringKind{Encoding: StringLengthPrefixed, LengthField: strings.TrimSpace(s[4 : len(s)-1])}, nil
	}
	if strings.HasPrefix(s, "blob(") && strings.HasSuffix(s, ")") {
		return BlobKind{LengthField: strings.TrimSpace(s[5 : len(s)-1])}, nil
	}

	if kind, matched, err := parseScalarOrBits(s); matched {
		return kind, err
	}

	if i := strings.IndexByte(s, '['); i >= 0 && strings.HasSuffix(s, "]") {
		base := s[:i]
		inside := strings.TrimSpace(s[i+1 : len(s)-1])
		elem, err := parseTypeExpr(base, span)
		if err != nil {
			return nil, err
		}
		switch {
		case inside == "":
			return UntilArrayKind{Elem: elem}, nil
		default:
			if n, err := strconv.Atoi(inside); err == nil {
				return FixedArrayKind{Elem: elem, Length: n}, nil
			}
			return DynamicArrayKind{Elem: elem, LengthField: inside}, nil
		}
	}

	if err := ValidateIdent("type reference", s); err != nil {
		return nil, err
	}
	return NamedStructKind{Name: s}, nil
}

// parseScalarOrBits recognizes the u<N>/i<N> primitive forms. matched is
// true whenever s has that shape at all (so the caller stops trying other
// interpretations), even when the width turns out to be invalid — in
// which case err carries the domain error and kind is nil.
func parseScalarOrBits(s string) (kind FieldKind, matched bool, err error) {
	if len(s) < 2 {
		return nil, false, nil
	}
	var signed Signedness
	switch s[0] {
	case 'u':
		signed = Unsigned
	case 'i':
		signed = Signed
	default:
		return nil, false, nil
	}
	width, convErr := strconv.Atoi(s[1:])
	if convErr != nil {
		return nil, false, nil
	}
	switch width {
	case 8, 16, 32, 64:
		return ScalarKind{Width: width, Signed: signed, Endian: EndianUnresolved}, true, nil
	case 1, 2, 3, 4, 5, 6, 7:
		return BitsKind{Width: width, Signed: signed}, true, nil
	default:
		return nil, true, errf("bit width %d out of domain: scalar widths are 8/16/32/64, bit-packed widths are 1..7", width)
	}
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func spanOf(n *docnode.Node) docnode.Span {
	if n == nil {
		return docnode.Span{}
	}
	return n.Span
}
