// Package cpp is the reference backend: it walks a [lir.Unit] and emits a
// single header-only C++ artifact satisfying the emitter contract from
// spec.md §4.F — a namespace holding the runtime helpers (Reader, Writer,
// BitReader, BitWriter, ParseError), one value type per HIR struct with
// static read(Reader&) / write(Writer&) const methods, and one enum class
// per HIR enum.
package cpp

import (
	"fmt"
	"strings"

	"github.com/coreos/go-semver/semver"

	"github.com/binschema/binschema/codegen"
	"github.com/binschema/binschema/internal/stringio"
	"github.com/binschema/binschema/lir"
)

func init() {
	codegen.Register(Emitter{})
}

// Emitter is the reference C++ backend, registered under the name "cpp".
type Emitter struct{}

// Name implements [codegen.Emitter].
func (Emitter) Name() string { return "cpp" }

// Emit implements [codegen.Emitter]: it walks unit and returns the
// generated header text. It returns an error only when unit.Order names a
// type found in neither Structs nor Enums, and that error is a plain
// error, not a *schema.Error. An op whose tag the emitter has no case for
// produces no output and no error.
func (Emitter) Emit(unit *lir.Unit) ([]byte, error) {
	var b strings.Builder

	stringio.Write(&b,
		"// Code generated by binschema. DO NOT EDIT.\n",
		"#pragma once\n\n",
		"#include <cstddef>\n",
		"#include <cstdint>\n",
		"#include <cstdio>\n",
		"#include <optional>\n",
		"#include <ostream>\n",
		"#include <stdexcept>\n",
		"#include <string>\n",
		"#include <vector>\n\n",
		"namespace ", namespaceName(unit.Name), " {\n\n",
	)

	writeVersionConstant(&b, unit.Version)
	b.WriteString(runtimeTemplate)
	b.WriteString("\n")

	var errs []error
	for _, name := range unit.Order {
		if e, ok := unit.Enums[name]; ok {
			emitEnum(&b, e)
			continue
		}
		s, ok := unit.Structs[name]
		if !ok {
			errs = append(errs, fmt.Errorf("lir unit order names %q, found in neither Structs nor Enums", name))
			continue
		}
		if err := emitStruct(&b, unit.Name, s); err != nil {
			errs = append(errs, err)
		}
	}

	fmt.Fprintf(&b, "}  // namespace %s\n", namespaceName(unit.Name))

	if len(errs) != 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("emit %q: %s", unit.Name, strings.Join(msgs, "; "))
	}
	return []byte(b.String()), nil
}

// namespaceName lowercases the unit name for the emitted C++ namespace,
// per spec.md §6: "the namespace <unit_name_lowercased>".
func namespaceName(unitName string) string {
	return strings.ToLower(unitName)
}

// writeVersionConstant emits the unit's optional version string as an
// `inline constexpr` constant in the namespace. A version string that
// parses as semver is normalized through [semver.Version]; any other
// non-empty string (a schema author's freeform version tag) falls back
// to a plain string constant unchanged, per SPEC_FULL.md §3.
func writeVersionConstant(b *strings.Builder, version string) {
	if version == "" {
		return
	}
	if v, err := semver.NewVersion(strings.TrimPrefix(version, "v")); err == nil {
		fmt.Fprintf(b, "inline constexpr const char* kVersion = %q;\n", v.String())
		fmt.Fprintf(b, "inline constexpr int kVersionMajor = %d;\n", v.Major)
		fmt.Fprintf(b, "inline constexpr int kVersionMinor = %d;\n", v.Minor)
		fmt.Fprintf(b, "inline constexpr int kVersionPatch = %d;\n\n", v.Patch)
		return
	}
	fmt.Fprintf(b, "inline constexpr const char* kVersion = %q;\n\n", version)
}

// emitEnum writes one `enum class` declaration plus an operator<< so a
// consumer can log an unknown variant without hand-rolled boilerplate
// (spec.md §4.F "Unknown-enum-value on read: pass the raw value through
// ... the consumer decides" — this just makes that value printable).
func emitEnum(b *strings.Builder, e *lir.Enum) {
	if e.Doc != "" {
		writeDocComment(b, "", e.Doc)
	}
	underlying := enumUnderlying(e.Width, e.Signed)
	fmt.Fprintf(b, "enum class %s : %s {\n", e.Name, underlying)
	for _, v := range e.Variants {
		fmt.Fprintf(b, "    %s = %d,\n", v.Name, v.Value)
	}
	b.WriteString("};\n\n")

	fmt.Fprintf(b, "inline std::ostream& operator<<(std::ostream& os, %s v) {\n", e.Name)
	b.WriteString("    switch (v) {\n")
	seen := map[int64]bool{}
	for _, v := range e.Variants {
		if seen[v.Value] {
			continue // duplicate values rejected at analysis time; defensive only
		}
		seen[v.Value] = true
		fmt.Fprintf(b, "        case %s::%s: return os << \"%s\";\n", e.Name, v.Name, v.Name)
	}
	b.WriteString("    }\n")
	fmt.Fprintf(b, "    return os << static_cast<%s>(v);\n", underlying)
	b.WriteString("}\n\n")
}

// emitStruct writes one struct's field declarations, static read(),
// write() const, and a field-wise operator== (spec.md §6 "Emitted
// artifact ergonomics": this is what makes spec.md §8 Property 1
// round-trip equality testable from consumer code).
func emitStruct(b *strings.Builder, unitName string, s *lir.Struct) error {
	if s.Doc != "" {
		writeDocComment(b, "", s.Doc)
	}
	fmt.Fprintf(b, "struct %s {\n", s.Name)
	for _, f := range s.Fields {
		if f.Doc != "" {
			writeDocComment(b, "    ", f.Doc)
		}
		t := cppType(unitName, f.Kind)
		if f.Optional {
			t = "std::optional<" + t + ">"
		}
		fmt.Fprintf(b, "    %s %s{};\n", t, f.Name)
	}
	b.WriteString("\n")

	g := newStructGen(unitName, s)

	fmt.Fprintf(b, "    static %s read(Reader& r) {\n", s.Name)
	fmt.Fprintf(b, "        %s out{};\n", s.Name)
	g.emitRead(b, "        ", s.Read.Ops, "")
	b.WriteString("        return out;\n")
	b.WriteString("    }\n\n")

	g = newStructGen(unitName, s)
	b.WriteString("    void write(Writer& w) const {\n")
	fmt.Fprintf(b, "        const %s& v = *this;\n", s.Name)
	g.emitWrite(b, "        ", s.Write.Ops, "")
	b.WriteString("    }\n\n")

	fmt.Fprintf(b, "    bool operator==(const %s& other) const {\n", s.Name)
	b.WriteString("        return ")
	writeFieldComparisons(b, s.Fields)
	b.WriteString(";\n    }\n")
	fmt.Fprintf(b, "    bool operator!=(const %s& other) const { return !(*this == other); }\n", s.Name)

	b.WriteString("};\n\n")
	return nil
}

func writeFieldComparisons(b *strings.Builder, fields []lir.FieldDecl) {
	if len(fields) == 0 {
		b.WriteString("true")
		return
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteString(" && ")
		}
		fmt.Fprintf(b, "%s == other.%s", f.Name, f.Name)
	}
}

// writeDocComment renders doc as a `//` comment block immediately above
// the member or type it documents, one line per newline in doc.
func writeDocComment(b *strings.Builder, indent, doc string) {
	for _, line := range strings.Split(strings.TrimRight(doc, "\n"), "\n") {
		fmt.Fprintf(b, "%s// %s\n", indent, line)
	}
}
