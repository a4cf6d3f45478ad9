package diag

import (
	"strings"
	"testing"

	"github.com/binschema/binschema/schema"
	"github.com/binschema/binschema/schema/docnode"
)

func TestRenderCaretUnderline(t *testing.T) {
	src := []byte("types:\n  - name: A\n    field: bad\n")
	errs := []*schema.Error{
		schema.Errf(schema.CodeSchemaError, docnode.Span{File: "f.yaml", Line: 3, Col: 5, EndLine: 3, EndCol: 10}, "unknown key %q", "field"),
	}
	var b strings.Builder
	Render(&b, errs, src)
	out := b.String()

	for _, want := range []string{
		"error[SchemaError]:",
		`unknown key "field"`,
		"f.yaml",
		"    field: bad",
		"^^^^^",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendering missing %q, got:\n%s", want, out)
		}
	}
}

func TestRenderOrdersByDocumentPosition(t *testing.T) {
	errs := []*schema.Error{
		schema.Errf(schema.CodeUnresolvedType, docnode.Span{File: "f.yaml", Line: 10}, "second"),
		schema.Errf(schema.CodeUnresolvedType, docnode.Span{File: "f.yaml", Line: 2}, "first"),
	}
	var b strings.Builder
	Render(&b, errs, nil)
	out := b.String()
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("errors not sorted into document order:\n%s", out)
	}
}

func TestRenderMultipleFiles(t *testing.T) {
	errs := []*schema.Error{
		schema.Errf(schema.CodeSchemaError, docnode.Span{File: "b.yaml", Line: 1}, "in b"),
		schema.Errf(schema.CodeSchemaError, docnode.Span{File: "a.yaml", Line: 1}, "in a"),
	}
	var b strings.Builder
	Render(&b, errs, nil)
	out := b.String()
	if strings.Index(out, "a.yaml") > strings.Index(out, "b.yaml") {
		t.Errorf("errors not sorted by file:\n%s", out)
	}
}

func TestRenderNoSourceFallsBack(t *testing.T) {
	errs := []*schema.Error{
		schema.Errf(schema.CodeSchemaError, docnode.Span{File: "f.yaml", Line: 5, Col: 1}, "oops"),
	}
	var b strings.Builder
	Render(&b, errs, nil)
	out := b.String()
	if !strings.Contains(out, "oops") {
		t.Fatalf("rendering missing message, got:\n%s", out)
	}
	if strings.Contains(out, "|") {
		t.Errorf("no-source rendering should not quote a source line, got:\n%s", out)
	}
}
