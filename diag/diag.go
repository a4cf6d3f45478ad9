// Package diag renders [schema.Error] values as caret/underline source
// diagnostics, independent of the CLI — cmd/binschema is its only
// caller today, but nothing here imports urfave/cli or touches the
// filesystem, so it is testable on its own.
package diag

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/binschema/binschema/schema"
)

// Render prints one caret/underline block per error to w, sorted into
// document order (by span file, then line, then column), independent of
// the order errs were collected in. src is the original document text,
// used to quote the offending line; pass nil to fall back to a
// span-only rendering with no source line.
func Render(w io.Writer, errs []*schema.Error, src []byte) {
	sorted := append([]*schema.Error(nil), errs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Span, sorted[j].Span
		if si.File != sj.File {
			return si.File < sj.File
		}
		if si.Line != sj.Line {
			return si.Line < sj.Line
		}
		return si.Col < sj.Col
	})

	lines := splitLines(src)
	for i, e := range sorted {
		if i > 0 {
			fmt.Fprintln(w)
		}
		renderOne(w, e, lines)
	}
}

func splitLines(src []byte) []string {
	if src == nil {
		return nil
	}
	return strings.Split(string(src), "\n")
}

func renderOne(w io.Writer, e *schema.Error, lines []string) {
	fmt.Fprintf(w, "error[%s]: %s\n", e.Code, e.Message)
	fmt.Fprintf(w, "  --> %s\n", e.Span)

	for _, d := range e.Details {
		fmt.Fprintf(w, "  %s: %v\n", d.Key, d.Value)
	}

	if e.Span.Line <= 0 || e.Span.Line > len(lines) {
		return
	}
	line := lines[e.Span.Line-1]
	gutter := fmt.Sprintf("%d", e.Span.Line)
	fmt.Fprintf(w, "  %s | %s\n", gutter, line)

	col := e.Span.Col
	if col < 1 {
		col = 1
	}
	width := e.Span.EndCol - e.Span.Col
	if e.Span.EndLine != e.Span.Line || width < 1 {
		width = 1
	}
	fmt.Fprintf(w, "  %s | %s%s\n", strings.Repeat(" ", len(gutter)), strings.Repeat(" ", col-1), strings.Repeat("^", width))
}
