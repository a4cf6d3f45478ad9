package cpp

import (
	"testing"

	"github.com/binschema/binschema/internal/testutil"
)

// TestEmitGolden pins the full emitted artifact for a minimal one-field
// unit byte-for-byte, including the injected runtime template — the
// per-struct assertions in emit_test.go only spot-check substrings. Run
// with -update to regenerate testdata/tiny.cpp.golden after a deliberate
// change to the emitter or runtime template.
func TestEmitGolden(t *testing.T) {
	src := `
name: golden_fmt
endianness: little
types:
  - name: Tiny
    type: struct
    fields:
      - name: magic
        type: u32
`
	out := emitSource(t, src)
	testutil.CompareOrWriteGolden(t, "testdata/tiny.cpp.golden", out)
}
