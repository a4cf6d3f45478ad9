package stringio

import (
	"strings"
	"testing"
)

func TestWriteConcatenatesAndCountsBytes(t *testing.T) {
	var b strings.Builder
	n, err := Write(&b, "a", "bb", "ccc")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 6 {
		t.Errorf("n = %d, want 6", n)
	}
	if b.String() != "abbccc" {
		t.Errorf("b.String() = %q, want %q", b.String(), "abbccc")
	}
}
