package schema

import "testing"

func TestValidIdent(t *testing.T) {
	tests := []struct {
		s  string
		ok bool
	}{
		{"magic", true},
		{"chunk_type", true},
		{"_private", true},
		{"Header2", true},
		{"", false},
		{"2field", false},
		{"chunk-type", false},
		{"chunk type", false},
		{"chunk.type", false},
	}
	for _, tt := range tests {
		if got := ValidIdent(tt.s); got != tt.ok {
			t.Errorf("ValidIdent(%q) = %v, want %v", tt.s, got, tt.ok)
		}
	}
}

func TestValidateIdent(t *testing.T) {
	if err := ValidateIdent("field", "magic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateIdent("field", "2bad"); err == nil {
		t.Fatal("expected error for invalid identifier")
	}
}
