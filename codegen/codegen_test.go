package codegen

import (
	"testing"

	"github.com/binschema/binschema/lir"
)

type fakeEmitter struct{ name string }

func (f fakeEmitter) Name() string                  { return f.name }
func (f fakeEmitter) Emit(*lir.Unit) ([]byte, error) { return []byte(f.name), nil }

func TestRegisterLookupNames(t *testing.T) {
	Register(fakeEmitter{name: "zzz-test-backend"})
	Register(fakeEmitter{name: "aaa-test-backend"})

	e, ok := Lookup("zzz-test-backend")
	if !ok {
		t.Fatal("Lookup did not find registered emitter")
	}
	out, err := e.Emit(nil)
	if err != nil || string(out) != "zzz-test-backend" {
		t.Fatalf("Emit() = %q, %v", out, err)
	}

	if _, ok := Lookup("does-not-exist"); ok {
		t.Fatal("Lookup found an unregistered name")
	}

	names := Names()
	var sawA, sawZ, aBeforeZ bool
	aIdx, zIdx := -1, -1
	for i, n := range names {
		if n == "aaa-test-backend" {
			sawA = true
			aIdx = i
		}
		if n == "zzz-test-backend" {
			sawZ = true
			zIdx = i
		}
	}
	if !sawA || !sawZ {
		t.Fatalf("Names() = %v, missing registered entries", names)
	}
	aBeforeZ = aIdx < zIdx
	if !aBeforeZ {
		t.Errorf("Names() = %v, want sorted order", names)
	}
}
