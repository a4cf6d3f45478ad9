// Package codegen defines the backend-facing contract lowering's output
// must satisfy: an [Emitter] walks a [lir.Unit] and returns a single
// source artifact. Concrete backends (codegen/cpp today) register
// themselves under a name so the CLI's --backend flag can dispatch
// without the core importing a specific backend package.
package codegen

import (
	"sort"

	"github.com/binschema/binschema/lir"
)

// Emitter walks a lowered unit and emits a single source artifact.
type Emitter interface {
	// Name is the --backend identifier this emitter registers under.
	Name() string
	// Emit returns the generated artifact, or an error if the backend
	// cannot emit unit.
	Emit(unit *lir.Unit) ([]byte, error)
}

var registry = map[string]Emitter{}

// Register adds e to the backend registry under e.Name(). Backend
// packages call this from an init function.
func Register(e Emitter) {
	registry[e.Name()] = e
}

// Lookup returns the registered emitter for name, or false if none is
// registered under that name.
func Lookup(name string) (Emitter, bool) {
	e, ok := registry[name]
	return e, ok
}

// Names returns the sorted list of registered backend names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
