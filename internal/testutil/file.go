// Package testutil contains small helpers shared by the compiler's test suites.
package testutil

import (
	"io"
	"os"

	"github.com/binschema/binschema/internal/relpath"
)

// ReadFile reads a file at a source-file relative path, returning its
// contents or an error.
func ReadFile(p string) ([]byte, error) {
	f, err := os.Open(relpath.CallerRel(p))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
