// Package relpath contains path helpers used by the CLI and test suites.
package relpath

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Abs returns an absolute representation of path. If the path is not
// absolute it is joined with the current working directory.
// See [filepath.Abs] for more information.
func Abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, path), nil
}

// Rel returns a best-effort relative path. If an error occurs
// trying to make target relative to base, target is returned unmodified.
func Rel(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}

// CallerRel returns a source-file relative path, resolved against the
// directory of the calling file. Used by tests loading schema fixtures
// so they work regardless of the test binary's working directory.
func CallerRel(path string) string {
	if !filepath.IsLocal(path) {
		return path
	}
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return path
	}
	dir := filepath.Dir(file)
	return filepath.Join(dir, path)
}

// Walk walks the files in directory dir, passing them to func f.
// Supply glob patterns (e.g. "*.schema.yaml") to filter files passed to f.
func Walk(dir string, f func(path string) error, patterns ...string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		if len(patterns) == 0 {
			return f(path)
		}
		for _, p := range patterns {
			matched, err := filepath.Match(p, filepath.Base(path))
			if err != nil {
				return err
			}
			if matched {
				return f(path)
			}
		}
		return nil
	})
}
