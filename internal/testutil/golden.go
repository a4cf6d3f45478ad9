package testutil

import (
	"flag"
	"os"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Update controls whether [CompareOrWriteGolden] overwrites the golden
// file with the actual value instead of comparing against it. Importing
// this package registers it as the -update test flag.
var Update = flag.Bool("update", false, "update golden files")

// CompareOrWriteGolden compares data against the contents of the golden
// file at path. With -update it overwrites the golden file instead. On
// mismatch it reports a human-readable diff via go-diff rather than
// dumping both full strings.
func CompareOrWriteGolden(t *testing.T, path string, data string) {
	t.Helper()
	if *Update {
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write golden %s: %v", path, err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden %s: %v (run with -update to create it)", path, err)
	}
	if string(want) == data {
		return
	}
	dmp := diffmatchpatch.New()
	dmp.PatchMargin = 3
	diffs := dmp.DiffMain(string(want), data, false)
	t.Errorf("%s does not match golden value:\n%s", path, dmp.DiffPrettyText(diffs))
}
