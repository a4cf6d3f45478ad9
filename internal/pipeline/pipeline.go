// Package pipeline runs the front-end-through-analysis stages shared by
// the compile and validate CLI commands: load the root schema document,
// resolve and merge its includes (local files or oci:// bundles), then
// run semantic analysis. Lowering and emission are left to the caller,
// since validate stops short of them.
package pipeline

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/binschema/binschema/diag"
	"github.com/binschema/binschema/internal/oci"
	"github.com/binschema/binschema/internal/relpath"
	"github.com/binschema/binschema/schema"
	"github.com/binschema/binschema/schema/docnode"
)

// Result is a loaded and analyzed unit, plus every source file read along
// the way so diag.Render can quote the right line for an error regardless
// of which included document raised it.
type Result struct {
	Unit    *schema.Unit
	Sources map[string][]byte
	Errs    []*schema.Error
}

// ParseOneArg validates a subcommand's positional arguments as exactly
// one required value named label in error messages (e.g. "schema-path",
// "oci-ref") — every binschema subcommand takes exactly one.
func ParseOneArg(label string, args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", fmt.Errorf("missing required <%s> argument", label)
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("found %d <%s> arguments, expecting 1", len(args), label)
	}
}

// Load reads the schema document at path, merges its includes, and runs
// [schema.Resolve]. Decode and merge errors short-circuit analysis (there
// is no well-formed unit to analyze); a nil Unit in the returned Result
// means the caller has nothing usable.
func Load(ctx context.Context, path string) (*Result, error) {
	res := &Result{Sources: map[string][]byte{}}

	node, err := res.loadDoc(path)
	if err != nil {
		return nil, err
	}

	unit, includes, errs := schema.DecodeUnit(node)
	res.Errs = append(res.Errs, errs...)
	if unit == nil {
		return res, nil
	}

	var includedUnits []*schema.Unit
	for _, inc := range includes {
		incUnit, err := res.loadInclude(ctx, path, inc)
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", inc, err)
		}
		if incUnit != nil {
			includedUnits = append(includedUnits, incUnit)
		}
	}

	if len(includedUnits) > 0 {
		merged, mergeErrs := schema.MergeIncludes(unit, includedUnits...)
		unit = merged
		res.Errs = append(res.Errs, mergeErrs...)
	}

	res.Unit = unit
	if len(res.Errs) == 0 {
		res.Errs = append(res.Errs, schema.Resolve(unit)...)
	}
	return res, nil
}

// loadDoc reads and parses one local YAML file, recording its source
// under path for later diagnostic rendering.
func (res *Result) loadDoc(path string) (*docnode.Node, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res.Sources[path] = src
	return docnode.LoadYAML(path, src)
}

// loadInclude resolves one include entry relative to basePath: a local
// relative path is loaded directly, an oci:// reference is pulled and
// unpacked as a tar bundle of schema documents, each decoded and merged
// into a single synthetic unit (sharing basePath's type namespace).
func (res *Result) loadInclude(ctx context.Context, basePath, inc string) (*schema.Unit, error) {
	if strings.HasPrefix(inc, "oci://") {
		return res.loadOCIInclude(ctx, strings.TrimPrefix(inc, "oci://"))
	}

	dir := filepath.Dir(basePath)
	incPath, err := relpath.Abs(filepath.Join(dir, inc))
	if err != nil {
		return nil, err
	}
	node, err := res.loadDoc(incPath)
	if err != nil {
		return nil, err
	}
	unit, _, errs := schema.DecodeUnit(node)
	res.Errs = append(res.Errs, errs...)
	return unit, nil
}

func (res *Result) loadOCIInclude(ctx context.Context, ref string) (*schema.Unit, error) {
	buf, err := oci.PullBundle(ctx, ref)
	if err != nil {
		return nil, err
	}

	merged := &schema.Unit{Name: ref}
	var mergeSrcs []*schema.Unit

	rdr, err := oci.TarReader(buf.Bytes())
	if err != nil {
		return nil, err
	}
	for {
		hdr, err := rdr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle %q: %w", ref, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !strings.HasSuffix(hdr.Name, ".yaml") && !strings.HasSuffix(hdr.Name, ".yml") {
			continue
		}
		src, err := io.ReadAll(rdr)
		if err != nil {
			return nil, fmt.Errorf("read bundle entry %q: %w", hdr.Name, err)
		}
		docPath := ref + "!" + hdr.Name
		res.Sources[docPath] = src
		node, err := docnode.LoadYAML(docPath, src)
		if err != nil {
			return nil, fmt.Errorf("parse bundle entry %q: %w", hdr.Name, err)
		}
		unit, _, errs := schema.DecodeUnit(node)
		res.Errs = append(res.Errs, errs...)
		if unit != nil {
			mergeSrcs = append(mergeSrcs, unit)
		}
	}

	base, mergeErrs := schema.MergeIncludes(merged, mergeSrcs...)
	res.Errs = append(res.Errs, mergeErrs...)
	return base, nil
}

// RenderErrors prints errs grouped by the source file their span names,
// in file-name order, quoting from res.Sources when a file was actually
// read (an included OCI bundle entry still has its synthetic path, so it
// renders too; only an error with no span source at all falls back to
// [diag.Render]'s no-source mode).
func (res *Result) RenderErrors(w io.Writer) {
	byFile := map[string][]*schema.Error{}
	var files []string
	for _, e := range res.Errs {
		f := e.Span.File
		if _, ok := byFile[f]; !ok {
			files = append(files, f)
		}
		byFile[f] = append(byFile[f], e)
	}
	sort.Strings(files)
	for i, f := range files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		diag.Render(w, byFile[f], res.Sources[f])
	}
}
