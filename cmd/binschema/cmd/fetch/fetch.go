// Package fetch implements the `binschema fetch` subcommand: pull a
// shared schema bundle from an OCI registry and unpack it to a local
// directory, so it can be referenced by a later `include:` as a plain
// relative path.
package fetch

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/binschema/binschema/internal/oci"
	"github.com/binschema/binschema/internal/pipeline"
)

// Command is the CLI command for fetch.
var Command = &cli.Command{
	Name:      "fetch",
	Usage:     "pull a shared schema bundle from an OCI registry",
	ArgsUsage: "<oci-ref>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      "out",
			Aliases:   []string{"o"},
			Value:     ".",
			TakesFile: true,
			OnlyOnce:  true,
			Usage:     "directory to unpack the bundle into",
		},
	},
	Action: action,
}

func action(ctx context.Context, cmd *cli.Command) error {
	ref, err := pipeline.ParseOneArg("oci-ref", cmd.Args().Slice())
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if !oci.IsOCIPath(ref) {
		return fmt.Errorf("fetch: %q is not a valid OCI reference", ref)
	}
	out := cmd.String("out")

	buf, err := oci.PullBundle(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", ref, err)
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	rdr, err := oci.TarReader(buf.Bytes())
	if err != nil {
		return fmt.Errorf("fetch %q: %w", ref, err)
	}

	var n int
	for {
		hdr, err := rdr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("fetch %q: read bundle: %w", ref, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		dest := filepath.Join(out, filepath.Clean(filepath.FromSlash(hdr.Name)))
		if !strings.HasPrefix(dest, filepath.Clean(out)+string(filepath.Separator)) {
			return fmt.Errorf("fetch %q: bundle entry %q escapes output directory", ref, hdr.Name)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, rdr); err != nil {
			f.Close()
			return fmt.Errorf("fetch %q: write %q: %w", ref, dest, err)
		}
		f.Close()
		n++
	}

	fmt.Fprintf(os.Stderr, "fetched %d file(s) from %s into %s\n", n, ref, out)
	return nil
}
