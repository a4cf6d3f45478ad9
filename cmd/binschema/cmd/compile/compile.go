// Package compile implements the `binschema compile` subcommand: the
// full pipeline from schema document to a generated codec artifact.
package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/binschema/binschema/codegen"
	_ "github.com/binschema/binschema/codegen/cpp" // registers the "cpp" backend
	"github.com/binschema/binschema/internal/pipeline"
	"github.com/binschema/binschema/lir"
	"github.com/binschema/binschema/lower"
)

// Command is the CLI command for compile.
var Command = &cli.Command{
	Name:      "compile",
	Usage:     "compile a schema document into a generated codec",
	ArgsUsage: "<schema-path>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "backend",
			Aliases:  []string{"b"},
			Value:    "cpp",
			OnlyOnce: true,
			Usage:    fmt.Sprintf("codegen backend (available: %s)", strings.Join(codegen.Names(), ", ")),
		},
		&cli.StringFlag{
			Name:      "output",
			Aliases:   []string{"o"},
			Value:     ".",
			TakesFile: true,
			OnlyOnce:  true,
			Usage:     "output directory",
		},
	},
	Action: action,
}

type config struct {
	path    string
	backend string
	out     string
}

func action(ctx context.Context, cmd *cli.Command) error {
	cfg, err := parseFlags(cmd)
	if err != nil {
		return err
	}

	emitter, ok := codegen.Lookup(cfg.backend)
	if !ok {
		return fmt.Errorf("compile: unknown backend %q (available: %s)", cfg.backend, strings.Join(codegen.Names(), ", "))
	}

	res, err := pipeline.Load(ctx, cfg.path)
	if err != nil {
		return fmt.Errorf("compile %q: %w", cfg.path, err)
	}
	if len(res.Errs) != 0 {
		res.RenderErrors(os.Stderr)
		return fmt.Errorf("compile %q: %d error(s)", cfg.path, len(res.Errs))
	}

	unit, lowerErrs := lower.Unit(res.Unit)
	if len(lowerErrs) != 0 {
		res.Errs = lowerErrs
		res.RenderErrors(os.Stderr)
		return fmt.Errorf("compile %q: %d lowering error(s)", cfg.path, len(lowerErrs))
	}

	if verr := validatePlans(unit); len(verr) != 0 {
		for _, e := range verr {
			fmt.Fprintf(os.Stderr, "error: %v\n", e)
		}
		return fmt.Errorf("compile %q: %d internal validation error(s)", cfg.path, len(verr))
	}

	out, err := emitter.Emit(unit)
	if err != nil {
		return fmt.Errorf("compile %q: %w", cfg.path, err)
	}

	return writeArtifact(cfg.out, unit.Name, emitter.Name(), out)
}

// validatePlans runs [lir.Validate] over every struct's read and write
// plan. A failure here means lowering produced an internally
// inconsistent op sequence — a compiler bug, not a schema error — so it
// is reported plainly rather than through [diag.Render].
func validatePlans(unit *lir.Unit) []error {
	var errs []error
	for _, name := range unit.Order {
		s, ok := unit.Structs[name]
		if !ok {
			continue
		}
		errs = append(errs, lir.Validate(s.Read)...)
		errs = append(errs, lir.Validate(s.Write)...)
	}
	return errs
}

func parseFlags(cmd *cli.Command) (*config, error) {
	path, err := pipeline.ParseOneArg("schema-path", cmd.Args().Slice())
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	out := cmd.String("output")
	if info, err := os.Stat(out); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("compile: %s is not a directory", out)
	}
	return &config{
		path:    path,
		backend: cmd.String("backend"),
		out:     out,
	}, nil
}

func artifactExt(backend string) string {
	switch backend {
	case "cpp":
		return ".hpp"
	default:
		return ".out"
	}
}

func writeArtifact(outDir, unitName, backend string, content []byte) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(outDir, unitName+artifactExt(backend))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}
