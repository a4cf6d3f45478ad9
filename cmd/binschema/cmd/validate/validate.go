// Package validate implements the `binschema validate` subcommand:
// front-end and analyzer only, no lowering or emission.
package validate

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/binschema/binschema/internal/pipeline"
)

// Command is the CLI command for validate.
var Command = &cli.Command{
	Name:      "validate",
	Usage:     "check a schema document for structural and semantic errors",
	ArgsUsage: "<schema-path>",
	Action:    action,
}

func action(ctx context.Context, cmd *cli.Command) error {
	path, err := pipeline.ParseOneArg("schema-path", cmd.Args().Slice())
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	res, err := pipeline.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("validate %q: %w", path, err)
	}

	if len(res.Errs) == 0 {
		fmt.Fprintf(os.Stderr, "%s: ok (%d type(s))\n", path, len(res.Unit.Types))
		return nil
	}

	res.RenderErrors(os.Stderr)
	return fmt.Errorf("validate %q: %d error(s)", path, len(res.Errs))
}
