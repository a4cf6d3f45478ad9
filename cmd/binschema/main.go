package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"

	"github.com/binschema/binschema/cmd/binschema/cmd/compile"
	"github.com/binschema/binschema/cmd/binschema/cmd/fetch"
	"github.com/binschema/binschema/cmd/binschema/cmd/validate"
)

var (
	version  = ""
	revision = ""
)

func init() {
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = build.Main.Version
	for _, s := range build.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		}
	}
	if version == "" {
		version = revision
	}
	if version == "" {
		version = "(none)"
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "binschema",
		Usage: "compile a declarative binary format schema into a generated codec",
		Commands: []*cli.Command{
			compile.Command,
			validate.Command,
			fetch.Command,
		},
		Version: version,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
