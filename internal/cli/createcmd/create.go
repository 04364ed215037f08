// Package createcmd implements "patch create", the CLI front for
// patch/create.
package createcmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abcxyz/pkg/cli"

	"github.com/grafthq/graft/internal/exitcode"
	"github.com/grafthq/graft/internal/version"
	"github.com/grafthq/graft/patch/create"
	"github.com/grafthq/graft/patch/fsx"
)

// Command implements `patch create <orig_dir> <new_dir> <output_dir>`.
type Command struct {
	cli.BaseCommand

	flags Flags
}

// Flags holds patch create's arguments.
type Flags struct {
	OrigDir         string
	NewDir          string
	OutputDir       string
	Version         int
	Title           string
	AllowRestricted bool

	schemaVersionRaw string
}

func (c *Command) Desc() string {
	return "build a patch bundle from an original and a modified directory tree"
}

func (c *Command) Help() string {
	return `
Usage: {{ COMMAND }} [options] <orig_dir> <new_dir> <output_dir>

Scans <orig_dir> against <new_dir> and writes a patch bundle directory to
<output_dir>, containing manifest.json and whichever of diffs/, files/,
assets/ the change set requires.
`
}

func (c *Command) Flags() *cli.FlagSet {
	set := c.NewFlagSet()
	f := set.NewSection("CREATE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "schema-version",
		Target:  &c.flags.schemaVersionRaw,
		Default: "1",
		Usage:   "Manifest schema version to stamp into the bundle.",
	})

	f.StringVar(&cli.StringVar{
		Name:   "title",
		Target: &c.flags.Title,
		Usage:  "Optional display title propagated to the UI layer.",
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "allow-restricted",
		Target:  &c.flags.AllowRestricted,
		Default: false,
		Usage:   "Disable the path-restriction policy for this bundle.",
	})

	set.AfterParse(func(existingErr error) error {
		v, err := strconv.Atoi(c.flags.schemaVersionRaw)
		if err != nil {
			return fmt.Errorf("-schema-version must be an integer, got %q", c.flags.schemaVersionRaw)
		}
		c.flags.Version = v

		c.flags.OrigDir = set.Arg(0)
		if c.flags.OrigDir == "" {
			return fmt.Errorf("missing <orig_dir> positional argument")
		}
		c.flags.NewDir = set.Arg(1)
		if c.flags.NewDir == "" {
			return fmt.Errorf("missing <new_dir> positional argument")
		}
		c.flags.OutputDir = set.Arg(2)
		if c.flags.OutputDir == "" {
			return fmt.Errorf("missing <output_dir> positional argument")
		}
		if extra := set.Arg(3); extra != "" {
			return fmt.Errorf("unexpected extra argument %q", extra)
		}

		return existingErr
	})

	return set
}

func (c *Command) Run(ctx context.Context, args []string) error {
	if err := c.Flags().Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	var toolVersion string
	if version.IsReleaseBuild() {
		toolVersion = version.Version
	}

	result, err := create.Create(fsx.RealFS{}, create.Options{
		OrigDir:         c.flags.OrigDir,
		NewDir:          c.flags.NewDir,
		OutputDir:       c.flags.OutputDir,
		Version:         c.flags.Version,
		Title:           c.flags.Title,
		AllowRestricted: c.flags.AllowRestricted,
		ToolVersion:     toolVersion,
	})
	if err != nil {
		return exitcode.For(err)
	}

	fmt.Fprintf(c.Stdout(), "wrote %d entries to %s\n", result.ChangeCount, c.flags.OutputDir)
	return nil
}
