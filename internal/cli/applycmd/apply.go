// Package applycmd implements "patch apply", the CLI front for patch/runner's
// Apply pipeline.
package applycmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/abcxyz/pkg/cli"

	"github.com/grafthq/graft/internal/exitcode"
	"github.com/grafthq/graft/patch/engine"
	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/runner"
)

// Command implements `patch apply <bundle> <target_dir>`.
type Command struct {
	cli.BaseCommand

	flags struct {
		Bundle    string
		TargetDir string
		Quiet     bool
	}
}

func (c *Command) Desc() string {
	return "apply a patch bundle to a target directory"
}

func (c *Command) Help() string {
	return `
Usage: {{ COMMAND }} [options] <bundle> <target_dir>

Reads the patch bundle archive at <bundle>, validates it against
<target_dir>, takes a backup, and applies every entry transactionally. On
any failure, everything already applied in this run is rolled back
automatically before the command returns a non-zero exit code.
`
}

func (c *Command) Flags() *cli.FlagSet {
	set := c.NewFlagSet()
	f := set.NewSection("APPLY OPTIONS")

	f.BoolVar(&cli.BoolVar{
		Name:    "quiet",
		Target:  &c.flags.Quiet,
		Default: false,
		Usage:   "Suppress per-file progress output.",
	})

	set.AfterParse(func(existingErr error) error {
		c.flags.Bundle = set.Arg(0)
		if c.flags.Bundle == "" {
			return fmt.Errorf("missing <bundle> positional argument")
		}
		c.flags.TargetDir = set.Arg(1)
		if c.flags.TargetDir == "" {
			return fmt.Errorf("missing <target_dir> positional argument")
		}
		if extra := set.Arg(2); extra != "" {
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

	compressed, err := os.ReadFile(c.flags.Bundle)
	if err != nil {
		return exitcode.For(fmt.Errorf("reading bundle %q: %w", c.flags.Bundle, err))
	}

	fsys := fsx.RealFS{}
	r, err := runner.FromArchive(fsys, compressed)
	if err != nil {
		return exitcode.For(err)
	}
	defer r.Close()

	stdout := c.Stdout()
	useColor := stdout == os.Stdout && isatty.IsTerminal(os.Stdout.Fd())
	var green, red func(a ...any) string
	if useColor {
		green = color.New(color.FgGreen).SprintFunc()
		red = color.New(color.FgRed).SprintFunc()
	} else {
		green = fmt.Sprint
		red = fmt.Sprint
	}

	obs := engine.ProgressObserver(func(e engine.ProgressEvent) {
		if c.flags.Quiet {
			return
		}
		switch e.Kind {
		case engine.ProgressPhaseStarted:
			fmt.Fprintf(stdout, "== %s ==\n", e.Phase)
		case engine.ProgressOperation:
			fmt.Fprintf(stdout, "  [%d/%d] %s %s\n", e.Progress.Index, e.Progress.Total, e.Progress.Action, e.Progress.File)
		case engine.ProgressDone:
			fmt.Fprintln(stdout, green(fmt.Sprintf("applied %d files", e.FilesPatched)))
		case engine.ProgressError:
			fmt.Fprintln(stdout, red(e.Message))
		}
	})

	robs := engine.RollbackObserver(func(e engine.RollbackEvent) {
		if c.flags.Quiet {
			return
		}
		switch e.Kind {
		case engine.RollbackRolling:
			fmt.Fprintf(stdout, "  [%d/%d] rolling back %s %s\n", e.Progress.Index, e.Progress.Total, e.Progress.Action, e.Progress.File)
		case engine.RollbackDone:
			fmt.Fprintln(stdout, red(fmt.Sprintf("rolled back %d files", e.FilesRestored)))
		}
	})

	if err := r.Apply(c.flags.TargetDir, obs, robs); err != nil {
		return exitcode.For(fmt.Errorf("apply failed: %w", err))
	}

	return nil
}
