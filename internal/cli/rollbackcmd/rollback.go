// Package rollbackcmd implements "patch rollback", the CLI front for
// patch/runner's Rollback pipeline.
package rollbackcmd

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

// Command implements `patch rollback <bundle> <target_dir>`.
type Command struct {
	cli.BaseCommand

	flags struct {
		Bundle      string
		TargetDir   string
		Force       bool
		DeleteAfter bool
	}
}

func (c *Command) Desc() string {
	return "roll a previously applied patch bundle back"
}

func (c *Command) Help() string {
	return `
Usage: {{ COMMAND }} [options] <bundle> <target_dir>

Restores <target_dir> to the state it was in before <bundle> was applied,
using the backup left behind by "patch apply". Refuses to roll back a
target whose files no longer match the post-apply state unless -force is
given.
`
}

func (c *Command) Flags() *cli.FlagSet {
	set := c.NewFlagSet()
	f := set.NewSection("ROLLBACK OPTIONS")

	f.BoolVar(&cli.BoolVar{
		Name:    "force",
		Target:  &c.flags.Force,
		Default: false,
		Usage:   "Roll back even if the target no longer matches the post-apply state.",
	})

	f.BoolVar(&cli.BoolVar{
		Name:    "delete-backup",
		Target:  &c.flags.DeleteAfter,
		Default: false,
		Usage:   "Remove the backup directory after a successful rollback.",
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
	var red func(a ...any) string
	if useColor {
		red = color.New(color.FgRed).SprintFunc()
	} else {
		red = fmt.Sprint
	}

	robs := engine.RollbackObserver(func(e engine.RollbackEvent) {
		switch e.Kind {
		case engine.RollbackValidatingTarget:
			fmt.Fprintln(stdout, "validating target state...")
		case engine.RollbackValidatingBackup:
			fmt.Fprintln(stdout, "validating backup...")
		case engine.RollbackRolling:
			fmt.Fprintf(stdout, "  [%d/%d] %s %s\n", e.Progress.Index, e.Progress.Total, e.Progress.Action, e.Progress.File)
		case engine.RollbackDone:
			fmt.Fprintln(stdout, red(fmt.Sprintf("restored %d files", e.FilesRestored)))
		}
	})

	if err := r.Rollback(c.flags.TargetDir, c.flags.Force, robs); err != nil {
		return exitcode.For(fmt.Errorf("rollback failed: %w", err))
	}

	if c.flags.DeleteAfter {
		if err := r.DeleteBackup(c.flags.TargetDir); err != nil {
			return exitcode.For(fmt.Errorf("deleting backup: %w", err))
		}
	}

	return nil
}
