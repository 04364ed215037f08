// Package describecmd implements "patch describe", a read-only subcommand
// that prints a bundle's manifest summary and, for small text entries, a
// unified-diff preview.
package describecmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/abcxyz/pkg/cli"

	"github.com/grafthq/graft/internal/exitcode"
	"github.com/grafthq/graft/patch/archive"
	"github.com/grafthq/graft/patch/delta"
	"github.com/grafthq/graft/patch/manifest"
)

// previewSizeCeiling bounds how large a patched file can be before its
// diff preview is skipped in favor of just listing the entry.
const previewSizeCeiling = 16 * 1024

// Command implements `patch describe <bundle>`.
type Command struct {
	cli.BaseCommand

	flags struct {
		Bundle    string
		TargetDir string
		Preview   bool
	}
}

func (c *Command) Desc() string {
	return "print a summary of a patch bundle without applying it"
}

func (c *Command) Help() string {
	return `
Usage: {{ COMMAND }} [options] <bundle> [target_dir]

Reads just the manifest out of <bundle> and prints a summary: schema
version, title, and a count of patched/added/deleted files. With
-preview and a <target_dir> to read each patch entry's original content
from, also renders a diff preview for small text patches.
`
}

func (c *Command) Flags() *cli.FlagSet {
	set := c.NewFlagSet()
	f := set.NewSection("DESCRIBE OPTIONS")

	f.BoolVar(&cli.BoolVar{
		Name:    "preview",
		Target:  &c.flags.Preview,
		Default: false,
		Usage:   "Render a unified-diff preview for small text patches.",
	})

	set.AfterParse(func(existingErr error) error {
		c.flags.Bundle = set.Arg(0)
		if c.flags.Bundle == "" {
			return fmt.Errorf("missing <bundle> positional argument")
		}
		c.flags.TargetDir = set.Arg(1)
		if c.flags.Preview && c.flags.TargetDir == "" {
			return fmt.Errorf("-preview requires a <target_dir> to read original file content from")
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

	raw, err := archive.PeekManifest(compressed)
	if err != nil {
		return exitcode.For(fmt.Errorf("peeking manifest: %w", err))
	}
	m, err := manifest.Unmarshal(raw)
	if err != nil {
		return exitcode.For(err)
	}

	stdout := c.Stdout()
	info := manifest.Info(m)
	fmt.Fprintf(stdout, "schema version: %d\n", info.Version)
	if info.Title != "" {
		fmt.Fprintf(stdout, "title:          %s\n", info.Title)
	}
	fmt.Fprintf(stdout, "entries:        %d (%d patched, %d added, %d deleted)\n",
		info.EntryCount, info.Patches, info.Additions, info.Deletions)

	if !c.flags.Preview {
		return nil
	}

	// A preview needs the bundle's diffs/ contents, which PeekManifest
	// deliberately didn't extract. Unpack fully into a scratch dir instead.
	scratch, err := os.MkdirTemp("", "graft-describe-*")
	if err != nil {
		return exitcode.For(fmt.Errorf("creating scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	if err := archive.Unpack(compressed, scratch); err != nil {
		return exitcode.For(fmt.Errorf("unpacking bundle: %w", err))
	}

	dmp := diffmatchpatch.New()
	for _, e := range m.Entries {
		if e.Operation != manifest.OpPatch {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", e.File)

		origPath := filepath.Join(c.flags.TargetDir, e.File)
		origBytes, err := os.ReadFile(origPath)
		if err != nil {
			fmt.Fprintf(stdout, "(original content unavailable: %v)\n", err)
			continue
		}
		diffBytes, err := os.ReadFile(filepath.Join(scratch, "diffs", e.File+".diff"))
		if err != nil {
			fmt.Fprintf(stdout, "(diff unavailable: %v)\n", err)
			continue
		}
		if len(origBytes) > previewSizeCeiling || !utf8.Valid(origBytes) {
			fmt.Fprintln(stdout, "(binary or too large to preview)")
			continue
		}

		newBytes, err := delta.Apply(origBytes, diffBytes)
		if err != nil {
			fmt.Fprintf(stdout, "(could not reconstruct new content: %v)\n", err)
			continue
		}
		if !utf8.Valid(newBytes) {
			fmt.Fprintln(stdout, "(binary result, skipping preview)")
			continue
		}

		diffs := dmp.DiffMain(string(origBytes), string(newBytes), false)
		fmt.Fprintln(stdout, dmp.DiffPrettyText(diffs))
	}

	return nil
}
