// Package create implements the patch creator: given an original and a
// modified directory tree, it scans for changes, writes the diffs/ and
// files/ subtrees, and produces a manifest describing the whole bundle.
package create

import (
	"fmt"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/benbjohnson/clock"

	"github.com/grafthq/graft/patch/delta"
	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/hashutil"
	"github.com/grafthq/graft/patch/manifest"
	"github.com/grafthq/graft/patch/scan"
	"github.com/grafthq/graft/patch/validate"
)

// Options configures a single bundle creation.
type Options struct {
	OrigDir         string
	NewDir          string
	OutputDir       string
	Version         int
	Title           string
	AllowRestricted bool

	// ToolVersion stamps the manifest's informational tool_version field;
	// left empty if the caller doesn't want it populated.
	ToolVersion string

	// Clock supplies the creation timestamp returned as Result.CreatedAt; it
	// is never persisted in the manifest, which has no timestamp field. Defaults to
	// the real clock when nil, so tests can inject clock.NewMock().
	Clock clock.Clock
}

// Result is what Create returns alongside the written bundle on disk.
type Result struct {
	Manifest    *manifest.Manifest
	CreatedAt   int64 // unix seconds, from Options.Clock
	ChangeCount int
}

// Create scans opts.OrigDir against opts.NewDir, writes the diffs/, files/,
// manifest.json and assets/icon.png artifacts into opts.OutputDir, and
// returns a Result holding the manifest that was written.
func Create(fsys fsx.FS, opts Options) (*Result, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	if opts.ToolVersion != "" {
		if _, err := semver.NewVersion(opts.ToolVersion); err != nil {
			return nil, fmt.Errorf("tool version %q is not a valid semantic version: %w", opts.ToolVersion, err)
		}
	}

	changes, err := scan.Scan(opts.OrigDir, opts.NewDir)
	if err != nil {
		return nil, fmt.Errorf("scanning directories: %w", err)
	}

	if err := fsys.MkdirAll(opts.OutputDir, fsx.OwnerRWXPerms); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var entries []manifest.ManifestEntry
	var haveDiffs, haveFiles bool
	for _, c := range changes {
		switch c.Kind {
		case scan.Diff:
			haveDiffs = true
		case scan.NewFile:
			haveFiles = true
		}
	}
	if haveDiffs {
		if err := fsys.MkdirAll(filepath.Join(opts.OutputDir, fsx.DiffsDir), fsx.OwnerRWXPerms); err != nil {
			return nil, fmt.Errorf("creating diffs directory: %w", err)
		}
	}
	if haveFiles {
		if err := fsys.MkdirAll(filepath.Join(opts.OutputDir, fsx.FilesDir), fsx.OwnerRWXPerms); err != nil {
			return nil, fmt.Errorf("creating files directory: %w", err)
		}
	}

	for _, c := range changes {
		switch c.Kind {
		case scan.Diff:
			entry, err := addDiff(fsys, opts.OutputDir, c)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)

		case scan.NewFile:
			entry, err := addNewFile(fsys, opts.OutputDir, c)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)

		case scan.OldFile:
			entries = append(entries, manifest.Delete(c.File, c.OldHash))
		}
	}

	manifest.SortEntries(entries)

	m := &manifest.Manifest{
		Version:         opts.Version,
		Title:           opts.Title,
		AllowRestricted: opts.AllowRestricted,
		Entries:         entries,
		ToolVersion:     opts.ToolVersion,
	}

	if haveDiffs || haveFiles {
		dirhash, err := validate.BundleDirhash(opts.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("computing bundle dirhash: %w", err)
		}
		m.BundleDirhash = dirhash
	}

	raw, err := manifest.Marshal(m)
	if err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(opts.OutputDir, fsx.ManifestName)
	if err := fsys.WriteFile(manifestPath, raw, fsx.OwnerRWPerms); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	if err := writeDefaultIcon(fsys, opts.OutputDir); err != nil {
		return nil, fmt.Errorf("writing default icon asset: %w", err)
	}

	return &Result{Manifest: m, CreatedAt: clk.Now().Unix(), ChangeCount: len(entries)}, nil
}

func addDiff(fsys fsx.FS, outputDir string, c scan.FileChange) (manifest.ManifestEntry, error) {
	oldBytes, err := fsys.ReadFile(c.OldPath)
	if err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("reading %q: %w", c.OldPath, err)
	}
	newBytes, err := fsys.ReadFile(c.NewPath)
	if err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("reading %q: %w", c.NewPath, err)
	}

	diffBytes, err := delta.Create(oldBytes, newBytes)
	if err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("computing delta for %q: %w", c.File, err)
	}

	diffPath := filepath.Join(outputDir, fsx.DiffsDir, filepath.FromSlash(c.File)+".diff")
	if err := fsys.MkdirAll(filepath.Dir(diffPath), fsx.OwnerRWXPerms); err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("creating parent directory for %q: %w", diffPath, err)
	}
	if err := fsys.WriteFile(diffPath, diffBytes, fsx.OwnerRWPerms); err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("writing %q: %w", diffPath, err)
	}

	return manifest.Patch(c.File, c.OldHash, hashutil.Bytes(diffBytes), c.NewHash), nil
}

func addNewFile(fsys fsx.FS, outputDir string, c scan.FileChange) (manifest.ManifestEntry, error) {
	dst := filepath.Join(outputDir, fsx.FilesDir, filepath.FromSlash(c.File))
	if err := fsx.CopyFile(fsys, c.NewPath, dst); err != nil {
		return manifest.ManifestEntry{}, fmt.Errorf("copying %q into bundle: %w", c.File, err)
	}
	return manifest.Add(c.File, c.NewHash), nil
}

// builtinIcon is a minimal 1x1 transparent PNG written as every bundle's
// default assets/icon.png, unless a caller replaces it later.
var builtinIcon = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func writeDefaultIcon(fsys fsx.FS, outputDir string) error {
	assetsDir := filepath.Join(outputDir, fsx.AssetsDir)
	if err := fsys.MkdirAll(assetsDir, fsx.OwnerRWXPerms); err != nil {
		return err
	}
	return fsys.WriteFile(filepath.Join(outputDir, fsx.IconAsset), builtinIcon, fsx.OwnerRWPerms)
}
