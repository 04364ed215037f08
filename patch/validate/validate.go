// Package validate holds the four pure, read-only validation routines that
// gate every phase of an apply or rollback: bundle integrity, pre-apply
// target state, backup completeness, and post-apply target state.
package validate

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/sumdb/dirhash"

	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/hashutil"
	"github.com/grafthq/graft/patch/manifest"
)

// FailedError reports a single entry whose expected state does not match
// what's on disk.
type FailedError struct {
	File   string
	Reason string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.File, e.Reason)
}

func (e *FailedError) Is(other error) bool {
	_, ok := other.(*FailedError)
	return ok
}

// BundleError reports a problem with the bundle directory itself, as
// opposed to a specific manifest entry.
type BundleError struct {
	Wrapped error
}

func (e *BundleError) Error() string { return fmt.Sprintf("invalid bundle: %v", e.Wrapped) }
func (e *BundleError) Unwrap() error { return e.Wrapped }
func (e *BundleError) Is(other error) bool {
	_, ok := other.(*BundleError)
	return ok
}

// Bundle reads and validates bundleDir's manifest.json, confirms every
// Patch entry has a corresponding diffs/<file>.diff and every Add entry has
// a corresponding files/<file>, and returns the loaded manifest. Delete
// entries require no bundle-side file.
func Bundle(fsys fsx.FS, bundleDir string) (*manifest.Manifest, error) {
	manifestPath := filepath.Join(bundleDir, fsx.ManifestName)
	raw, err := fsys.ReadFile(manifestPath)
	if err != nil {
		return nil, &BundleError{Wrapped: fmt.Errorf("reading %s: %w", fsx.ManifestName, err)}
	}

	m, err := manifest.Unmarshal(raw)
	if err != nil {
		return nil, &BundleError{Wrapped: err}
	}

	for _, e := range m.Entries {
		switch e.Operation {
		case manifest.OpPatch:
			diffPath := filepath.Join(bundleDir, fsx.DiffsDir, filepath.FromSlash(e.File)+".diff")
			if !fsx.Exists(fsys, diffPath) {
				return nil, &BundleError{Wrapped: fmt.Errorf("missing diff for %q", e.File)}
			}
		case manifest.OpAdd:
			filePath := filepath.Join(bundleDir, fsx.FilesDir, filepath.FromSlash(e.File))
			if !fsx.Exists(fsys, filePath) {
				return nil, &BundleError{Wrapped: fmt.Errorf("missing file for %q", e.File)}
			}
		}
	}

	if m.BundleDirhash != "" {
		got, err := BundleDirhash(bundleDir)
		if err != nil {
			return nil, &BundleError{Wrapped: fmt.Errorf("computing bundle dirhash: %w", err)}
		}
		if got != m.BundleDirhash {
			return nil, &BundleError{Wrapped: fmt.Errorf("bundle_dirhash mismatch: manifest says %q, computed %q", m.BundleDirhash, got)}
		}
	}

	return m, nil
}

// dirhashPrefix is the fixed module-style prefix dirhash.Hash1 bakes into
// every hashed filename; it need not be meaningful, only stable between the
// creator and the validator.
const dirhashPrefix = "bundle"

// BundleDirhash computes a golang.org/x/mod/sumdb/dirhash Hash1 digest over
// every file under bundleDir's diffs/ and files/ subtrees (whichever are
// present), as a whole-bundle integrity cross-check layered on top of the
// per-entry hashes in the manifest.
func BundleDirhash(bundleDir string) (string, error) {
	var names []string
	for _, sub := range []string{fsx.DiffsDir, fsx.FilesDir} {
		subDir := filepath.Join(bundleDir, sub)
		if _, err := os.Stat(subDir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("stat %q: %w", subDir, err)
		}
		err := filepath.WalkDir(subDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(bundleDir, path)
			if err != nil {
				return err
			}
			names = append(names, dirhashPrefix+"/"+filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("walking %q: %w", subDir, err)
		}
	}
	sort.Strings(names)

	return dirhash.Hash1(names, func(name string) (io.ReadCloser, error) {
		rel := strings.TrimPrefix(name, dirhashPrefix+"/")
		return os.Open(filepath.Join(bundleDir, filepath.FromSlash(rel)))
	})
}

// Pre checks the target directory's pre-apply state against entries.
func Pre(fsys fsx.FS, entries []manifest.ManifestEntry, targetDir string) error {
	for _, e := range entries {
		targetPath := filepath.Join(targetDir, filepath.FromSlash(e.File))
		switch e.Operation {
		case manifest.OpPatch:
			if err := requireHash(fsys, targetPath, e.File, e.OriginalHash); err != nil {
				return err
			}
		case manifest.OpAdd:
			if fsx.Exists(fsys, targetPath) {
				return &FailedError{File: e.File, Reason: "file already exists, expected absent for Add"}
			}
		case manifest.OpDelete:
			if fsx.Exists(fsys, targetPath) {
				if err := requireHash(fsys, targetPath, e.File, e.OriginalHash); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Backup checks the backup directory contains what rollback will need.
func Backup(fsys fsx.FS, entries []manifest.ManifestEntry, backupDir string) error {
	for _, e := range entries {
		backupPath := filepath.Join(backupDir, filepath.FromSlash(e.File))
		switch e.Operation {
		case manifest.OpPatch:
			if err := requireHash(fsys, backupPath, e.File, e.OriginalHash); err != nil {
				return err
			}
		case manifest.OpDelete:
			if fsx.Exists(fsys, backupPath) {
				if err := requireHash(fsys, backupPath, e.File, e.OriginalHash); err != nil {
					return err
				}
			}
		case manifest.OpAdd:
			// No backup expected for Add entries.
		}
	}
	return nil
}

// Post checks the target directory's post-apply state against entries. Used
// by the runner's rollback precondition and its IsPatched self-check; the
// engine verifies each applied entry with its own rehash instead.
func Post(fsys fsx.FS, entries []manifest.ManifestEntry, targetDir string) error {
	for _, e := range entries {
		targetPath := filepath.Join(targetDir, filepath.FromSlash(e.File))
		switch e.Operation {
		case manifest.OpPatch, manifest.OpAdd:
			if err := requireHash(fsys, targetPath, e.File, e.FinalHash); err != nil {
				return err
			}
		case manifest.OpDelete:
			if fsx.Exists(fsys, targetPath) {
				return &FailedError{File: e.File, Reason: "file still present, expected deleted"}
			}
		}
	}
	return nil
}

func requireHash(fsys fsx.FS, path, file string, want hashutil.Digest) error {
	contents, err := fsys.ReadFile(path)
	if err != nil {
		return &FailedError{File: file, Reason: fmt.Sprintf("reading %q: %v", path, err)}
	}
	got := hashutil.Bytes(contents)
	if !got.Equal(want) {
		return &FailedError{File: file, Reason: fmt.Sprintf("hash mismatch: expected %s, got %s", want, got)}
	}
	return nil
}
