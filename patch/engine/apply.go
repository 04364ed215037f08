package engine

import (
	"fmt"
	"path/filepath"

	"github.com/jinzhu/copier"

	"github.com/grafthq/graft/patch/backup"
	"github.com/grafthq/graft/patch/delta"
	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/hashutil"
	"github.com/grafthq/graft/patch/manifest"
)

// ApplyFailedError reports an I/O or delta-apply failure while executing a
// single entry. It triggers a rollback of everything applied so far.
type ApplyFailedError struct {
	File    string
	Wrapped error
}

func (e *ApplyFailedError) Error() string { return fmt.Sprintf("applying %q: %v", e.File, e.Wrapped) }
func (e *ApplyFailedError) Unwrap() error { return e.Wrapped }
func (e *ApplyFailedError) Is(other error) bool {
	_, ok := other.(*ApplyFailedError)
	return ok
}

// VerificationFailedError reports a post-hash mismatch immediately after an
// operation completed. It also triggers rollback.
type VerificationFailedError struct {
	File             string
	Expected, Actual hashutil.Digest
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("verification failed for %q: expected hash %s, got %s", e.File, e.Expected, e.Actual)
}
func (e *VerificationFailedError) Is(other error) bool {
	_, ok := other.(*VerificationFailedError)
	return ok
}

// FatalError is returned when rollback itself fails after an apply failure
// (the FATAL_FAIL terminal state): the target may be left in a partial
// state and the caller must surface both errors.
type FatalError struct {
	Original    error
	RollbackErr error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("apply failed (%v) and the subsequent rollback also failed (%v); target directory may be left in a partial state", e.Original, e.RollbackErr)
}

func (e *FatalError) Unwrap() []error { return []error{e.Original, e.RollbackErr} }

// ApplyEntry executes a single manifest entry against targetDir, reading
// bundle-side content (diffs/files) from patchDir, and immediately verifies
// the entry's post-condition by rehashing the result (or confirming absence
// for Delete).
func ApplyEntry(fsys fsx.FS, entry manifest.ManifestEntry, targetDir, patchDir string) error {
	targetPath := filepath.Join(targetDir, filepath.FromSlash(entry.File))

	switch entry.Operation {
	case manifest.OpPatch:
		oldBytes, err := fsys.ReadFile(targetPath)
		if err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("reading target: %w", err)}
		}
		diffPath := filepath.Join(patchDir, fsx.DiffsDir, filepath.FromSlash(entry.File)+".diff")
		diffBytes, err := fsys.ReadFile(diffPath)
		if err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("reading diff: %w", err)}
		}
		newBytes, err := delta.Apply(oldBytes, diffBytes)
		if err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: err}
		}
		if err := fsys.WriteFile(targetPath, newBytes, fsx.OwnerRWPerms); err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("writing target: %w", err)}
		}
		return verifyHash(fsys, entry.File, targetPath, entry.FinalHash)

	case manifest.OpAdd:
		srcPath := filepath.Join(patchDir, fsx.FilesDir, filepath.FromSlash(entry.File))
		contents, err := fsys.ReadFile(srcPath)
		if err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("reading bundle file: %w", err)}
		}
		if err := fsys.MkdirAll(filepath.Dir(targetPath), fsx.OwnerRWXPerms); err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("creating parent directory: %w", err)}
		}
		if err := fsys.WriteFile(targetPath, contents, fsx.OwnerRWPerms); err != nil {
			return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("writing target: %w", err)}
		}
		return verifyHash(fsys, entry.File, targetPath, entry.FinalHash)

	case manifest.OpDelete:
		if fsx.Exists(fsys, targetPath) {
			if err := fsys.Remove(targetPath); err != nil {
				return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("removing target: %w", err)}
			}
		}
		if fsx.Exists(fsys, targetPath) {
			return &VerificationFailedError{File: entry.File, Expected: "<absent>", Actual: "<present>"}
		}
		return nil

	default:
		return &ApplyFailedError{File: entry.File, Wrapped: fmt.Errorf("unknown operation %q", entry.Operation)}
	}
}

func verifyHash(fsys fsx.FS, file, path string, want hashutil.Digest) error {
	contents, err := fsys.ReadFile(path)
	if err != nil {
		return &ApplyFailedError{File: file, Wrapped: fmt.Errorf("reading back for verification: %w", err)}
	}
	got := hashutil.Bytes(contents)
	if !got.Equal(want) {
		return &VerificationFailedError{File: file, Expected: want, Actual: got}
	}
	return nil
}

// ApplyEntries is the transactional driver: it applies entries in order,
// and on the first failure rolls back everything applied so far before
// returning the original error. It returns the list of entries that were
// successfully applied (and, on failure, subsequently rolled back).
func ApplyEntries(fsys fsx.FS, entries []manifest.ManifestEntry, targetDir, patchDir, backupDir string, obs ProgressObserver, robs RollbackObserver) ([]manifest.ManifestEntry, error) {
	var applied []manifest.ManifestEntry
	total := len(entries)

	for i, e := range entries {
		emitProgress(obs, ProgressEvent{
			Kind:     ProgressOperation,
			Progress: Progress{File: e.File, Index: i, Total: total, Action: operationAction(e.Operation)},
		})

		if err := ApplyEntry(fsys, e, targetDir, patchDir); err != nil {
			rollbackErr := rollbackApplied(fsys, applied, targetDir, backupDir, robs)
			if rollbackErr != nil {
				emitRollback(robs, RollbackEvent{Kind: RollbackError, Reason: rollbackErr.Error()})
				return applied, &FatalError{Original: err, RollbackErr: rollbackErr}
			}
			return applied, err
		}

		var copied manifest.ManifestEntry
		if err := copier.Copy(&copied, &e); err != nil {
			// copier only fails on structurally incompatible types, which
			// cannot happen for a same-type copy; treat as unreachable.
			copied = e
		}
		applied = append(applied, copied)
	}

	emitProgress(obs, ProgressEvent{Kind: ProgressDone, FilesPatched: len(applied)})
	return applied, nil
}

func rollbackApplied(fsys fsx.FS, applied []manifest.ManifestEntry, targetDir, backupDir string, robs RollbackObserver) error {
	adapter := func(file string, index, total int, action backup.Action) {
		emitRollback(robs, RollbackEvent{
			Kind:     RollbackRolling,
			Progress: Progress{File: file, Index: index, Total: total, Action: backupAction(action)},
		})
	}
	return backup.Rollback(fsys, applied, targetDir, backupDir, adapter)
}

func operationAction(op manifest.Operation) Action {
	switch op {
	case manifest.OpPatch:
		return ActionPatching
	case manifest.OpAdd:
		return ActionAdding
	case manifest.OpDelete:
		return ActionDeleting
	default:
		return ActionSkipping
	}
}

func backupAction(a backup.Action) Action {
	switch a {
	case backup.ActionRestoring:
		return ActionRestoring
	case backup.ActionRemoving:
		return ActionRemoving
	case backup.ActionBackingUp:
		return ActionBackingUp
	default:
		return ActionSkipping
	}
}
