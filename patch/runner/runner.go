// Package runner orchestrates a single patch bundle against a single target
// directory: unpacking the archive, validating target state, and driving
// apply or rollback through the lower-level engine, backup, and validate
// packages.
package runner

import (
	"fmt"
	"path/filepath"

	"github.com/grafthq/graft/patch/archive"
	"github.com/grafthq/graft/patch/backup"
	"github.com/grafthq/graft/patch/engine"
	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/manifest"
	"github.com/grafthq/graft/patch/restrict"
	"github.com/grafthq/graft/patch/validate"
)

// ExtractionFailedError wraps an archive.Unpack failure.
type ExtractionFailedError struct{ Wrapped error }

func (e *ExtractionFailedError) Error() string { return fmt.Sprintf("extracting archive: %v", e.Wrapped) }
func (e *ExtractionFailedError) Unwrap() error { return e.Wrapped }
func (e *ExtractionFailedError) Is(other error) bool {
	_, ok := other.(*ExtractionFailedError)
	return ok
}

// ManifestLoadFailedError wraps a bundle validation failure encountered
// while constructing a Runner.
type ManifestLoadFailedError struct{ Wrapped error }

func (e *ManifestLoadFailedError) Error() string {
	return fmt.Sprintf("loading manifest: %v", e.Wrapped)
}
func (e *ManifestLoadFailedError) Unwrap() error { return e.Wrapped }
func (e *ManifestLoadFailedError) Is(other error) bool {
	_, ok := other.(*ManifestLoadFailedError)
	return ok
}

// TargetModifiedError is returned by Rollback when the target no longer
// matches the post-apply state and force was not requested.
type TargetModifiedError struct{ Reason string }

func (e *TargetModifiedError) Error() string { return fmt.Sprintf("target was modified: %s", e.Reason) }
func (e *TargetModifiedError) Is(other error) bool {
	_, ok := other.(*TargetModifiedError)
	return ok
}

// Runner holds an unpacked bundle and drives operations against a target
// directory. Construct with FromArchive.
type Runner struct {
	fsys      fsx.FS
	scratch   string
	tracker   *fsx.DirTracker
	Manifest  *manifest.Manifest
	bundleDir string
}

// FromArchive unpacks compressed bundle bytes into a fresh scratch
// directory under the system temp dir, loads and validates its manifest,
// and returns a Runner. The scratch directory is removed by Close.
func FromArchive(fsys fsx.FS, compressed []byte) (*Runner, error) {
	tracker := fsx.NewDirTracker(fsys)
	scratch, err := tracker.MkdirTempTracked("", "graft-bundle-*")
	if err != nil {
		return nil, &ExtractionFailedError{Wrapped: err}
	}

	if err := archive.Unpack(compressed, scratch); err != nil {
		var outErr error
		tracker.DeferRemoveAll(&outErr)
		return nil, &ExtractionFailedError{Wrapped: err}
	}

	m, err := validate.Bundle(fsys, scratch)
	if err != nil {
		var outErr error
		tracker.DeferRemoveAll(&outErr)
		return nil, &ManifestLoadFailedError{Wrapped: err}
	}

	return &Runner{fsys: fsys, scratch: scratch, tracker: tracker, Manifest: m, bundleDir: scratch}, nil
}

// Close releases the scratch directory. Safe to call multiple times.
func (r *Runner) Close() error {
	var outErr error
	r.tracker.DeferRemoveAll(&outErr)
	return outErr
}

func (r *Runner) backupDir(target string) string {
	return filepath.Join(target, fsx.BackupDirName)
}

// ValidateTarget wraps the path-restriction policy and the pre-apply state
// check against target.
func (r *Runner) ValidateTarget(target string) error {
	files := make([]string, len(r.Manifest.Entries))
	for i, e := range r.Manifest.Entries {
		files[i] = e.File
	}
	if err := restrict.Check(files, target, r.Manifest.AllowRestricted); err != nil {
		return err
	}
	return validate.Pre(r.fsys, r.Manifest.Entries, target)
}

// IsPatched is a cheap read-only check: does target already satisfy the
// bundle's post-apply invariant?
func (r *Runner) IsPatched(target string) bool {
	return validate.Post(r.fsys, r.Manifest.Entries, target) == nil
}

// HasBackup reports whether target has a .patch-backup directory.
func (r *Runner) HasBackup(target string) bool {
	return fsx.Exists(r.fsys, r.backupDir(target))
}

// Apply runs the full apply pipeline against target: path restrictions,
// pre-state validation, backup, then the transactional apply_entries
// driver. Progress is reported through obs.
func (r *Runner) Apply(target string, obs engine.ProgressObserver, robs engine.RollbackObserver) error {
	engine.EmitPhase(obs, engine.PhaseValidating)
	if err := r.ValidateTarget(target); err != nil {
		return err
	}

	backupDir := r.backupDir(target)
	engine.EmitPhase(obs, engine.PhaseBackingUp)
	backupObs := func(file string, index, total int, action backup.Action) {
		engine.EmitOperation(obs, file, index, total, engineActionFromBackup(action))
	}
	if err := backup.Backup(r.fsys, r.Manifest.Entries, target, backupDir, backupObs); err != nil {
		return err
	}

	engine.EmitPhase(obs, engine.PhaseApplying)
	_, err := engine.ApplyEntries(r.fsys, r.Manifest.Entries, target, r.bundleDir, backupDir, obs, robs)
	return err
}

// Rollback restores target to its pre-apply state. Unless force is true,
// it first requires the target to currently satisfy the post-apply
// invariant (otherwise *TargetModifiedError); it always requires the
// backup directory to validate before attempting any restoration.
func (r *Runner) Rollback(target string, force bool, robs engine.RollbackObserver) error {
	engine.EmitRollbackValidatingTarget(robs)
	if !force {
		if err := validate.Post(r.fsys, r.Manifest.Entries, target); err != nil {
			return &TargetModifiedError{Reason: err.Error()}
		}
	}

	backupDir := r.backupDir(target)
	engine.EmitRollbackValidatingBackup(robs)
	if err := validate.Backup(r.fsys, r.Manifest.Entries, backupDir); err != nil {
		return err
	}

	adapter := func(file string, index, total int, action backup.Action) {
		engine.EmitRolling(robs, file, index, total, engineActionFromBackup(action))
	}
	if err := backup.Rollback(r.fsys, r.Manifest.Entries, target, backupDir, adapter); err != nil {
		return err
	}
	engine.EmitRollbackDone(robs, len(r.Manifest.Entries))
	return nil
}

// DeleteBackup best-effort recursively removes target's backup directory.
func (r *Runner) DeleteBackup(target string) error {
	return r.fsys.RemoveAll(r.backupDir(target))
}

func engineActionFromBackup(a backup.Action) engine.Action {
	switch a {
	case backup.ActionBackingUp:
		return engine.ActionBackingUp
	case backup.ActionRestoring:
		return engine.ActionRestoring
	case backup.ActionRemoving:
		return engine.ActionRemoving
	default:
		return engine.ActionSkipping
	}
}
