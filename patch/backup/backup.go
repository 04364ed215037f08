// Package backup implements the copy-based backup and rollback phases of an
// apply: before any file is mutated, its pre-apply bytes are copied into the
// target's .patch-backup directory; rollback restores (or removes) files
// from that mirror in the order the caller presents them.
package backup

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/grafthq/graft/patch/fsx"
	"github.com/grafthq/graft/patch/manifest"
)

// Action is what Observer callbacks are told about during Backup/Rollback.
type Action int

const (
	ActionBackingUp Action = iota
	ActionSkipping
	ActionRestoring
	ActionRemoving
)

// Observer receives one notification per entry processed.
type Observer func(file string, index, total int, action Action)

// FailedError reports an I/O failure while copying a file into the backup
// directory.
type FailedError struct {
	File    string
	Wrapped error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("backing up %q: %v", e.File, e.Wrapped)
}
func (e *FailedError) Unwrap() error { return e.Wrapped }
func (e *FailedError) Is(other error) bool {
	_, ok := other.(*FailedError)
	return ok
}

// RollbackFailedError reports an unrecoverable error during rollback. It is
// never retried further; the caller must surface it as-is.
type RollbackFailedError struct {
	Wrapped error
}

func (e *RollbackFailedError) Error() string { return fmt.Sprintf("rollback failed: %v", e.Wrapped) }
func (e *RollbackFailedError) Unwrap() error { return e.Wrapped }
func (e *RollbackFailedError) Is(other error) bool {
	_, ok := other.(*RollbackFailedError)
	return ok
}

// Backup copies the pre-apply bytes of every Patch and Delete entry whose
// target file currently exists into backupDir, preserving the relative
// path. Add entries contribute no backup, since there is nothing to
// restore to.
func Backup(fsys fsx.FS, entries []manifest.ManifestEntry, targetDir, backupDir string, obs Observer) error {
	total := len(entries)
	for i, e := range entries {
		targetPath := filepath.Join(targetDir, filepath.FromSlash(e.File))
		backupPath := filepath.Join(backupDir, filepath.FromSlash(e.File))

		switch e.Operation {
		case manifest.OpPatch, manifest.OpDelete:
			if !fsx.Exists(fsys, targetPath) {
				notify(obs, e.File, i, total, ActionSkipping)
				continue
			}
			notify(obs, e.File, i, total, ActionBackingUp)
			if err := fsx.CopyFile(fsys, targetPath, backupPath); err != nil {
				return &FailedError{File: e.File, Wrapped: err}
			}
		case manifest.OpAdd:
			notify(obs, e.File, i, total, ActionSkipping)
		}
	}
	return nil
}

// Rollback inverts applied, in the order presented: restores Patch entries
// from backupDir, restores or no-ops Delete entries depending on whether a
// backup exists, and deletes the target file for Add entries. Any failure
// is wrapped in *RollbackFailedError and returned immediately; prior
// partial progress is not further unwound.
func Rollback(fsys fsx.FS, applied []manifest.ManifestEntry, targetDir, backupDir string, obs Observer) error {
	total := len(applied)
	for i, e := range applied {
		targetPath := filepath.Join(targetDir, filepath.FromSlash(e.File))
		backupPath := filepath.Join(backupDir, filepath.FromSlash(e.File))

		switch e.Operation {
		case manifest.OpPatch:
			notify(obs, e.File, i, total, ActionRestoring)
			if err := fsx.CopyFile(fsys, backupPath, targetPath); err != nil {
				return &RollbackFailedError{Wrapped: fmt.Errorf("restoring %q: %w", e.File, err)}
			}
		case manifest.OpDelete:
			if !fsx.Exists(fsys, backupPath) {
				notify(obs, e.File, i, total, ActionSkipping)
				continue
			}
			notify(obs, e.File, i, total, ActionRestoring)
			if err := fsx.CopyFile(fsys, backupPath, targetPath); err != nil {
				return &RollbackFailedError{Wrapped: fmt.Errorf("restoring %q: %w", e.File, err)}
			}
		case manifest.OpAdd:
			if !fsx.Exists(fsys, targetPath) {
				notify(obs, e.File, i, total, ActionSkipping)
				continue
			}
			notify(obs, e.File, i, total, ActionRemoving)
			if err := fsys.Remove(targetPath); err != nil {
				return &RollbackFailedError{Wrapped: fmt.Errorf("removing %q: %w", e.File, err)}
			}
		}
	}
	return nil
}

// JoinRollbackErr wraps a rollback failure alongside the error that
// triggered rollback in the first place, without losing either: the
// originating error remains the surfaced error via errors.Is/As, the
// rollback error is joined onto it for diagnostics.
func JoinRollbackErr(original, rollbackErr error) error {
	if rollbackErr == nil {
		return original
	}
	return errors.Join(original, rollbackErr)
}

func notify(obs Observer, file string, index, total int, action Action) {
	if obs != nil {
		obs(file, index, total, action)
	}
}
