package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/grafthq/graft/patch/delta"
	"github.com/grafthq/graft/patch/fsx"
	fstestutil "github.com/grafthq/graft/patch/fsx/testutil"
	"github.com/grafthq/graft/patch/hashutil"
	"github.com/grafthq/graft/patch/manifest"
)

func setupBundle(t *testing.T, patchDir string, oldContent, newContent []byte) manifest.ManifestEntry {
	t.Helper()
	d, err := delta.Create(oldContent, newContent)
	if err != nil {
		t.Fatal(err)
	}
	fstestutil.WriteAllDefaultMode(t, filepath.Join(patchDir, "diffs"), map[string]string{"patched.bin.diff": string(d)})
	return manifest.Patch("patched.bin", hashutil.Bytes(oldContent), hashutil.Bytes(d), hashutil.Bytes(newContent))
}

func TestApplyEntryPatch(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	patchDir := t.TempDir()
	old := []byte("original file contents, long enough for bsdiff to be happy")
	newc := []byte("original file CONTENTS, long enough for bsdiff to be happy")

	entry := setupBundle(t, patchDir, old, newc)
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"patched.bin": string(old)})

	if err := ApplyEntry(fsx.RealFS{}, entry, target, patchDir); err != nil {
		t.Fatalf("ApplyEntry: %v", err)
	}

	got := fstestutil.LoadDirWithoutMode(t, target)
	if got["patched.bin"] != string(newc) {
		t.Errorf("patched.bin = %q, want %q", got["patched.bin"], newc)
	}
}

func TestApplyEntryAdd(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	patchDir := t.TempDir()
	content := []byte("brand new content")
	fstestutil.WriteAllDefaultMode(t, filepath.Join(patchDir, "files"), map[string]string{"new/sub/dir.bin": string(content)})

	entry := manifest.Add("new/sub/dir.bin", hashutil.Bytes(content))
	if err := ApplyEntry(fsx.RealFS{}, entry, target, patchDir); err != nil {
		t.Fatalf("ApplyEntry: %v", err)
	}

	got := fstestutil.LoadDirWithoutMode(t, target)
	if got["new/sub/dir.bin"] != string(content) {
		t.Errorf("new/sub/dir.bin = %q, want %q", got["new/sub/dir.bin"], content)
	}
}

func TestApplyEntryDelete(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"gone.bin": "to be removed"})

	entry := manifest.Delete("gone.bin", hashutil.Bytes([]byte("to be removed")))
	if err := ApplyEntry(fsx.RealFS{}, entry, target, t.TempDir()); err != nil {
		t.Fatalf("ApplyEntry: %v", err)
	}

	got := fstestutil.LoadDirWithoutMode(t, target)
	if _, ok := got["gone.bin"]; ok {
		t.Error("gone.bin should have been deleted")
	}
}

func TestApplyEntryVerificationFailure(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	patchDir := t.TempDir()
	content := []byte("actual bytes on disk")
	fstestutil.WriteAllDefaultMode(t, filepath.Join(patchDir, "files"), map[string]string{"f.bin": string(content)})

	// Claim a final hash that doesn't match the bundle's actual content.
	entry := manifest.Add("f.bin", hashutil.Bytes([]byte("different expected bytes")))
	err := ApplyEntry(fsx.RealFS{}, entry, target, patchDir)
	if err == nil {
		t.Fatal("expected a verification error")
	}
	var verr *VerificationFailedError
	if !errors.As(err, &verr) {
		t.Errorf("expected *VerificationFailedError, got %T: %v", err, err)
	}
}

func TestApplyEntriesRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	patchDir := t.TempDir()
	backupDir := t.TempDir()

	old := []byte("original content for patch entry, long enough")
	newc := []byte("original CONTENT for patch entry, long enough")
	patchEntry := setupBundle(t, patchDir, old, newc)

	addContent := []byte("added content")
	fstestutil.WriteAllDefaultMode(t, filepath.Join(patchDir, "files"), map[string]string{"added.bin": string(addContent)})

	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"patched.bin": string(old)})
	fstestutil.WriteAllDefaultMode(t, backupDir, map[string]string{"patched.bin": string(old)})

	entries := []manifest.ManifestEntry{
		patchEntry,
		manifest.Add("added.bin", hashutil.Bytes(addContent)),
		// This entry will fail: no bundle-side file exists for it.
		manifest.Add("missing-bundle-file.bin", hashutil.Bytes([]byte("whatever"))),
	}

	applied, err := ApplyEntries(fsx.RealFS{}, entries, target, patchDir, backupDir, nil, nil)
	if err == nil {
		t.Fatal("expected ApplyEntries to fail on the third entry")
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 entries applied before failure, got %d", len(applied))
	}

	got := fstestutil.LoadDirWithoutMode(t, target)
	if got["patched.bin"] != string(old) {
		t.Errorf("patched.bin = %q after rollback, want restored original %q", got["patched.bin"], old)
	}
	if _, stillThere := got["added.bin"]; stillThere {
		t.Error("added.bin should have been removed by rollback")
	}
}

func TestApplyEntriesSucceedsAndEmitsDone(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	patchDir := t.TempDir()
	backupDir := t.TempDir()

	addContent := []byte("new file content")
	fstestutil.WriteAllDefaultMode(t, filepath.Join(patchDir, "files"), map[string]string{"new.bin": string(addContent)})
	entries := []manifest.ManifestEntry{manifest.Add("new.bin", hashutil.Bytes(addContent))}

	var events []ProgressEvent
	obs := func(e ProgressEvent) { events = append(events, e) }

	applied, err := ApplyEntries(fsx.RealFS{}, entries, target, patchDir, backupDir, obs, nil)
	if err != nil {
		t.Fatalf("ApplyEntries: %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied entry, got %d", len(applied))
	}

	last := events[len(events)-1]
	if last.Kind != ProgressDone || last.FilesPatched != 1 {
		t.Errorf("expected a final Done event with FilesPatched=1, got %+v", last)
	}
}
