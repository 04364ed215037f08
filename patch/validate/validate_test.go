package validate

import (
	"testing"

	"github.com/grafthq/graft/patch/fsx"
	fstestutil "github.com/grafthq/graft/patch/fsx/testutil"
	"github.com/grafthq/graft/patch/hashutil"
	"github.com/grafthq/graft/patch/manifest"
)

func TestBundleHappyPath(t *testing.T) {
	t.Parallel()

	bundleDir := t.TempDir()
	origHash := hashutil.Bytes([]byte("old"))
	diffHash := hashutil.Bytes([]byte("delta"))
	finalHash := hashutil.Bytes([]byte("new"))

	m := &manifest.Manifest{
		Version: 1,
		Entries: []manifest.ManifestEntry{
			manifest.Patch("a.bin", origHash, diffHash, finalHash),
			manifest.Add("b.bin", finalHash),
			manifest.Delete("c.bin", origHash),
		},
	}
	raw, err := manifest.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	fstestutil.WriteAllDefaultMode(t, bundleDir, map[string]string{
		fsx.ManifestName:  string(raw),
		"diffs/a.bin.diff": "delta",
		"files/b.bin":      "new",
	})

	got, err := Bundle(fsx.RealFS{}, bundleDir)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Errorf("got %d entries, want 3", len(got.Entries))
	}
}

func TestBundleMissingDiff(t *testing.T) {
	t.Parallel()

	bundleDir := t.TempDir()
	m := &manifest.Manifest{
		Version: 1,
		Entries: []manifest.ManifestEntry{
			manifest.Patch("a.bin", "orig", "diff", "final"),
		},
	}
	raw, err := manifest.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	fstestutil.WriteAllDefaultMode(t, bundleDir, map[string]string{fsx.ManifestName: string(raw)})

	_, err = Bundle(fsx.RealFS{}, bundleDir)
	if err == nil {
		t.Fatal("expected an error for a missing diff file")
	}
}

func TestBundleMissingManifest(t *testing.T) {
	t.Parallel()

	bundleDir := t.TempDir()
	_, err := Bundle(fsx.RealFS{}, bundleDir)
	if err == nil {
		t.Fatal("expected an error when manifest.json is absent")
	}
}

func TestPre(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	origHash := hashutil.Bytes([]byte("old-contents"))
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{
		"patched.bin": "old-contents",
		"deleted.bin": "old-contents",
	})

	entries := []manifest.ManifestEntry{
		manifest.Patch("patched.bin", origHash, "", ""),
		manifest.Add("added.bin", ""),
		manifest.Delete("deleted.bin", origHash),
	}
	if err := Pre(fsx.RealFS{}, entries, target); err != nil {
		t.Errorf("Pre: %v", err)
	}
}

func TestPreRejectsWrongHash(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"f.bin": "actual content"})

	entries := []manifest.ManifestEntry{
		manifest.Patch("f.bin", hashutil.Bytes([]byte("expected content")), "", ""),
	}
	err := Pre(fsx.RealFS{}, entries, target)
	if err == nil {
		t.Fatal("expected a hash mismatch error")
	}
	var failed *FailedError
	if !isFailed(err, &failed) {
		t.Errorf("expected *FailedError, got %T: %v", err, err)
	}
}

func TestPreRejectsExistingAdd(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"f.bin": "already here"})

	entries := []manifest.ManifestEntry{manifest.Add("f.bin", "")}
	if err := Pre(fsx.RealFS{}, entries, target); err == nil {
		t.Fatal("expected an error for an Add entry whose file already exists")
	}
}

func TestPost(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	finalHash := hashutil.Bytes([]byte("final-contents"))
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"patched.bin": "final-contents"})

	entries := []manifest.ManifestEntry{
		manifest.Patch("patched.bin", "", "", finalHash),
		manifest.Delete("deleted.bin", ""),
	}
	if err := Post(fsx.RealFS{}, entries, target); err != nil {
		t.Errorf("Post: %v", err)
	}
}

func TestPostRejectsSurvivingDelete(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	fstestutil.WriteAllDefaultMode(t, target, map[string]string{"d.bin": "still here"})

	entries := []manifest.ManifestEntry{manifest.Delete("d.bin", "")}
	if err := Post(fsx.RealFS{}, entries, target); err == nil {
		t.Fatal("expected an error because the deleted file still exists")
	}
}

func TestBackup(t *testing.T) {
	t.Parallel()

	backupDir := t.TempDir()
	origHash := hashutil.Bytes([]byte("backed-up"))
	fstestutil.WriteAllDefaultMode(t, backupDir, map[string]string{"p.bin": "backed-up"})

	entries := []manifest.ManifestEntry{
		manifest.Patch("p.bin", origHash, "", ""),
		manifest.Add("a.bin", ""),
	}
	if err := Backup(fsx.RealFS{}, entries, backupDir); err != nil {
		t.Errorf("Backup: %v", err)
	}
}

func TestBundleDirhashDetectsTamperedDiff(t *testing.T) {
	t.Parallel()

	bundleDir := t.TempDir()
	fstestutil.WriteAllDefaultMode(t, bundleDir, map[string]string{
		"diffs/a.bin.diff": "original delta",
		"files/b.bin":      "original content",
	})

	want, err := BundleDirhash(bundleDir)
	if err != nil {
		t.Fatalf("BundleDirhash: %v", err)
	}

	fstestutil.WriteAllDefaultMode(t, bundleDir, map[string]string{
		"diffs/a.bin.diff": "tampered delta",
	})
	got, err := BundleDirhash(bundleDir)
	if err != nil {
		t.Fatalf("BundleDirhash (tampered): %v", err)
	}
	if got == want {
		t.Error("expected tampered diffs/ contents to change the bundle dirhash")
	}
}

func isFailed(err error, target **FailedError) bool {
	e, ok := err.(*FailedError)
	if !ok {
		return false
	}
	*target = e
	return true
}
