// Package testutil holds small helpers shared by graft's package tests for
// writing and reading directory-tree fixtures.
package testutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// ModeAndContents pairs a file's permission bits with its content, for tests
// that care about the execute bit surviving a copy or patch operation.
type ModeAndContents struct {
	Mode     os.FileMode
	Contents string
}

// WriteAllDefaultMode writes files under root with permission 0600.
func WriteAllDefaultMode(t *testing.T, root string, files map[string]string) {
	t.Helper()

	withMode := make(map[string]ModeAndContents, len(files))
	for name, contents := range files {
		withMode[name] = ModeAndContents{Mode: 0o600, Contents: contents}
	}
	WriteAll(t, root, withMode)
}

// WriteAll saves the given file contents with the given permissions,
// creating parent directories as needed.
func WriteAll(t *testing.T, root string, files map[string]ModeAndContents) {
	t.Helper()

	for path, mc := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(path))
		dir := filepath.Dir(fullPath)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			t.Fatalf("MkdirAll(%q): %v", dir, err)
		}
		if err := os.WriteFile(fullPath, []byte(mc.Contents), mc.Mode); err != nil {
			t.Fatalf("WriteFile(%q): %v", fullPath, err)
		}
		// The umask may have prevented the file from being created with the
		// desired permissions; chmod to really set them.
		if err := os.Chmod(fullPath, mc.Mode); err != nil {
			t.Fatalf("Chmod(%q): %v", fullPath, err)
		}
	}
}

// LoadDirContents reads all files recursively under dir, keyed by
// slash-separated relative path. Returns nil if dir doesn't exist.
func LoadDirContents(t *testing.T, dir string) map[string]ModeAndContents {
	t.Helper()

	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		t.Fatal(err)
	}

	out := map[string]ModeAndContents{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("ReadFile(%q): %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("Rel(): %w", err)
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("Info(): %w", err)
		}
		out[filepath.ToSlash(rel)] = ModeAndContents{Mode: fi.Mode(), Contents: string(contents)}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir(%q): %v", dir, err)
	}
	return out
}

// LoadDirWithoutMode is like LoadDirContents but drops permission bits,
// which is what most content-equality assertions want.
func LoadDirWithoutMode(t *testing.T, dir string) map[string]string {
	t.Helper()

	withMode := LoadDirContents(t, dir)
	if withMode == nil {
		return nil
	}
	out := make(map[string]string, len(withMode))
	for name, mc := range withMode {
		out[name] = mc.Contents
	}
	return out
}
