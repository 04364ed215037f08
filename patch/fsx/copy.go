package fsx

import (
	"fmt"
	"path/filepath"
)

// CopyFile copies the single file at src to dst using fsys, creating dst's
// parent directories as needed and preserving src's permission bits. Used by
// both the backup phase (target → backup dir) and the creator (new tree →
// files/ subtree) — always a copy, never a rename, so the source survives.
func CopyFile(fsys FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %q: %w", src, err)
	}

	contents, err := fsys.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %q: %w", src, err)
	}

	if err := fsys.MkdirAll(filepath.Dir(dst), OwnerRWXPerms); err != nil {
		return fmt.Errorf("creating parent directory of %q: %w", dst, err)
	}

	if err := fsys.WriteFile(dst, contents, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	return nil
}

// Exists reports whether path names an existing file or directory.
func Exists(fsys FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}
