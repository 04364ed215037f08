// Package scan classifies the regular files in two directory trees into the
// set of changes a patch bundle needs to describe: files that were modified,
// added, removed, or left untouched.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/exp/maps"

	"github.com/abcxyz/pkg/sets"

	"github.com/grafthq/graft/patch/hashutil"
)

// Kind is the classification of a single file between two directory trees.
type Kind int

const (
	// Diff means the file is present in both trees with distinct content.
	Diff Kind = iota
	// NewFile means the file is present only in the new tree.
	NewFile
	// OldFile means the file is present only in the original tree.
	OldFile
)

func (k Kind) String() string {
	switch k {
	case Diff:
		return "Diff"
	case NewFile:
		return "NewFile"
	case OldFile:
		return "OldFile"
	default:
		return "Unknown"
	}
}

// FileChange describes one file that differs between the original and new
// trees. File is the forward-slash relative path common to both trees.
type FileChange struct {
	File    string
	Kind    Kind
	OldHash hashutil.Digest // zero value when Kind == NewFile
	NewHash hashutil.Digest // zero value when Kind == OldFile
	OldPath string          // absolute path in origDir, empty when Kind == NewFile
	NewPath string          // absolute path in newDir, empty when Kind == OldFile
}

// Scan compares the regular files under origDir and newDir and returns the
// sequence of changes, sorted ascending by File. Subdirectories are
// traversed but not reported on their own; symlinks and other non-regular
// files are ignored, the way the underlying directory walk in graft-core's
// scanner ignores anything that isn't a plain file.
func Scan(origDir, newDir string) ([]FileChange, error) {
	origFiles, err := regularFiles(origDir)
	if err != nil {
		return nil, fmt.Errorf("scanning original directory %q: %w", origDir, err)
	}
	newFiles, err := regularFiles(newDir)
	if err != nil {
		return nil, fmt.Errorf("scanning new directory %q: %w", newDir, err)
	}

	union := maps.Keys(sets.UnionMapKeys(origFiles, newFiles))
	sort.Strings(union)

	out := make([]FileChange, 0, len(union))
	for _, rel := range union {
		oldAbs, inOld := origFiles[rel]
		newAbs, inNew := newFiles[rel]

		switch {
		case inOld && !inNew:
			oldHash, err := hashFile(oldAbs)
			if err != nil {
				return nil, err
			}
			out = append(out, FileChange{File: rel, Kind: OldFile, OldHash: oldHash, OldPath: oldAbs})
		case !inOld && inNew:
			newHash, err := hashFile(newAbs)
			if err != nil {
				return nil, err
			}
			out = append(out, FileChange{File: rel, Kind: NewFile, NewHash: newHash, NewPath: newAbs})
		default:
			oldHash, err := hashFile(oldAbs)
			if err != nil {
				return nil, err
			}
			newHash, err := hashFile(newAbs)
			if err != nil {
				return nil, err
			}
			if oldHash == newHash {
				continue // unchanged, excluded from the result
			}
			out = append(out, FileChange{
				File: rel, Kind: Diff,
				OldHash: oldHash, NewHash: newHash,
				OldPath: oldAbs, NewPath: newAbs,
			})
		}
	}

	return out, nil
}

// regularFiles walks dir and returns a map from forward-slash relative path
// to absolute path, for every regular file found. Directories, symlinks, and
// other non-regular file kinds are skipped.
func regularFiles(dir string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %q: %w", path, err)
		}
		if de.IsDir() {
			return nil
		}
		if de.Type()&fs.ModeSymlink != 0 {
			return nil // symlinks are not patchable content; silently excluded
		}
		if !de.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("filepath.Rel(%s, %s): %w", dir, path, err)
		}
		out[filepath.ToSlash(rel)] = path
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

func hashFile(path string) (hashutil.Digest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return hashutil.Bytes(b), nil
}
