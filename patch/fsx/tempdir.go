package fsx

import "errors"

// DirTracker tracks scratch directories created during a runner invocation
// and removes every one of them on DeferRemoveAll, so a from_archive scratch
// unpack directory is released on all exit paths, including error returns.
type DirTracker struct {
	fs       FS
	tempDirs []string
}

// NewDirTracker constructs a DirTracker backed by fsys.
func NewDirTracker(fsys FS) *DirTracker {
	return &DirTracker{fs: fsys}
}

// Track adds dir to the list of directories removed by DeferRemoveAll.
func (t *DirTracker) Track(dir string) {
	if dir == "" {
		return
	}
	t.tempDirs = append(t.tempDirs, dir)
}

// MkdirTempTracked calls MkdirTemp and tracks the resulting directory.
func (t *DirTracker) MkdirTempTracked(dir, pattern string) (string, error) {
	tempDir, err := t.fs.MkdirTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	t.Track(tempDir)
	return tempDir, nil
}

// DeferRemoveAll removes every tracked directory, joining any removal
// errors into *outErr alongside whatever error the caller already had.
// Call it in a defer:
//
//	defer tracker.DeferRemoveAll(&rErr)
func (t *DirTracker) DeferRemoveAll(outErr *error) {
	for _, p := range t.tempDirs {
		*outErr = errors.Join(*outErr, t.fs.RemoveAll(p))
	}
}
