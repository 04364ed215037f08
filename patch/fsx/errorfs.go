package fsx

import (
	"io/fs"
	"os"
)

// ErrorFS wraps another FS and lets tests force specific operations to fail,
// so Scenario D (mid-apply I/O failure triggers rollback) can be driven
// deterministically instead of relying on real disk exhaustion.
type ErrorFS struct {
	FS

	MkdirAllErr   error
	MkdirTempErr  error
	OpenErr       error
	ReadFileErr   error
	RemoveErr     error
	RemoveAllErr  error
	StatErr       error
	WriteFileErr  error

	// FailOn, if set, scopes every *Err field above to only fire when name
	// equals FailOn, so a single apply_entries run can be made to fail on
	// exactly one file among many.
	FailOn string
}

func (e *ErrorFS) applies(name string) bool {
	return e.FailOn == "" || e.FailOn == name
}

func (e *ErrorFS) Open(name string) (fs.File, error) {
	if e.OpenErr != nil && e.applies(name) {
		return nil, e.OpenErr
	}
	return e.FS.Open(name)
}

func (e *ErrorFS) Stat(name string) (fs.FileInfo, error) {
	if e.StatErr != nil && e.applies(name) {
		return nil, e.StatErr
	}
	return e.FS.Stat(name)
}

func (e *ErrorFS) MkdirAll(name string, perm os.FileMode) error {
	if e.MkdirAllErr != nil && e.applies(name) {
		return e.MkdirAllErr
	}
	return e.FS.MkdirAll(name, perm)
}

func (e *ErrorFS) MkdirTemp(dir, pattern string) (string, error) {
	if e.MkdirTempErr != nil && e.applies(dir) {
		return "", e.MkdirTempErr
	}
	return e.FS.MkdirTemp(dir, pattern)
}

func (e *ErrorFS) ReadFile(name string) ([]byte, error) {
	if e.ReadFileErr != nil && e.applies(name) {
		return nil, e.ReadFileErr
	}
	return e.FS.ReadFile(name)
}

func (e *ErrorFS) Remove(name string) error {
	if e.RemoveErr != nil && e.applies(name) {
		return e.RemoveErr
	}
	return e.FS.Remove(name)
}

func (e *ErrorFS) RemoveAll(name string) error {
	if e.RemoveAllErr != nil && e.applies(name) {
		return e.RemoveAllErr
	}
	return e.FS.RemoveAll(name)
}

func (e *ErrorFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if e.WriteFileErr != nil && e.applies(name) {
		return e.WriteFileErr
	}
	return e.FS.WriteFile(name, data, perm)
}
