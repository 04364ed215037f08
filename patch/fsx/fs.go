// Package fsx provides the filesystem abstraction shared by graft's
// backup, validate, and engine packages, plus the scratch-directory
// bookkeeping used by the runner.
package fsx

import (
	"io/fs"
	"os"
)

// Permission bits used throughout graft when creating files and directories.
const (
	OwnerRWXPerms = 0o700
	OwnerRWPerms  = 0o600
)

// FS abstracts the filesystem operations graft's core needs, so that tests
// can inject I/O failures without touching real disk.
type FS interface {
	fs.StatFS

	MkdirAll(string, os.FileMode) error
	MkdirTemp(string, string) (string, error)
	ReadFile(string) ([]byte, error)
	Remove(string) error
	RemoveAll(string) error
	WriteFile(string, []byte, os.FileMode) error
}

// RealFS is the production FS, backed directly by the os package.
type RealFS struct{}

func (RealFS) Open(name string) (fs.File, error) { return os.Open(name) }

func (RealFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (RealFS) MkdirAll(name string, perm os.FileMode) error { return os.MkdirAll(name, perm) }

func (RealFS) MkdirTemp(dir, pattern string) (string, error) { return os.MkdirTemp(dir, pattern) }

func (RealFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (RealFS) Remove(name string) error { return os.Remove(name) }

func (RealFS) RemoveAll(name string) error { return os.RemoveAll(name) }

func (RealFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}
