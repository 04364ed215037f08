// Package restrict implements the path-restriction policy consulted once per
// apply, before any filesystem mutation: it rejects path traversal, blocked
// executable extensions, and writes into protected system locations.
package restrict

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Violation is one failed check against a single manifest entry path.
type Violation struct {
	Path   string
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Reason)
}

// PathTraversal builds a Violation for a path containing "..", either as a
// component or as a substring anywhere in the path.
func PathTraversal(path string) Violation {
	return Violation{Path: path, Reason: "path traversal"}
}

// BlockedExtension builds a Violation for a path ending in a disallowed
// executable extension.
func BlockedExtension(path, ext string) Violation {
	return Violation{Path: path, Reason: fmt.Sprintf("blocked extension %q", ext)}
}

// ProtectedPath builds a Violation for a path that resolves under a
// protected system location.
func ProtectedPath(path, reason string) Violation {
	return Violation{Path: path, Reason: reason}
}

// RestrictedPathsError is returned by Check when one or more entries violate
// the policy. The violations are collected, never short-circuited, so a
// caller can display every problem at once.
type RestrictedPathsError struct {
	Violations []Violation
}

func (e *RestrictedPathsError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("restricted paths: %s", strings.Join(parts, "; "))
}

func (e *RestrictedPathsError) Is(other error) bool {
	_, ok := other.(*RestrictedPathsError)
	return ok
}

// crossPlatformExtensions are blocked regardless of runtime.GOOS.
var crossPlatformExtensions = []string{".sh", ".bin"}

var platformExtensions = map[string][]string{
	"windows": {".exe", ".dll", ".sys", ".com", ".bat", ".cmd", ".ps1", ".msi", ".scr"},
	"darwin":  {".dylib", ".bundle", ".kext"},
	"linux":   {".so", ".ko"},
}

var protectedPrefixes = map[string][]string{
	"darwin":  {"/System", "/Library", "/usr", "/bin", "/sbin", "/var", "/etc", "/private"},
	"windows": {`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`, `C:\ProgramData`},
	"linux":   {"/usr", "/bin", "/sbin", "/lib", "/lib64", "/etc", "/var", "/boot", "/opt"},
}

// exceptionPrefixes are protected-location matches that are explicitly
// allowed anyway, checked before the protected-prefix table.
var exceptionPrefixes = map[string][]string{
	"darwin": {"/usr/local/"},
	"linux":  {"/usr/local/", "/var/games/"},
}

// windowsSystemInfixes are matched anywhere in the canonical path, not just
// as a prefix, since System32 can appear under several Windows roots.
var windowsSystemInfixes = []string{`\System32\`, `\SysWOW64\`}

// Check runs every per-entry check in files against targetDir, returning
// *RestrictedPathsError if any violation is found across any file.
// allowRestricted, when true, bypasses the entire policy (the manifest's allow_restricted
// flag), matching spec.md's "policy inputs: the manifest and the absolute
// target directory" design.
func Check(files []string, targetDir string, allowRestricted bool) error {
	if allowRestricted {
		return nil
	}

	var violations []Violation
	for _, f := range files {
		violations = append(violations, checkOne(f, targetDir, runtime.GOOS)...)
	}
	if len(violations) > 0 {
		return &RestrictedPathsError{Violations: violations}
	}
	return nil
}

func checkOne(file, targetDir, goos string) []Violation {
	var out []Violation

	if hasTraversal(file) {
		out = append(out, PathTraversal(file))
	}

	if ext, blocked := blockedExtension(file, goos); blocked {
		out = append(out, BlockedExtension(file, ext))
	}

	if reason, protected := protectedLocation(file, targetDir, goos); protected {
		out = append(out, ProtectedPath(file, reason))
	}

	return out
}

func hasTraversal(path string) bool {
	if strings.Contains(path, "..") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func blockedExtension(path, goos string) (string, bool) {
	lower := strings.ToLower(path)
	for _, ext := range crossPlatformExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext, true
		}
	}
	for _, ext := range platformExtensions[goos] {
		if strings.HasSuffix(lower, ext) {
			return ext, true
		}
	}
	return "", false
}

func protectedLocation(file, targetDir, goos string) (string, bool) {
	joined := filepath.Join(targetDir, filepath.FromSlash(file))
	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// The file doesn't exist yet (true for every Add entry); fall back
		// to the joined, non-canonicalized path per spec.md §4.5.
		canonical = joined
	}

	if goos == "windows" {
		for _, infix := range windowsSystemInfixes {
			if strings.Contains(canonical, infix) {
				return "Windows system directory", true
			}
		}
	}

	if goos == "darwin" {
		if strings.Contains(canonical, ".app/") {
			return "inside an application bundle", true
		}
		if home, err := os.UserHomeDir(); err == nil {
			libraryPath := filepath.Join(home, "Library")
			appSupport := filepath.Join(libraryPath, "Application Support")
			if strings.HasPrefix(canonical, appSupport) {
				return "", false
			}
			if strings.HasPrefix(canonical, libraryPath) {
				return "user Library directory", true
			}
		}
	}

	for _, exception := range exceptionPrefixes[goos] {
		if strings.HasPrefix(canonical, exception) {
			return "", false
		}
	}

	for _, prefix := range protectedPrefixes[goos] {
		if strings.HasPrefix(canonical, prefix) {
			return fmt.Sprintf("protected system location %q", prefix), true
		}
	}

	return "", false
}
