// Package manifest holds the versioned, serializable description of a patch
// bundle: which files are patched, added, or deleted, and the hashes that
// prove each transition happened correctly.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/grafthq/graft/patch/hashutil"
)

// CurrentVersion is the highest manifest schema version this build
// understands. Loading a manifest with a higher version fails with
// *VersionError.
const CurrentVersion = 1

// Operation tags a ManifestEntry's variant on the wire.
type Operation string

const (
	OpPatch  Operation = "patch"
	OpAdd    Operation = "add"
	OpDelete Operation = "delete"
)

// Manifest is the top-level record written as manifest.json inside a patch
// bundle.
type Manifest struct {
	Version         int             `json:"version"`
	Title           string          `json:"title,omitempty"`
	AllowRestricted bool            `json:"allow_restricted,omitempty"`
	Entries         []ManifestEntry `json:"entries"`

	// ToolVersion is an optional informational semver string recording the
	// graft build that created this bundle. It never gates apply/rollback;
	// only Version does.
	ToolVersion string `json:"tool_version,omitempty"`

	// BundleDirhash is an optional whole-bundle integrity cross-check, a
	// golang.org/x/mod/sumdb/dirhash Hash1 digest of the diffs/ and files/
	// subtrees. Layered on top of, not a replacement for, per-entry hashes.
	BundleDirhash string `json:"bundle_dirhash,omitempty"`
}

// ManifestEntry is one file-level operation. Exactly one of the Patch, Add,
// or Delete shaped field sets is populated, selected by Operation.
type ManifestEntry struct {
	Operation Operation `json:"operation"`
	File      string    `json:"file"`

	// Patch fields.
	OriginalHash hashutil.Digest `json:"original_hash,omitempty"`
	DiffHash     hashutil.Digest `json:"diff_hash,omitempty"`
	FinalHash    hashutil.Digest `json:"final_hash,omitempty"`
}

// VersionError is returned when a manifest's Version exceeds CurrentVersion.
type VersionError struct {
	Found, Max int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("manifest version %d is newer than the highest version this build understands (%d)", e.Found, e.Max)
}

func (e *VersionError) Is(other error) bool {
	_, ok := other.(*VersionError)
	return ok
}

// ParseError wraps a JSON decoding failure.
type ParseError struct {
	Wrapped error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing manifest: %v", e.Wrapped)
}

func (e *ParseError) Unwrap() error { return e.Wrapped }

func (e *ParseError) Is(other error) bool {
	_, ok := other.(*ParseError)
	return ok
}

// Patch constructs a "patch" entry.
func Patch(file string, originalHash, diffHash, finalHash hashutil.Digest) ManifestEntry {
	return ManifestEntry{
		Operation:    OpPatch,
		File:         file,
		OriginalHash: originalHash,
		DiffHash:     diffHash,
		FinalHash:    finalHash,
	}
}

// Add constructs an "add" entry.
func Add(file string, finalHash hashutil.Digest) ManifestEntry {
	return ManifestEntry{Operation: OpAdd, File: file, FinalHash: finalHash}
}

// Delete constructs a "delete" entry.
func Delete(file string, originalHash hashutil.Digest) ManifestEntry {
	return ManifestEntry{Operation: OpDelete, File: file, OriginalHash: originalHash}
}

// SortEntries sorts entries ascending by File, in place, matching the
// deterministic bundle output order required by the data model.
func SortEntries(entries []ManifestEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].File < entries[j].File })
}

// Marshal renders m as pretty-printed JSON, the on-disk form of
// manifest.json.
func Marshal(m *Manifest) ([]byte, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling manifest: %w", err)
	}
	return b, nil
}

// Unmarshal parses raw manifest.json bytes. Unknown fields are tolerated
// (forward compatibility); only Version is enforced against CurrentVersion.
func Unmarshal(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ParseError{Wrapped: err}
	}
	if m.Version > CurrentVersion {
		return nil, &VersionError{Found: m.Version, Max: CurrentVersion}
	}
	return &m, nil
}

// PatchInfo is the UI-facing summary extracted from a loaded Manifest.
type PatchInfo struct {
	Version    int
	Title      string
	EntryCount int
	Patches    int
	Additions  int
	Deletions  int
}

// Info summarizes m for display, without exposing the full entry list.
func Info(m *Manifest) PatchInfo {
	info := PatchInfo{
		Version:    m.Version,
		Title:      m.Title,
		EntryCount: len(m.Entries),
	}
	for _, e := range m.Entries {
		switch e.Operation {
		case OpPatch:
			info.Patches++
		case OpAdd:
			info.Additions++
		case OpDelete:
			info.Deletions++
		}
	}
	return info
}
