package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/grafthq/graft/patch/hashutil"
)

func TestMarshalOmitsDefaults(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Version: 1,
		Entries: []ManifestEntry{
			Add("new.txt", hashutil.Bytes([]byte("hi"))),
		},
	}
	raw, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)
	for _, field := range []string{`"title"`, `"allow_restricted"`, `"tool_version"`, `"bundle_dirhash"`, `"original_hash"`, `"diff_hash"`} {
		if strings.Contains(s, field) {
			t.Errorf("expected %s to be omitted from default-valued manifest, got:\n%s", field, s)
		}
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	orig := hashutil.Bytes([]byte("old"))
	diff := hashutil.Bytes([]byte("delta"))
	final := hashutil.Bytes([]byte("new"))

	m := &Manifest{
		Version:         1,
		Title:           "Example Patch",
		AllowRestricted: true,
		Entries: []ManifestEntry{
			Patch("a/b.bin", orig, diff, final),
			Add("c.bin", final),
			Delete("d.bin", orig),
		},
	}

	raw, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalRejectsFutureVersion(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(map[string]any{"version": CurrentVersion + 1, "entries": []any{}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Unmarshal(raw)
	if err == nil {
		t.Fatal("expected an error for a future manifest version")
	}
	var verErr *VersionError
	if !isVersionError(err, &verErr) {
		t.Errorf("expected *VersionError, got %T: %v", err, err)
	}
}

func TestUnmarshalToleratesUnknownFields(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(map[string]any{
		"version":       1,
		"entries":       []any{},
		"future_field":  "some value a newer tool added",
		"another_thing": 42,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
}

func TestUnmarshalInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Unmarshal([]byte("{not json"))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	var parseErr *ParseError
	if !isParseError(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	m := &Manifest{
		Version: 1,
		Title:   "demo",
		Entries: []ManifestEntry{
			Patch("a", "", "", ""),
			Patch("b", "", "", ""),
			Add("c", ""),
			Delete("d", ""),
		},
	}
	got := Info(m)
	want := PatchInfo{Version: 1, Title: "demo", EntryCount: 4, Patches: 2, Additions: 1, Deletions: 1}
	if got != want {
		t.Errorf("Info() = %+v, want %+v", got, want)
	}
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	entries := []ManifestEntry{
		Add("z.txt", ""),
		Add("a.txt", ""),
		Add("m.txt", ""),
	}
	SortEntries(entries)
	want := []string{"a.txt", "m.txt", "z.txt"}
	for i, e := range entries {
		if e.File != want[i] {
			t.Errorf("entries[%d].File = %q, want %q", i, e.File, want[i])
		}
	}
}

func isVersionError(err error, target **VersionError) bool {
	e, ok := err.(*VersionError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func isParseError(err error, target **ParseError) bool {
	e, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*target = e
	return true
}
