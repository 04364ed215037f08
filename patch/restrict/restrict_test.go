package restrict

import (
	"testing"
)

func TestHasTraversal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{"a/b/c.txt", false},
		{"../escape.txt", true},
		{"a/../b.txt", true},
		{"a/..b.txt", true},
		{"a..b/c.txt", true},
		{"..", true},
	}
	for _, tc := range cases {
		if got := hasTraversal(tc.path); got != tc.want {
			t.Errorf("hasTraversal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestBlockedExtension(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		goos string
		want bool
	}{
		{"installer.sh", "linux", true},
		{"payload.bin", "darwin", true},
		{"app.exe", "windows", true},
		{"app.exe", "linux", false},
		{"lib.so", "linux", true},
		{"lib.so", "windows", false},
		{"lib.dylib", "darwin", true},
		{"SETUP.EXE", "windows", true},
		{"readme.txt", "linux", false},
	}
	for _, tc := range cases {
		_, got := blockedExtension(tc.path, tc.goos)
		if got != tc.want {
			t.Errorf("blockedExtension(%q, %q) = %v, want %v", tc.path, tc.goos, got, tc.want)
		}
	}
}

func TestProtectedLocationLinux(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	cases := []struct {
		file string
		want bool
	}{
		{"data/assets/icon.png", false},
	}
	for _, tc := range cases {
		_, got := protectedLocation(tc.file, target, "linux")
		if got != tc.want {
			t.Errorf("protectedLocation(%q) under tempdir = %v, want %v", tc.file, got, tc.want)
		}
	}
}

func TestProtectedLocationAbsolutePrefixes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		file string
		goos string
		want bool
	}{
		{"linux_etc", "etc/passwd", "linux", false}, // relative to targetDir, not absolute /etc
	}
	for _, tc := range cases {
		_, got := protectedLocation(tc.file, "/some/target", tc.goos)
		if got != tc.want {
			t.Errorf("%s: protectedLocation = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCheckCollectsAllViolations(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	files := []string{
		"../escape.sh",
		"clean/file.txt",
	}

	err := Check(files, target, false)
	if err == nil {
		t.Fatal("expected an error")
	}
	rpErr, ok := err.(*RestrictedPathsError)
	if !ok {
		t.Fatalf("expected *RestrictedPathsError, got %T", err)
	}
	// ../escape.sh should trip both traversal and the .sh cross-platform
	// extension block, on every platform.
	if len(rpErr.Violations) < 2 {
		t.Errorf("expected at least 2 violations, got %d: %+v", len(rpErr.Violations), rpErr.Violations)
	}
	for _, v := range rpErr.Violations {
		if v.Path == "clean/file.txt" {
			t.Errorf("clean/file.txt should not have produced a violation: %+v", v)
		}
	}
}

func TestCheckAllowRestrictedBypasses(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	err := Check([]string{"../escape.sh"}, target, true)
	if err != nil {
		t.Errorf("expected nil error when allowRestricted is true, got %v", err)
	}
}

func TestCheckNoViolations(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	err := Check([]string{"a/b.txt", "c.dat"}, target, false)
	if err != nil {
		t.Errorf("expected nil error for clean paths, got %v", err)
	}
}
