package delta

import (
	"bytes"
	"testing"
)

func TestCreateApplyRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		old  []byte
		new  []byte
	}{
		{"identical", []byte("hello world"), []byte("hello world")},
		{"small_edit", []byte("the quick brown fox"), []byte("the quick red fox")},
		{"empty_old", []byte(""), []byte("new content")},
		{"empty_new", []byte("old content"), []byte("")},
		{"both_empty", []byte(""), []byte("")},
		{"binary", []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}, []byte{0x00, 0x01, 0x03, 0xFF, 0xFE, 0xAB}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d, err := Create(tc.old, tc.new)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}

			got, err := Apply(tc.old, d)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}

			if !bytes.Equal(got, tc.new) {
				t.Errorf("Apply(old, Create(old, new)) = %q, want %q", got, tc.new)
			}
		})
	}
}

func TestApplyInvalidDelta(t *testing.T) {
	t.Parallel()

	old := []byte("some base content that the delta was not built against")
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01, 0x02}

	_, err := Apply(old, garbage)
	if err == nil {
		t.Fatal("expected an error applying a garbage delta, got nil")
	}

	var invalid *InvalidError
	if !AsInvalid(err, &invalid) {
		t.Errorf("expected *InvalidError, got %T: %v", err, err)
	}
}

// AsInvalid is a small errors.As wrapper kept local to this test file to
// avoid importing errors just for one call site.
func AsInvalid(err error, target **InvalidError) bool {
	e, ok := err.(*InvalidError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestApplyWrongBase(t *testing.T) {
	t.Parallel()

	old := []byte("the original content used to build the delta, long enough to matter")
	new := []byte("the original content used to BUILD the delta, long enough to matter!!")

	d, err := Create(old, new)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	wrongOld := []byte("a completely different base that was never diffed")
	got, err := Apply(wrongOld, d)
	// bsdiff-family patches are not guaranteed to detect every base mismatch,
	// but when they do detect it, it must surface as *InvalidError, and when
	// they don't, the result must simply not equal the intended "new".
	if err != nil {
		var invalid *InvalidError
		if !AsInvalid(err, &invalid) {
			t.Errorf("expected *InvalidError on base mismatch, got %T: %v", err, err)
		}
		return
	}
	if bytes.Equal(got, new) {
		t.Errorf("applying delta to wrong base unexpectedly reproduced the correct new content")
	}
}
