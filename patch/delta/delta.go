// Package delta produces and applies compact binary diffs between two byte
// sequences, using a bsdiff-family encoding so that small changes to large,
// mostly-similar files produce small deltas.
package delta

import (
	"fmt"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

// InvalidError is returned by Apply when delta is malformed, or is not
// consistent with old (e.g. it was produced against a different base file).
type InvalidError struct {
	Wrapped error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("delta is invalid or does not match the base content: %v", e.Wrapped)
}

func (e *InvalidError) Unwrap() error {
	return e.Wrapped
}

func (e *InvalidError) Is(other error) bool {
	_, ok := other.(*InvalidError)
	return ok
}

// Create produces a delta that, when applied to old via Apply, reproduces
// new exactly. There is no guarantee that identical inputs yield an empty
// delta.
func Create(old, new []byte) ([]byte, error) {
	d, err := bsdiff.Bytes(old, new)
	if err != nil {
		return nil, fmt.Errorf("bsdiff.Bytes: %w", err)
	}
	return d, nil
}

// Apply reproduces the "new" byte sequence that Create was given, by
// applying deltaBytes to old. It fails with *InvalidError if deltaBytes is
// malformed or was not produced against old.
func Apply(old, deltaBytes []byte) ([]byte, error) {
	out, err := bspatch.Bytes(old, deltaBytes)
	if err != nil {
		return nil, &InvalidError{Wrapped: err}
	}
	return out, nil
}
