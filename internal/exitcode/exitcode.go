// Package exitcode maps graft's core error taxonomy to the CLI's process
// exit codes: 0 success, 1 semantic mismatch, 2 any other error.
package exitcode

import (
	"errors"
	"fmt"

	"github.com/grafthq/graft/patch/engine"
	"github.com/grafthq/graft/patch/restrict"
	"github.com/grafthq/graft/patch/validate"
)

// Error carries an explicit process exit code alongside the wrapped error
// that caused it, so main() can report the right code without the core
// packages knowing anything about process exit codes.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("exit code %d: %v", e.Code, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// semantic, error, success.
const (
	Success  = 0
	Semantic = 1
	Other    = 2
)

// For wraps err in an *Error with the exit code spec.md §6 assigns to it:
// 1 for a semantic mismatch (validation/verification/restricted paths), 2
// for anything else. A nil err returns nil.
func For(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}

	code := Other
	var (
		failedErr *validate.FailedError
		verifyErr *engine.VerificationFailedError
		restrErr  *restrict.RestrictedPathsError
	)
	switch {
	case errors.As(err, &failedErr), errors.As(err, &verifyErr), errors.As(err, &restrErr):
		code = Semantic
	}
	return &Error{Code: code, Err: err}
}
