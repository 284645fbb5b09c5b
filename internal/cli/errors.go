package cli

import (
	"errors"
	"fmt"
	"strings"
)

// usageError marks a failure that should exit 2 (argument misuse)
// rather than 1 (other failure), per spec.md §6's exit code table.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err (or anything it wraps) is an
// argument-misuse failure.
func IsUsageError(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

// ClassifyExecError upgrades cobra's own "unknown command" error to a
// usageError. cobra raises it from Command.Find before any RunE or
// SetFlagErrorFunc hook runs, so an unrecognized subcommand would
// otherwise escape the usageError path and map to the wrong exit code.
func ClassifyExecError(err error) error {
	if err == nil || IsUsageError(err) {
		return err
	}
	if strings.HasPrefix(err.Error(), "unknown command ") {
		return &usageError{err: err}
	}
	return err
}
