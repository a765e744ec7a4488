// internal/cmdutil/run.go
package cmdutil

import (
	"context"

	"github.com/pkg/errors"
)

// Process exit codes shared by every tool.
const (
	ExitOK        = 0
	ExitUsage     = 2 // bad flags or setup that fails before any work
	ExitRuntime   = 3 // failure while work was under way
	ExitCancelled = 130
)

// SetupError marks a failure that happened before any work started.
type SetupError struct{ Err error }

func (e *SetupError) Error() string { return e.Err.Error() }
func (e *SetupError) Unwrap() error { return e.Err }

// Setup wraps err as a SetupError; nil stays nil.
func Setup(err error) error {
	if err == nil {
		return nil
	}
	return &SetupError{Err: err}
}

// ExitCode maps a run's outcome to a process exit code.
func ExitCode(ctx context.Context, err error) int {
	if err == nil {
		if ctx.Err() != nil {
			return ExitCancelled
		}
		return ExitOK
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ExitCancelled
	}
	var se *SetupError
	if errors.As(err, &se) {
		return ExitUsage
	}
	return ExitRuntime
}
