package lock

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedPlatform is returned when no attempts exist for the platform.
// No program is started in that case.
var ErrUnsupportedPlatform = errors.New("unsupported platform: session locking is not available")

// AttemptSeparator separates the diagnostics of the individual attempts in an AggregateError.
const AttemptSeparator = " | "

// SpawnError is returned when a program could not be started at all, e.g. because it does not
// exist, is not executable, or permission was denied.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not run '%s': %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError is returned when a program ran but did not exit successfully.
type ExitError struct {
	Attempt Attempt

	// ExitCode is nil if the process did not exit normally, e.g. when killed by a signal.
	ExitCode *int

	// Stderr holds the whitespace-trimmed error output of the process.
	Stderr string

	// Termination describes why no exit code is available. Only set if ExitCode is nil.
	Termination string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command '%s' failed: %s", e.Attempt.String(), e.detail())
}

func (e *ExitError) detail() string {
	if e.Stderr != "" {
		return e.Stderr
	}

	if e.ExitCode != nil {
		return fmt.Sprintf("exit code: %d", *e.ExitCode)
	}

	if e.Termination != "" {
		return fmt.Sprintf("exit code: none (%s)", e.Termination)
	}

	return "exit code: none"
}

// AggregateError is returned when every attempt failed.
// Errs holds the error of every attempt, in the order they were tried.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	for i, err := range e.Errs {
		if i > 0 {
			b.WriteString(AttemptSeparator)
		}
		b.WriteString(err.Error())
	}

	return b.String()
}

func (e *AggregateError) Unwrap() []error {
	return e.Errs
}
