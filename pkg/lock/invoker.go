package lock

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// killWaitDelay bounds how long a canceled attempt may hold its error output open after the
// program was killed, e.g. through a background process that inherited it.
const killWaitDelay = 500 * time.Millisecond

// Invoker runs a single attempt and classifies its outcome.
type Invoker interface {
	// Invoke starts the attempt's program and blocks until it has exited.
	Invoke(ctx context.Context, attempt Attempt) ProcessResult
}

// ProcessResult is the classified outcome of running one attempt.
type ProcessResult struct {
	Success bool

	// ExitCode is nil if the program never started or did not exit normally.
	ExitCode *int

	// Stderr is the whitespace-trimmed error output of the program.
	Stderr string

	// Err is the diagnostic of a failed attempt: a *SpawnError or an *ExitError.
	// It is nil on success.
	Err error
}

// Succeeded returns the result of an attempt that exited with code 0.
func Succeeded() ProcessResult {
	code := 0
	return ProcessResult{Success: true, ExitCode: &code}
}

// ExecInvoker runs attempts as child processes of the current process.
// Standard output of the child is discarded, its error output is captured.
type ExecInvoker struct{}

func (ExecInvoker) Invoke(ctx context.Context, attempt Attempt) ProcessResult {
	cmd := exec.CommandContext(ctx, attempt.Program, attempt.Args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if ctx.Done() != nil {
		cmd.WaitDelay = killWaitDelay
	}

	err := cmd.Run()
	if err == nil {
		return Succeeded()
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ProcessResult{
			Err: &SpawnError{Program: attempt.Program, Err: err},
		}
	}

	result := ProcessResult{
		Stderr: strings.TrimSpace(stderr.String()),
	}
	failure := &ExitError{
		Attempt: attempt,
		Stderr:  result.Stderr,
	}

	if exitErr.Exited() {
		code := exitErr.ExitCode()
		result.ExitCode = &code
		failure.ExitCode = &code
	} else {
		failure.Termination = describeTermination(exitErr.ProcessState)
	}

	result.Err = failure
	return result
}
