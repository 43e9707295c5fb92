// Package locktest provides test doubles for package lock.
package locktest

import (
	"context"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"sync"
)

// Invoker is a scriptable lock.Invoker. It never starts a process.
// Results are returned in the order they were added; once they run out, Default is returned.
// It is safe for concurrent use.
type Invoker struct {
	Default lock.ProcessResult

	mu      sync.Mutex
	results []lock.ProcessResult
	calls   []lock.Attempt
}

// NewInvoker returns an Invoker that returns the given results in order.
func NewInvoker(results ...lock.ProcessResult) *Invoker {
	return &Invoker{results: results}
}

func (i *Invoker) Invoke(_ context.Context, attempt lock.Attempt) lock.ProcessResult {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.calls = append(i.calls, attempt)
	if len(i.results) == 0 {
		return i.Default
	}

	result := i.results[0]
	i.results = i.results[1:]
	return result
}

// Calls returns the attempts invoked so far, in order.
func (i *Invoker) Calls() []lock.Attempt {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]lock.Attempt(nil), i.calls...)
}

// Succeeded returns a successful result.
func Succeeded() lock.ProcessResult {
	return lock.Succeeded()
}

// Exited returns the result of an attempt that exited with the given non-zero code and error
// output, as lock.ExecInvoker would report it.
func Exited(attempt lock.Attempt, code int, stderr string) lock.ProcessResult {
	return lock.ProcessResult{
		ExitCode: &code,
		Stderr:   stderr,
		Err: &lock.ExitError{
			Attempt:  attempt,
			ExitCode: &code,
			Stderr:   stderr,
		},
	}
}

// Signaled returns the result of an attempt that was terminated without an exit code.
func Signaled(attempt lock.Attempt, termination string) lock.ProcessResult {
	return lock.ProcessResult{
		Err: &lock.ExitError{
			Attempt:     attempt,
			Termination: termination,
		},
	}
}

// NotFound returns the result of an attempt whose program could not be started.
func NotFound(attempt lock.Attempt, err error) lock.ProcessResult {
	return lock.ProcessResult{
		Err: &lock.SpawnError{Program: attempt.Program, Err: err},
	}
}

// Locker is a lock.Locker that counts calls and returns Err.
type Locker struct {
	Err error

	mu    sync.Mutex
	calls int
}

func (l *Locker) Lock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	return l.Err
}

func (l *Locker) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls
}
