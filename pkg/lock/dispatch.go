package lock

import (
	"context"
	"github.com/rs/zerolog"
)

// Dispatcher tries attempts in order until one of them succeeds.
type Dispatcher struct {
	Invoker Invoker
	Logger  zerolog.Logger
}

// Run invokes the attempts in the given order and returns nil as soon as one succeeds; the
// remaining attempts are not started.
//
// An empty list results in ErrUnsupportedPlatform.
// If every attempt fails, an *AggregateError holding each attempt's error in order is returned.
func (d *Dispatcher) Run(ctx context.Context, attempts []Attempt) error {
	if len(attempts) == 0 {
		return ErrUnsupportedPlatform
	}

	invoker := d.Invoker
	if invoker == nil {
		invoker = ExecInvoker{}
	}

	var errs []error
	for i, attempt := range attempts {
		d.Logger.Debug().
			Int("attempt", i+1).
			Int("of", len(attempts)).
			Str("program", attempt.Program).
			Strs("args", attempt.Args).
			Msg("Trying lock command")

		result := invoker.Invoke(ctx, attempt)
		if result.Success {
			d.Logger.Debug().Str("program", attempt.Program).Msg("Lock command succeeded")
			return nil
		}

		err := result.Err
		if err == nil {
			// An invoker reported failure without a diagnostic.
			err = &ExitError{Attempt: attempt, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}

		d.Logger.Debug().Err(err).Str("program", attempt.Program).Msg("Lock command failed")
		errs = append(errs, err)
	}

	return &AggregateError{Errs: errs}
}
