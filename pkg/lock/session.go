package lock

import (
	"context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"time"
)

// SessionLocker locks the session by running the attempts of its platform, see Attempts.
// It holds no mutable state; a single SessionLocker can be used concurrently.
type SessionLocker struct {
	platform Platform
	resolve  func(Platform) []Attempt
	invoker  Invoker
	logger   zerolog.Logger
	timeout  time.Duration
}

type Option func(*SessionLocker)

// WithPlatform overrides the platform whose attempts are used. Defaults to CurrentPlatform.
func WithPlatform(p Platform) Option {
	return func(l *SessionLocker) {
		l.platform = p
	}
}

// WithResolver overrides the function that maps a platform to its attempts.
// Defaults to Attempts.
func WithResolver(resolve func(Platform) []Attempt) Option {
	return func(l *SessionLocker) {
		l.resolve = resolve
	}
}

// WithInvoker overrides how attempts are run. Defaults to ExecInvoker.
func WithInvoker(invoker Invoker) Option {
	return func(l *SessionLocker) {
		l.invoker = invoker
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *SessionLocker) {
		l.logger = logger
	}
}

// WithTimeout limits how long a single Lock call, including all of its attempts, may take.
// Programs still running when the timeout expires are killed and count as failed.
// Zero, the default, means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *SessionLocker) {
		l.timeout = timeout
	}
}

func NewSessionLocker(opts ...Option) *SessionLocker {
	l := &SessionLocker{
		platform: CurrentPlatform(),
		resolve:  Attempts,
		invoker:  ExecInvoker{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Platform returns the platform whose attempts are used.
func (l *SessionLocker) Platform() Platform {
	return l.platform
}

// Lock runs a single fallback search over the platform's attempts.
// The returned error is the unmodified result of Dispatcher.Run.
func (l *SessionLocker) Lock(ctx context.Context) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	logger := l.logger.With().
		Str("lock_id", uuid.NewString()).
		Str("platform", string(l.platform)).
		Logger()

	d := &Dispatcher{
		Invoker: l.invoker,
		Logger:  logger,
	}
	err := d.Run(ctx, l.resolve(l.platform))
	if err != nil {
		logger.Debug().Err(err).Msg("Session lock failed")
		return err
	}

	logger.Debug().Msg("Session lock requested")
	return nil
}
