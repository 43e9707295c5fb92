// Package autolock locks the session automatically when the user goes idle or the system is
// about to sleep.
package autolock

import (
	"context"
	"errors"
	"github.com/MatthiasKunnen/sessionlock/pkg/idle"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/rs/zerolog"
	"sync"
	"time"
)

// Reason describes what triggered a lock.
type Reason string

const (
	ReasonIdle   Reason = "idle"
	ReasonSleep  Reason = "sleep"
	ReasonManual Reason = "manual"
)

var (
	// ErrInProgress is returned by Trigger while another lock is still running.
	ErrInProgress = errors.New("a session lock is already in progress")
	// ErrCoolingDown is returned by Trigger if the last lock happened less than the cooldown ago.
	ErrCoolingDown = errors.New("session was locked recently")
	// ErrAlreadyLocked is returned by Trigger if the session is known to be locked.
	ErrAlreadyLocked = errors.New("session is already locked")
)

// SecretLocker locks stored secrets, e.g. the user's keyrings.
type SecretLocker interface {
	LockAll(ctx context.Context) error
}

// Service decides when to lock the session and performs the lock.
type Service struct {
	Locker lock.Locker

	// Cooldown is the minimum time between two successful locks triggered by idleness.
	Cooldown time.Duration

	// State is optional. If set, no lock is attempted while the session is locked.
	State lock.StateReader

	// Secrets is optional. If set, secrets are locked after each successful session lock.
	Secrets SecretLocker

	Logger zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	mu         sync.Mutex
	inFlight   chan struct{} // closed when the running lock finishes, nil if none runs
	lastErr    error
	lastLocked time.Time
}

// Trigger locks the session unless a lock is in progress, the session is already locked, or
// for idle triggered locks, the cooldown has not elapsed since the last successful lock.
// The skip reasons are reported as ErrInProgress, ErrAlreadyLocked and ErrCoolingDown.
func (s *Service) Trigger(ctx context.Context, reason Reason) error {
	if err := s.begin(reason); err != nil {
		s.Logger.Debug().Err(err).Str("reason", string(reason)).Msg("Skipping session lock")
		return err
	}

	logger := s.Logger.With().Str("reason", string(reason)).Logger()
	logger.Info().Msg("Locking session")

	err := s.Locker.Lock(ctx)
	s.end(err)
	if err != nil {
		// The message is the final diagnostic, log it verbatim.
		logger.Error().Msgf("Could not lock the session: %s", err.Error())
		return err
	}

	logger.Info().Msg("Session lock requested")

	if s.Secrets != nil {
		if err := s.Secrets.LockAll(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to lock secrets")
		} else {
			logger.Debug().Msg("Secrets locked")
		}
	}

	return nil
}

func (s *Service) begin(reason Reason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != nil {
		return ErrInProgress
	}

	if reason == ReasonIdle && s.Cooldown > 0 && !s.lastLocked.IsZero() &&
		s.now().Sub(s.lastLocked) < s.Cooldown {
		return ErrCoolingDown
	}

	if s.State != nil {
		locked, err := s.State.Locked()
		if err != nil {
			s.Logger.Debug().Err(err).Msg("Could not determine lock state, locking anyway")
		} else if locked {
			return ErrAlreadyLocked
		}
	}

	s.inFlight = make(chan struct{})
	return nil
}

func (s *Service) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.inFlight)
	s.inFlight = nil
	s.lastErr = err
	if err == nil {
		s.lastLocked = s.now()
	}
}

// wait blocks until the lock in progress, if any, has finished and returns its result.
func (s *Service) wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.inFlight
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}

	return time.Now()
}

// Run locks the session each time events reports idle.Idled.
// It returns when ctx is done or events is closed.
func (s *Service) Run(ctx context.Context, events <-chan idle.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}

			s.Logger.Debug().Stringer("event", e).Msg("Idle event")
			if e != idle.Idled {
				continue
			}

			// Failures are logged by Trigger, the next idle period retries.
			_ = s.Trigger(ctx, ReasonIdle)
		}
	}
}

// BeforeSleep locks the session, meant to be passed to inhibit.NewSleepGuard.
// If a lock is already running, it waits for that lock and tries again only if it failed.
// A session that is already locked is not an error.
func (s *Service) BeforeSleep(ctx context.Context) error {
	err := s.Trigger(ctx, ReasonSleep)
	if errors.Is(err, ErrInProgress) {
		s.Logger.Debug().Msg("Waiting for the running session lock before sleep")
		err = s.wait(ctx)
		if err != nil && ctx.Err() == nil {
			err = s.Trigger(ctx, ReasonSleep)
		}
	}

	if errors.Is(err, ErrAlreadyLocked) {
		return nil
	}

	return err
}
