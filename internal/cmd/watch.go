package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/sessionlock/internal/autolock"
	"github.com/MatthiasKunnen/sessionlock/internal/config"
	"github.com/MatthiasKunnen/sessionlock/pkg/idle"
	"github.com/MatthiasKunnen/sessionlock/pkg/inhibit"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/MatthiasKunnen/sessionlock/pkg/secrets"
	"github.com/spf13/cobra"
	"sync"
)

func newWatchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Lock the session when idle or before sleep",
		Long: `Run in the foreground and lock the session automatically:
  - after watch.idle_timeout of inactivity, using the Wayland ext-idle-notify protocol
  - before the system suspends, using a systemd-logind delay inhibitor

Idle locks are at least watch.cooldown apart. Stop with SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context())
		},
	}

	cmd.Flags().Duration("idle-timeout", config.DefaultIdleTimeout, "lock after this period of inactivity, 0 disables")
	cmd.Flags().Duration("cooldown", config.DefaultCooldown, "minimum time between idle locks")
	cmd.Flags().Bool("lock-before-sleep", true, "lock the session before the system suspends")
	cmd.Flags().Bool("lock-secrets", false, "also lock the Secret Service collections")
	_ = a.v.BindPFlag("watch.idle_timeout", cmd.Flags().Lookup("idle-timeout"))
	_ = a.v.BindPFlag("watch.cooldown", cmd.Flags().Lookup("cooldown"))
	_ = a.v.BindPFlag("watch.lock_before_sleep", cmd.Flags().Lookup("lock-before-sleep"))
	_ = a.v.BindPFlag("watch.lock_secrets", cmd.Flags().Lookup("lock-secrets"))

	return cmd
}

// closers collects resources to release when watch returns.
type closers []func() error

func (c closers) close() error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = errors.Join(err, c[i]())
	}

	return err
}

func (a *app) watch(ctx context.Context) (err error) {
	cfg := a.cfg.Watch
	if cfg.IdleTimeout == 0 && !cfg.LockBeforeSleep {
		return errors.New("nothing to watch: idle timeout is 0 and locking before sleep is disabled")
	}

	var cleanup closers
	defer func() {
		err = errors.Join(err, cleanup.close())
	}()

	svc := &autolock.Service{
		Cooldown: cfg.Cooldown,
		Logger:   a.logger,
	}

	session, sessionErr := a.logindSession()
	if sessionErr != nil {
		a.logger.Warn().Err(sessionErr).Msg("Lock state is unavailable, sessions are locked regardless of their state")
	} else {
		cleanup = append(cleanup, session.Close)
		svc.State = session
		a.logLockedChanges(ctx, session)
	}

	switch a.cfg.Lock.Backend {
	case config.BackendLogind:
		if session == nil {
			return fmt.Errorf("logind backend requires a logind session: %w", sessionErr)
		}
		svc.Locker = session
	default:
		svc.Locker = a.sessionLocker()
	}

	if cfg.LockSecrets {
		s, err := secrets.New()
		if err != nil {
			return fmt.Errorf("failed to connect to the Secret Service: %w", err)
		}
		cleanup = append(cleanup, s.Close)
		svc.Secrets = s
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.IdleTimeout > 0 {
		detector, err := idle.NewWaylandDetector(cfg.IdleTimeout)
		if err != nil {
			return fmt.Errorf("failed to set up idle detection: %w", err)
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := detector.Run(ctx); err != nil {
				errs <- fmt.Errorf("idle detection stopped: %w", err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = svc.Run(ctx, detector.Events())
		}()
		a.logger.Info().Dur("idle_timeout", cfg.IdleTimeout).Msg("Locking the session when idle")
	}

	if cfg.LockBeforeSleep {
		inhibitor, err := inhibit.New()
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to set up sleep inhibitor: %w", err)
		}
		cleanup = append(cleanup, inhibitor.Close)

		guard := inhibit.NewSleepGuard(inhibitor, "sessionlock", "Lock the session before sleep", svc.BeforeSleep, a.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := guard.Run(ctx); err != nil {
				errs <- fmt.Errorf("sleep guard stopped: %w", err)
			}
		}()
		a.logger.Info().Msg("Locking the session before sleep")
	}

	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	cancel()
	wg.Wait()
	a.logger.Info().Msg("Stopped watching")

	return err
}

// logLockedChanges logs every change of the session's locked state until ctx is done.
func (a *app) logLockedChanges(ctx context.Context, session *lock.LogindSession) {
	changes := make(chan bool, 1)
	if err := session.AddLockedSignal(changes); err != nil {
		a.logger.Debug().Err(err).Msg("Not following lock state changes")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case locked := <-changes:
				a.logger.Info().Bool("locked", locked).Msg("Session lock state changed")
			}
		}
	}()
}
