package cmd

import (
	"context"
	"fmt"
	"github.com/MatthiasKunnen/sessionlock/internal/config"
	"github.com/spf13/cobra"
)

func newLockCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock the session now",
		Long: `Lock the session now.

With the exec backend, the platform's lock programs are tried in order until one
succeeds. If all of them fail, the reason each one failed is printed.

With the logind backend, systemd-logind is asked over D-Bus to lock the session
identified by XDG_SESSION_ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.lock(cmd.Context())
		},
	}

	cmd.Flags().String("backend", "", "lock backend: exec or logind")
	cmd.Flags().Duration("timeout", 0, "give up after this duration, 0 waits indefinitely")
	_ = a.v.BindPFlag("lock.backend", cmd.Flags().Lookup("backend"))
	_ = a.v.BindPFlag("lock.timeout", cmd.Flags().Lookup("timeout"))

	return cmd
}

func (a *app) lock(ctx context.Context) error {
	switch a.cfg.Lock.Backend {
	case config.BackendLogind:
		session, err := a.logindSession()
		if err != nil {
			return fmt.Errorf("failed to connect to logind: %w", err)
		}
		defer func() {
			if err := session.Close(); err != nil {
				a.logger.Debug().Err(err).Msg("Failed to close logind connection")
			}
		}()

		if a.cfg.Lock.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Lock.Timeout)
			defer cancel()
		}

		return session.Lock(ctx)
	default:
		// The error is the final diagnostic and is printed unchanged.
		return a.sessionLocker().Lock(ctx)
	}
}
