package inhibit

import (
	"context"
	"fmt"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"io"
)

const prepareForSleepSignal = dbusManagerInterface + ".PrepareForSleep"

// SleepGuard holds a delay inhibitor for sleep so that BeforeSleep can run before the system
// suspends. Once BeforeSleep has returned, the inhibitor is released and the system continues
// to sleep. A new inhibitor is taken when the system resumes.
type SleepGuard struct {
	inhibitor   *Inhibitor
	who         string
	why         string
	beforeSleep func(ctx context.Context) error
	logger      zerolog.Logger

	take func() (io.Closer, error)
	held io.Closer
}

// NewSleepGuard creates a SleepGuard. who and why are shown to users listing the inhibitors,
// e.g. with `systemd-inhibit --list`.
func NewSleepGuard(
	inhibitor *Inhibitor,
	who string,
	why string,
	beforeSleep func(ctx context.Context) error,
	logger zerolog.Logger,
) *SleepGuard {
	g := &SleepGuard{
		inhibitor:   inhibitor,
		who:         who,
		why:         why,
		beforeSleep: beforeSleep,
		logger:      logger,
	}
	g.take = func() (io.Closer, error) {
		return g.inhibitor.Inhibit(g.who, g.why, ModeDelay, WhatSleep)
	}

	return g
}

// Run takes the inhibitor and handles PrepareForSleep signals until ctx is done.
func (g *SleepGuard) Run(ctx context.Context) error {
	conn := g.inhibitor.conn
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(g.inhibitor.login1.Path()),
		dbus.WithMatchInterface(dbusManagerInterface),
		dbus.WithMatchSender(dbusDest),
		dbus.WithMatchMember("PrepareForSleep"),
	}
	if err := conn.AddMatchSignal(match...); err != nil {
		return fmt.Errorf("failed to register Dbus PrepareForSleep signal: %w", err)
	}
	defer func() {
		if err := conn.RemoveMatchSignal(match...); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to remove Dbus PrepareForSleep signal")
		}
	}()

	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	if err := g.acquire(); err != nil {
		return err
	}
	defer g.release()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-signals:
			if s == nil || s.Path != g.inhibitor.login1.Path() || s.Name != prepareForSleepSignal {
				continue
			}

			sleeping, ok := prepareForSleepValue(s.Body)
			if !ok {
				g.logger.Warn().Interface("body", s.Body).Msg("PrepareForSleep body[0] is not a boolean")
				continue
			}

			g.prepareForSleep(ctx, sleeping)
		}
	}
}

// prepareForSleep handles a PrepareForSleep signal. sleeping is true before the system suspends
// and false after it resumed.
func (g *SleepGuard) prepareForSleep(ctx context.Context, sleeping bool) {
	if !sleeping {
		g.logger.Debug().Msg("System resumed from sleep")
		if err := g.acquire(); err != nil {
			g.logger.Error().Err(err).Msg("Unable to acquire sleep inhibitor after resume")
		}
		return
	}

	g.logger.Debug().Msg("System is about to sleep")
	if err := g.beforeSleep(ctx); err != nil {
		g.logger.Error().Err(err).Msg("Before sleep action failed")
	}

	g.release()
}

func (g *SleepGuard) acquire() error {
	if g.held != nil {
		return nil
	}

	held, err := g.take()
	if err != nil {
		return fmt.Errorf("unable to acquire sleep inhibitor: %w", err)
	}

	g.held = held
	return nil
}

func (g *SleepGuard) release() {
	if g.held == nil {
		return
	}

	if err := g.held.Close(); err != nil {
		// This shouldn't occur
		g.logger.Warn().Err(err).Msg("Failed to release sleep inhibitor")
	}
	g.held = nil
}

func prepareForSleepValue(body []interface{}) (bool, bool) {
	if len(body) == 0 {
		return false, false
	}

	sleeping, ok := body[0].(bool)
	return sleeping, ok
}
