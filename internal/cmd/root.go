// Package cmd implements the sessionlock command line interface.
package cmd

import (
	"context"
	"github.com/MatthiasKunnen/sessionlock/internal/config"
	"github.com/MatthiasKunnen/sessionlock/internal/logging"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
)

// app holds the state shared by the subcommands of one execution.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     zerolog.Logger

	// invoker replaces lock.ExecInvoker when set.
	invoker lock.Invoker
}

// NewRootCommand builds the sessionlock command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{v: viper.New()})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sessionlock",
		Short: "Lock the current user session",
		Long: `sessionlock locks the current user session using the lock programs available on
the platform, trying them in order of preference until one succeeds.

It can also run in the background and lock the session when the user goes idle
or before the system suspends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default is "+config.Dir()+"/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: console or json")
	_ = a.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(
		newLockCommand(a),
		newAttemptsCommand(a),
		newWatchCommand(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return err
}

// sessionLocker returns the exec based locker for the running platform.
func (a *app) sessionLocker() *lock.SessionLocker {
	opts := []lock.Option{
		lock.WithLogger(a.logger),
		lock.WithTimeout(a.cfg.Lock.Timeout),
	}
	if a.invoker != nil {
		opts = append(opts, lock.WithInvoker(a.invoker))
	}

	return lock.NewSessionLocker(opts...)
}

// logindSession connects to logind for the session in XDG_SESSION_ID.
func (a *app) logindSession() (*lock.LogindSession, error) {
	return lock.NewLogindSession(os.Getenv("XDG_SESSION_ID"))
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
