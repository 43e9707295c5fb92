package cmd

import (
	"fmt"
	"github.com/MatthiasKunnen/sessionlock/pkg/lock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type attemptsOutput struct {
	Platform  lock.Platform  `yaml:"platform"`
	Supported bool           `yaml:"supported"`
	Attempts  []lock.Attempt `yaml:"attempts"`
}

func newAttemptsCommand(a *app) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Show the lock programs tried on a platform",
		Long: `Show the lock programs tried by "sessionlock lock", in order of preference.

Examples:
  # Programs for the running platform
  sessionlock attempts

  # Programs used on macOS
  sessionlock attempts --platform darwin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := lock.Platform(platform)
			if p == "" {
				p = lock.CurrentPlatform()
			}

			attempts := lock.Attempts(p)
			out := attemptsOutput{
				Platform:  p,
				Supported: len(attempts) > 0,
				Attempts:  attempts,
			}
			if out.Attempts == nil {
				out.Attempts = []lock.Attempt{}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("failed to encode attempts: %w", err)
			}

			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "platform to show, e.g. linux, darwin or windows (default is the running platform)")

	return cmd
}
