package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
)

// NewEnvCommand creates the env command, which lists the environment
// variables read by serve and play and their defaults.
func NewEnvCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "env",
		Short:         "Describe configuration environment variables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if formatter.JSON() {
				return formatter.Success(map[string]string{"usage": config.Usage()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
			return nil
		},
	}
}
