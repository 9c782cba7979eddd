package commands

import (
	"bh/internal/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return version.GetVersion().Write(cmd.OutOrStdout(), short)
		},
	}
	markSkipConfig(cmd)

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return cmd
}
