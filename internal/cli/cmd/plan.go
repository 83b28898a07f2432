package cmd

import (
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan <url>",
		Short:         "Show the stream selection for a quality without downloading",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0], downloadMode{DryRunOnly: true})
		},
	}
	bindDownloadFlags(cmd.Flags())
	return cmd
}
