package cmd

import (
	"github.com/compozy/autorelease/internal/panel"
	"github.com/spf13/cobra"
)

func newPanelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Interactive release status panel",
		Long:  `Shows the release status of the current branch and starts a release on enter.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newContainer(debug)
			if err != nil {
				return err
			}
			defer func() { _ = c.log.Sync() }()
			start, err := panel.Run(cmd.Context(), c.statusOrchestrator().GetStatus, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil || !start {
				return err
			}
			return runRelease(cmd, c)
		},
	}
}
