package cmd

import (
	"github.com/compozy/autorelease/internal/orchestrator"
	"github.com/spf13/cobra"
)

func runRelease(cmd *cobra.Command, c *container) error {
	orch := orchestrator.NewReleaseOrchestrator(
		c.gitRepo,
		c.hostingRepo,
		c.versions,
		c.fsRepo,
		c.releaseConfig(ciOutput),
		orchestrator.WithOutput(cmd.OutOrStdout()),
		orchestrator.WithLogger(c.log),
	)
	_, err := orch.Execute(cmd.Context())
	return err
}
