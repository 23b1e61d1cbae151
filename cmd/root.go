package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	debug    bool
	ciOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "autorelease",
	Short: "Promote the current branch through pull request, checks, merge and release",
	Long: `autorelease drives the current feature branch to a published release:
- Pushes the branch and finds or opens its pull request
- Waits for CI checks, resolving merge conflicts when needed
- Squash-merges the pull request
- Publishes a release tagged with the manifest version`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newContainer(debug)
		if err != nil {
			return err
		}
		defer func() { _ = c.log.Sync() }()
		return runRelease(cmd, c)
	},
}

// InitCommands registers flags and subcommands
func InitCommands() error {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Trace every external call and its raw output")
	rootCmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output in CI-friendly format")
	rootCmd.AddCommand(newStatusCmd(), newPanelCmd(), newVersionCmd())
	return nil
}

// ExecuteContext runs the root command; cancelling ctx aborts a running release.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
