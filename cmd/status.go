package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the release status of the current branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newContainer(debug)
			if err != nil {
				return err
			}
			defer func() { _ = c.log.Sync() }()
			report, err := c.statusOrchestrator().GetStatus(cmd.Context())
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), report, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func writeStatus(out io.Writer, report *domain.StatusReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		writeStatusText(out, report)
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use text, json or yaml)", format)
	}
}

func writeStatusText(out io.Writer, report *domain.StatusReport) {
	fmt.Fprintf(out, "Branch:\t%s -> %s\n", report.Branch, report.BaseBranch)
	fmt.Fprintf(out, "Dirty:\t%t\n", report.Dirty)
	if report.Version != "" {
		fmt.Fprintf(out, "Version:\t%s (tag exists: %t)\n", report.Version, report.TagExists)
	}
	if pr := report.PullRequest; pr != nil {
		fmt.Fprintf(out, "Pull request:\t#%d %s %s\n", pr.Number, pr.State, pr.URL)
	}
	if len(report.Checks) > 0 {
		fmt.Fprintf(out, "Checks:\t%s (%d)\n", report.CheckState, len(report.Checks))
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "⚠️ %s\n", w)
	}
}
