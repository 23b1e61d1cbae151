package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/compozy/autorelease/pkg/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch output {
			case "json":
				return json.NewEncoder(out).Encode(info)
			case "yaml":
				return yaml.NewEncoder(out).Encode(info)
			}
			fmt.Fprintf(out, "Version:\t%s\n", safeValue(info.Version, "dev"))
			fmt.Fprintf(out, "Commit:\t%s\n", safeValue(info.Commit, "unknown"))
			fmt.Fprintf(out, "Built:\t%s\n", safeValue(info.BuildDate, "unknown"))
			fmt.Fprintf(out, "Go:\t%s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func safeValue(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
