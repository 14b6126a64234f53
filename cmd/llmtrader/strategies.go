package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/strategy/builtin"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List built-in strategies and their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION\tDEFAULTS")
		for _, info := range builtin.NewRegistry(zap.NewNop()).List() {
			defaults := make([]string, 0, len(info.Defaults))
			for _, k := range sortedKeys(info.Defaults) {
				defaults = append(defaults, fmt.Sprintf("%s=%v", k, info.Defaults[k]))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Description, strings.Join(defaults, " "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
