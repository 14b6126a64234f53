package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/app"
)

var suggestJSON bool

var suggestCmd = &cobra.Command{
	Use:     "suggest [description]",
	Short:   "Map a trading idea onto a built-in strategy",
	Long:    "Ask the configured LLM to pick a registered strategy and parameters for a plain-language idea.",
	Example: `  llmtrader suggest "buy when RSI is oversold and take profit at 3%"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSuggest,
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "print the suggestion as JSON")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	return withRunner(false, func(r *app.Runner, log *zap.Logger) error {
		s, err := r.Suggest(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("suggest failed: %w", err)
		}
		log.Debug("suggestion received",
			zap.String("provider", s.Provider),
			zap.Int("attempts", s.Attempts),
			zap.Int("input_tokens", s.Usage.InputTokens),
			zap.Int("output_tokens", s.Usage.OutputTokens))

		out := cmd.OutOrStdout()
		if suggestJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		fmt.Fprintf(out, "Strategy:  %s\n", s.Strategy)
		fmt.Fprintf(out, "Rationale: %s\n", s.Rationale)
		line := []string{"llmtrader backtest --strategy " + s.Strategy}
		for _, k := range sortedKeys(s.Params) {
			fmt.Fprintf(out, "  %s = %v\n", k, s.Params[k])
			line = append(line, fmt.Sprintf("--param %s=%v", k, s.Params[k]))
		}
		fmt.Fprintf(out, "\nRun it with:\n  %s\n", strings.Join(line, " "))
		return nil
	})
}
