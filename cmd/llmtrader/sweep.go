package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/backtest"
)

var (
	sweepFlags   runFlags
	sweepGrid    []string
	sweepWorkers int
	sweepJSON    bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a strategy over a grid of parameters",
	Long: `Run one strategy for every combination of the --grid axes over the same
bars. Results are printed in grid order and the best total return is marked.`,
	Example: `  llmtrader sweep --strategy rsi_reversion --csv bars.csv --grid rsi_buy_threshold=25,30,35 --grid take_profit=2,4`,
	Args:    cobra.NoArgs,
	RunE:    runSweep,
}

func init() {
	sweepFlags.register(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepGrid, "grid", nil, "parameter axis key=v1,v2,... (repeatable)")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "concurrent runs (default from config)")
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "print results as JSON")
	sweepCmd.MarkFlagRequired("grid")

	rootCmd.AddCommand(sweepCmd)
}

type sweepRow struct {
	Case     backtest.SweepCase   `json:"case"`
	Report   *backtest.ReportJSON `json:"report,omitempty"`
	Error    string               `json:"error,omitempty"`
	Duration string               `json:"duration"`
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	req, err := sweepFlags.request(cmd)
	if err != nil {
		return err
	}
	grid, err := app.ParseGrid(sweepGrid)
	if err != nil {
		return err
	}

	runner, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	defer runner.Close()

	results, err := runner.Sweep(cmd.Context(), req, grid, sweepWorkers)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if sweepJSON {
		rows := make([]sweepRow, len(results))
		for i, r := range results {
			rows[i] = sweepRow{Case: r.Case, Duration: r.Duration.String()}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			} else if r.Report != nil {
				wire := r.Report.Wire()
				wire.EquityCurve = backtest.EquityCurveJSON{}
				wire.TradeHistory = nil
				rows[i].Report = &wire
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	best, found := backtest.Best(results)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tCASE\tTRADES\tRETURN %\tDRAWDOWN %\tWIN %\tFINAL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "\t%s\terror: %v\t\t\t\t\n", r.Case, r.Err)
			continue
		}
		if r.Report == nil {
			continue
		}
		mark := ""
		if found && r.Report == best.Report {
			mark = "*"
		}
		w := r.Report.Wire()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\n",
			mark, r.Case, w.NumTrades, w.TotalReturn, w.MaxDrawdown, w.WinRate, w.FinalCapital)
	}
	return tw.Flush()
}
