package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/backtest"
)

var (
	backtestFlags  runFlags
	backtestJSON   bool
	backtestTrades string
	backtestEquity string
	backtestSave   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy over historical bars",
	Long:  "Run a strategy against historical bars and show performance statistics",
	Example: `  llmtrader backtest --strategy rsi_reversion --symbol BTCUSDT --from 2024-01-01 --to 2024-02-01
  llmtrader backtest --strategy ma_crossover --csv bars.csv --param fast_period=5 --json`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestFlags.register(backtestCmd)
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "print the report as JSON")
	backtestCmd.Flags().StringVar(&backtestTrades, "trades", "", "write the trade list to a CSV file")
	backtestCmd.Flags().StringVar(&backtestEquity, "equity", "", "write the equity curve to a CSV file")
	backtestCmd.Flags().BoolVar(&backtestSave, "archive", false, "archive the report even if disabled in config")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	req, err := backtestFlags.request(cmd)
	if err != nil {
		return err
	}
	if backtestSave {
		cfg.Archive.Enabled = true
	}

	runner, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	defer runner.Close()

	res, err := runner.Backtest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	rep := res.Report
	log.Info("backtest finished",
		zap.String("run_id", rep.RunID),
		zap.Duration("duration", res.Duration))

	if backtestTrades != "" {
		if err := writeFile(backtestTrades, func(w io.Writer) error {
			return backtest.WriteTradeListCSV(w, backtest.TradeList(rep.Trades, res.Series))
		}); err != nil {
			return err
		}
	}
	if backtestEquity != "" {
		if err := writeFile(backtestEquity, func(w io.Writer) error {
			return backtest.WriteEquityCSV(w, rep.EquityCurve)
		}); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if backtestJSON {
		return backtest.WriteJSON(out, rep)
	}
	printReport(out, rep, res.ArchiveKeys)
	return nil
}

func printReport(out io.Writer, rep *backtest.Report, archived []string) {
	wire := rep.Wire()

	fmt.Fprintln(out, "=== Backtest ===")
	fmt.Fprintf(out, "Run:       %s\n", wire.RunID)
	fmt.Fprintf(out, "Strategy:  %s\n", wire.Strategy)
	if len(wire.Params) > 0 {
		params, _ := json.Marshal(wire.Params)
		fmt.Fprintf(out, "Params:    %s\n", params)
	}
	fmt.Fprintf(out, "Symbol:    %s %s (%d bars, %s fills)\n", wire.Symbol, wire.Interval, rep.Bars, wire.Timing)
	if !rep.Start.IsZero() {
		fmt.Fprintf(out, "Period:    %s to %s\n", rep.Start.Format("2006-01-02 15:04"), rep.End.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Initial capital\t%.2f\n", wire.InitialCapital)
	fmt.Fprintf(tw, "Final capital\t%.2f\n", wire.FinalCapital)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", wire.TotalReturn)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", wire.MaxDrawdown)
	fmt.Fprintf(tw, "Trades\t%d (won %d, lost %d)\n", wire.NumTrades, wire.WonTrades, wire.LostTrades)
	fmt.Fprintf(tw, "Win rate\t%.2f%%\n", wire.WinRate)
	fmt.Fprintf(tw, "Profit/loss ratio\t%.2f\n", wire.ProfitLossRatio)
	fmt.Fprintf(tw, "Sharpe ratio\t%.2f\n", wire.SharpeRatio)
	fmt.Fprintf(tw, "Commission\t%.2f\n", wire.TotalCommission)
	tw.Flush()

	if len(wire.Skipped) > 0 {
		reasons := make([]string, 0, len(wire.Skipped))
		for reason, n := range wire.Skipped {
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
		}
		slices.Sort(reasons)
		fmt.Fprintf(out, "\nSkipped actions: %s\n", strings.Join(reasons, ", "))
	}

	if bands := backtest.BandAnalysis(rep.Trades, "rsi", backtest.DefaultRSIBands); hasCounts(bands) {
		fmt.Fprintln(out, "\nEntry RSI bands:")
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BAND\tTRADES\tPNL\tAVG %\tWIN %")
		for _, b := range bands {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", b.Band, b.Count, b.TotalPnL, b.AvgPnLPct, b.WinRatePct)
		}
		tw.Flush()
	}

	if len(archived) > 0 {
		fmt.Fprintf(out, "\nArchived: %s\n", strings.Join(archived, ", "))
	}
}

func hasCounts(bands []backtest.BandStats) bool {
	for _, b := range bands {
		if b.Count > 0 {
			return true
		}
	}
	return false
}

// writeFile creates path and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
