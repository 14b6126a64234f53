package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/collector/csvfile"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
)

var barsCmd = &cobra.Command{
	Use:   "bars",
	Short: "Bar data operations",
	Long:  `Commands for downloading, exporting and inspecting OHLCV bars.`,
}

var barsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download bars into the local cache",
	Args:  cobra.NoArgs,
	RunE:  runBarsFetch,
}

var barsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write bars to a CSV or Parquet file",
	Args:  cobra.NoArgs,
	RunE:  runBarsExport,
}

var barsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached symbols and intervals",
	Args:  cobra.NoArgs,
	RunE:  runBarsList,
}

var barsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the first bars of a selection",
	Args:  cobra.NoArgs,
	RunE:  runBarsPreview,
}

var (
	barsSource   string
	barsSymbol   string
	barsInterval string
	barsFrom     string
	barsTo       string
	barsOut      string
	barsRows     int
)

func init() {
	rootCmd.AddCommand(barsCmd)
	barsCmd.AddCommand(barsFetchCmd)
	barsCmd.AddCommand(barsExportCmd)
	barsCmd.AddCommand(barsListCmd)
	barsCmd.AddCommand(barsPreviewCmd)

	for _, c := range []*cobra.Command{barsFetchCmd, barsExportCmd, barsPreviewCmd} {
		c.Flags().StringVar(&barsSource, "source", "", "bar source (default from config)")
		c.Flags().StringVar(&barsSymbol, "symbol", "", "symbol, e.g. BTCUSDT")
		c.Flags().StringVar(&barsInterval, "interval", "", "bar interval, e.g. 15m")
		c.Flags().StringVar(&barsFrom, "from", "", "start date YYYY-MM-DD")
		c.Flags().StringVar(&barsTo, "to", "", "end date YYYY-MM-DD")
	}
	barsExportCmd.Flags().StringVarP(&barsOut, "out", "o", "", "output file, .csv or .parquet (required)")
	barsExportCmd.MarkFlagRequired("out")
	barsPreviewCmd.Flags().IntVarP(&barsRows, "rows", "n", 5, "rows to show")
}

// withRunner handles common runner setup and teardown.
func withRunner(cacheOn bool, fn func(r *app.Runner, log *zap.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cacheOn {
		cfg.Data.Cache.Enabled = true
	}
	runner, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	defer runner.Close()

	return fn(runner, log)
}

func barsRequest() (app.Request, error) {
	start, err := app.ParseDate(barsFrom)
	if err != nil {
		return app.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := app.ParseDate(barsTo)
	if err != nil {
		return app.Request{}, fmt.Errorf("invalid --to: %w", err)
	}
	return app.Request{
		Source:   barsSource,
		Symbol:   barsSymbol,
		Interval: barsInterval,
		Start:    start,
		End:      end,
	}, nil
}

func runBarsFetch(cmd *cobra.Command, args []string) error {
	req, err := barsRequest()
	if err != nil {
		return err
	}
	// Loading through the cached source writes the bars back.
	return withRunner(true, func(r *app.Runner, log *zap.Logger) error {
		series, err := r.LoadBars(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("fetching bars: %w", err)
		}
		cache := r.Config().Data.Cache
		log.Info("bars cached",
			zap.String("symbol", series.Symbol()),
			zap.String("interval", series.Interval()),
			zap.Int("bars", series.Len()),
			zap.String("cache", cache.Type+":"+cache.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d bars cached in %s\n",
			series.Symbol(), series.Interval(), series.Len(), cache.Path)
		return nil
	})
}

func runBarsExport(cmd *cobra.Command, args []string) error {
	req, err := barsRequest()
	if err != nil {
		return err
	}
	return withRunner(false, func(r *app.Runner, log *zap.Logger) error {
		series, err := r.LoadBars(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("loading bars: %w", err)
		}

		switch strings.ToLower(filepath.Ext(barsOut)) {
		case ".parquet":
			err = bars.WriteFile(barsOut, series.Bars())
		case ".csv":
			err = writeFile(barsOut, func(w io.Writer) error {
				return csvfile.Write(w, series.Bars())
			})
		default:
			return fmt.Errorf("unsupported export format %q, use .csv or .parquet", filepath.Ext(barsOut))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d bars written to %s\n", series.Len(), barsOut)
		return nil
	})
}

func runBarsList(cmd *cobra.Command, args []string) error {
	return withRunner(true, func(r *app.Runner, log *zap.Logger) error {
		store, ok := r.Store().(*bars.SQLiteStore)
		if !ok {
			return fmt.Errorf("listing needs the sqlite cache, configured cache is %q", r.Config().Data.Cache.Type)
		}
		series, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing cache: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tINTERVAL\tBARS\tFIRST\tLAST")
		for _, s := range series {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Symbol, s.Interval, s.Bars,
				s.First.Format("2006-01-02 15:04"), s.Last.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func runBarsPreview(cmd *cobra.Command, args []string) error {
	req, err := barsRequest()
	if err != nil {
		return err
	}
	return withRunner(false, func(r *app.Runner, log *zap.Logger) error {
		p, err := r.Preview(cmd.Context(), req, barsRows)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s: %d rows\n", p.Symbol, p.Interval, p.Rows)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(collector.Columns, "\t")))
		for _, b := range p.Head {
			fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\t%g\n",
				b.Time.UTC().Format("2006-01-02 15:04"), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		return tw.Flush()
	})
}
