package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinmindoree/llmtradingtest/internal/app"
)

// runFlags are the data and engine flags shared by backtest and sweep.
type runFlags struct {
	strategy   string
	source     string
	symbol     string
	interval   string
	from       string
	to         string
	csv        string
	barsFile   string
	capital    float64
	commission float64
	timing     string
	params     []string
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.strategy, "strategy", "", "strategy name (required)")
	fs.StringVar(&f.source, "source", "", "bar source (default from config)")
	fs.StringVar(&f.symbol, "symbol", "", "symbol, e.g. BTCUSDT")
	fs.StringVar(&f.interval, "interval", "", "bar interval, e.g. 15m")
	fs.StringVar(&f.from, "from", "", "start date YYYY-MM-DD")
	fs.StringVar(&f.to, "to", "", "end date YYYY-MM-DD")
	fs.StringVar(&f.csv, "csv", "", "read bars from a CSV file")
	fs.StringVar(&f.barsFile, "bars-file", "", "read bars from a Parquet file")
	fs.Float64Var(&f.capital, "capital", 0, "initial capital (default from config)")
	fs.Float64Var(&f.commission, "commission", 0, "commission rate per side (default from config)")
	fs.StringVar(&f.timing, "timing", "", "fill timing: close or open")
	fs.StringArrayVar(&f.params, "param", nil, "strategy parameter key=value (repeatable)")

	cmd.MarkFlagRequired("strategy")
	cmd.MarkFlagsMutuallyExclusive("csv", "bars-file")
}

func (f *runFlags) request(cmd *cobra.Command) (app.Request, error) {
	start, err := app.ParseDate(f.from)
	if err != nil {
		return app.Request{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := app.ParseDate(f.to)
	if err != nil {
		return app.Request{}, fmt.Errorf("invalid --to: %w", err)
	}
	params, err := app.ParseParams(f.params)
	if err != nil {
		return app.Request{}, err
	}

	req := app.Request{
		Strategy:       f.strategy,
		Params:         params,
		Source:         f.source,
		Symbol:         f.symbol,
		Interval:       f.interval,
		Start:          start,
		End:            end,
		InitialCapital: f.capital,
		Timing:         f.timing,
	}
	if f.csv != "" {
		req.File = f.csv
	} else if f.barsFile != "" {
		req.File = f.barsFile
	}
	if cmd.Flags().Changed("commission") {
		c := f.commission
		req.Commission = &c
	}
	return req, nil
}
