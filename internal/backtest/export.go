package backtest

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
)

var tradeListHeader = []string{
	"trade_id", "type", "signal", "time", "price", "quantity",
	"pnl", "pnl_pct", "run_up", "drawdown", "cumulative_pnl", "rsi",
}

// WriteTradeListCSV writes rows as CSV with a header line.
func WriteTradeListCSV(w io.Writer, rows []TradeListRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeListHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.TradeID),
			r.Type,
			r.Signal,
			formatTime(r.Time),
			formatFloat(r.Price),
			formatFloat(r.Quantity),
			formatFloat(r.PnL),
			formatFloat(round2(r.PnLPct)),
			formatFloat(r.RunUp),
			formatFloat(r.Drawdown),
			formatFloat(r.CumulativePnL),
			"",
		}
		if !math.IsNaN(r.RSI) {
			rec[11] = formatFloat(round2(r.RSI))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve as time,equity rows.
func WriteEquityCSV(w io.Writer, curve []EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "equity"}); err != nil {
		return err
	}
	for _, p := range curve {
		if err := cw.Write([]string{formatTime(p.Time), formatFloat(p.Equity)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
