package backtest

import (
	"encoding/json"
	"io"
	"time"
)

// LabelLayout formats equity curve labels and trade dates on the wire.
const LabelLayout = "2006-01-02 15:04:05"

// EquityCurveJSON is the chart-friendly equity curve.
type EquityCurveJSON struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// TradeJSON is one row of trade_history.
type TradeJSON struct {
	ID         int     `json:"id"`
	EntryDate  string  `json:"entry_date"`
	ExitDate   string  `json:"exit_date"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnl_pct"`
	ExitReason string  `json:"exit_reason,omitempty"`
}

// ReportJSON is the wire representation of a Report.
type ReportJSON struct {
	RunID           string          `json:"run_id,omitempty"`
	Strategy        string          `json:"strategy"`
	Params          map[string]any  `json:"params,omitempty"`
	Symbol          string          `json:"symbol"`
	Interval        string          `json:"interval"`
	Timing          Timing          `json:"timing"`
	InitialCapital  float64         `json:"initial_capital"`
	FinalCapital    float64         `json:"final_capital"`
	EquityCurve     EquityCurveJSON `json:"equity_curve"`
	TotalReturn     float64         `json:"total_return"`
	MaxDrawdown     float64         `json:"max_drawdown"`
	NumTrades       int             `json:"num_trades"`
	WonTrades       int             `json:"won_trades"`
	LostTrades      int             `json:"lost_trades"`
	WinRate         float64         `json:"win_rate"`
	ProfitLossRatio float64         `json:"profit_loss_ratio"`
	TotalCommission float64         `json:"total_commission"`
	SharpeRatio     float64         `json:"sharpe_ratio"`
	TradeHistory    []TradeJSON     `json:"trade_history"`
	Skipped         map[string]int  `json:"skipped,omitempty"`
}

// Wire converts the report to its JSON shape, rounding money and
// percentages to two decimals.
func (r *Report) Wire() ReportJSON {
	out := ReportJSON{
		RunID:          r.RunID,
		Strategy:       r.Strategy,
		Params:         r.Params,
		Symbol:         r.Symbol,
		Interval:       r.Interval,
		Timing:         r.Timing,
		InitialCapital: round2(r.InitialCapital),
		FinalCapital:   round2(r.FinalCapital),
		EquityCurve: EquityCurveJSON{
			Labels: make([]string, len(r.EquityCurve)),
			Values: make([]float64, len(r.EquityCurve)),
		},
		TotalReturn:     r.TotalReturnPct,
		MaxDrawdown:     round2(r.MaxDrawdownPct),
		NumTrades:       r.NumTrades,
		WonTrades:       r.WonTrades,
		LostTrades:      r.LostTrades,
		WinRate:         r.WinRatePct,
		ProfitLossRatio: round2(r.ProfitLossRatio),
		TotalCommission: round2(r.TotalCommission),
		SharpeRatio:     round2(r.SharpeRatio),
		TradeHistory:    make([]TradeJSON, len(r.Trades)),
		Skipped:         r.Skipped,
	}
	for i, p := range r.EquityCurve {
		out.EquityCurve.Labels[i] = formatTime(p.Time)
		out.EquityCurve.Values[i] = round2(p.Equity)
	}
	for i, t := range r.Trades {
		out.TradeHistory[i] = TradeJSON{
			ID:         t.ID,
			EntryDate:  formatTime(t.EntryTime),
			ExitDate:   formatTime(t.ExitTime),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        round2(t.PnL),
			PnLPct:     round2(t.PnLPct),
			ExitReason: t.ExitReason,
		}
	}
	return out
}

// WriteJSON writes the wire form of r to w, indented.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Wire())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(LabelLayout)
}
