package backtest

import (
	"math"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Row types in a trade list.
const (
	RowEntryLong = "Entry long"
	RowExitLong  = "Exit long"
)

// TradeListRow is one line of a broker-statement style trade list. Every
// trade produces an entry row followed by an exit row.
type TradeListRow struct {
	TradeID  int       `json:"trade_id"`
	Type     string    `json:"type"`
	Signal   string    `json:"signal"`
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	// PnL, PnLPct, RunUp and Drawdown are set on exit rows only.
	PnL      float64 `json:"pnl,omitempty"`
	PnLPct   float64 `json:"pnl_pct,omitempty"`
	RunUp    float64 `json:"run_up,omitempty"`
	Drawdown float64 `json:"drawdown,omitempty"`
	// CumulativePnL is the realised PnL after this row.
	CumulativePnL float64 `json:"cumulative_pnl"`
	// RSI is the entry reading when the strategy recorded one, else NaN.
	RSI float64 `json:"-"`
}

// TradeList expands trades into entry and exit rows. When series is not
// nil, exit rows carry the best and worst excursion during the trade,
// measured on bar highs and lows.
func TradeList(trades []broker.Trade, series *core.Series) []TradeListRow {
	rows := make([]TradeListRow, 0, 2*len(trades))
	var cumulative float64

	for _, t := range trades {
		rsi, ok := t.EntryIndicators["rsi"]
		if !ok {
			rsi = math.NaN()
		}
		rows = append(rows, TradeListRow{
			TradeID:       t.ID,
			Type:          RowEntryLong,
			Signal:        "Long",
			Time:          t.EntryTime,
			Price:         t.EntryPrice,
			Quantity:      t.Quantity,
			CumulativePnL: cumulative,
			RSI:           rsi,
		})

		cumulative += t.PnL
		exit := TradeListRow{
			TradeID:       t.ID,
			Type:          RowExitLong,
			Signal:        exitSignal(t.ExitReason),
			Time:          t.ExitTime,
			Price:         t.ExitPrice,
			Quantity:      t.Quantity,
			PnL:           t.PnL,
			PnLPct:        t.PnLPct,
			CumulativePnL: cumulative,
			RSI:           math.NaN(),
		}
		if series != nil {
			exit.RunUp, exit.Drawdown = excursion(t, series)
		}
		rows = append(rows, exit)
	}
	return rows
}

// excursion returns the largest unrealised gain and loss, in money, between
// entry and exit.
func excursion(t broker.Trade, series *core.Series) (runUp, drawdown float64) {
	if t.EntryBar < 0 || t.ExitBar >= series.Len() || t.ExitBar < t.EntryBar {
		return 0, 0
	}
	high, low := t.EntryPrice, t.EntryPrice
	for i := t.EntryBar; i <= t.ExitBar; i++ {
		b := series.At(i)
		high = math.Max(high, b.High)
		low = math.Min(low, b.Low)
	}
	return (high - t.EntryPrice) * t.Quantity, (t.EntryPrice - low) * t.Quantity
}

func exitSignal(reason string) string {
	switch reason {
	case "":
		return "Exit"
	case ReasonEndOfData:
		return "Close at end"
	}
	return reason
}
