package backtest

import (
	"fmt"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
)

// Band is a half-open indicator range [Low, High).
type Band struct {
	Low  float64
	High float64
}

func (b Band) String() string {
	return fmt.Sprintf("%g-%g", b.Low, b.High)
}

// DefaultRSIBands are the entry RSI ranges used for band analysis.
var DefaultRSIBands = []Band{{0, 30}, {30, 40}, {40, 45}, {45, 50}, {50, 55}}

// BandStats summarises trades whose entry reading fell in one band.
type BandStats struct {
	Band       string  `json:"band"`
	Count      int     `json:"count"`
	TotalPnL   float64 `json:"total_pnl"`
	AvgPnLPct  float64 `json:"avg_pnl_pct"`
	WinRatePct float64 `json:"win_rate_pct"`
}

// BandAnalysis groups trades by the entry reading of indicator into bands,
// in band order. Trades with a reading outside every band are collected in
// a final "other" row; trades with no reading are ignored. Bands with no
// trades are still reported with a zero count.
func BandAnalysis(trades []broker.Trade, indicator string, bands []Band) []BandStats {
	type acc struct {
		count, won int
		pnl, pct   float64
	}
	accs := make([]acc, len(bands)+1)

	for _, t := range trades {
		v, ok := t.EntryIndicators[indicator]
		if !ok {
			continue
		}
		idx := len(bands)
		for i, b := range bands {
			if b.Low <= v && v < b.High {
				idx = i
				break
			}
		}
		a := &accs[idx]
		a.count++
		a.pnl += t.PnL
		a.pct += t.PnLPct
		if t.IsWin() {
			a.won++
		}
	}

	out := make([]BandStats, 0, len(accs))
	for i, a := range accs {
		name := "other"
		if i < len(bands) {
			name = bands[i].String()
		} else if a.count == 0 {
			continue
		}
		s := BandStats{Band: name, Count: a.count, TotalPnL: a.pnl}
		if a.count > 0 {
			s.AvgPnLPct = a.pct / float64(a.count)
			s.WinRatePct = 100 * float64(a.won) / float64(a.count)
		}
		out = append(out, s)
	}
	return out
}
