package backtest

import (
	"math"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
)

// Stats holds performance statistics
type Stats struct {
	TotalReturnPct  float64 `json:"total_return_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	NumTrades       int     `json:"num_trades"`
	WonTrades       int     `json:"won_trades"`
	LostTrades      int     `json:"lost_trades"`
	WinRatePct      float64 `json:"win_rate_pct"`
	ProfitLossRatio float64 `json:"profit_loss_ratio"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	TotalCommission float64 `json:"total_commission"`
	// SharpeRatio uses per-bar equity returns and is not annualised.
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// Summarize computes statistics from a finished run. It is a pure function
// of its inputs.
func Summarize(initialCapital, finalCapital float64, trades []broker.Trade, curve []EquityPoint) Stats {
	s := Stats{NumTrades: len(trades)}

	for _, t := range trades {
		s.TotalCommission += t.Commission
		switch {
		case t.PnL > 0:
			s.WonTrades++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.LostTrades++
			s.GrossLoss += t.PnL
		}
	}

	if initialCapital > 0 {
		s.TotalReturnPct = round2(100 * (finalCapital - initialCapital) / initialCapital)
	}
	if s.NumTrades > 0 {
		s.WinRatePct = round2(100 * float64(s.WonTrades) / float64(s.NumTrades))
	}
	if s.GrossLoss != 0 {
		s.ProfitLossRatio = s.GrossProfit / math.Abs(s.GrossLoss)
	}

	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Equity
	}
	s.MaxDrawdownPct = MaxDrawdown(values) * 100
	s.SharpeRatio = sharpeRatio(values)
	return s
}

// MaxDrawdown returns the largest fractional decline from a running peak.
func MaxDrawdown(values []float64) float64 {
	var maxDD, peak float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio computes mean over sample standard deviation of per-bar
// returns, assuming a zero risk-free rate.
func sharpeRatio(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev < 1e-12 {
		return 0
	}
	return mean / stdDev
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
