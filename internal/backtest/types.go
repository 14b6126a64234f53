package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Timing selects the price an order generated on bar i fills at.
type Timing string

const (
	// TimingSameBarClose fills at the close of the signal bar.
	TimingSameBarClose Timing = "close"
	// TimingNextBarOpen fills at the open of the bar after the signal.
	TimingNextBarOpen Timing = "open"
)

// ParseTiming accepts "close" or "open"; empty means close.
func ParseTiming(s string) (Timing, error) {
	switch Timing(s) {
	case "", TimingSameBarClose:
		return TimingSameBarClose, nil
	case TimingNextBarOpen:
		return TimingNextBarOpen, nil
	}
	return "", core.Errorf(core.ErrConfigInvalid, "unknown execution timing %q", s)
}

// Config holds the run parameters shared by every strategy.
type Config struct {
	InitialCapital float64
	Commission     float64
	Timing         Timing
	Sizing         broker.SizingConfig
}

// DefaultConfig returns 10000 capital, 0.04% commission, same-bar-close fills.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 10000,
		Commission:     0.0004,
		Timing:         TimingSameBarClose,
		Sizing:         broker.DefaultSizingConfig(),
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return core.Errorf(core.ErrConfigInvalid, "initial capital must be positive, got %v", c.InitialCapital)
	}
	if math.IsNaN(c.Commission) || c.Commission < 0 || c.Commission >= 1 {
		return core.Errorf(core.ErrConfigInvalid, "commission must be in [0,1), got %v", c.Commission)
	}
	if _, err := ParseTiming(string(c.Timing)); err != nil {
		return err
	}
	return c.Sizing.Validate()
}

// EquityPoint is the account value after processing one bar.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Report is the complete, immutable outcome of one run.
type Report struct {
	RunID    string         `json:"run_id,omitempty"`
	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params,omitempty"`
	Symbol   string         `json:"symbol"`
	Interval string         `json:"interval"`
	Timing   Timing         `json:"timing"`
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	Bars     int            `json:"bars"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	Stats

	Trades      []broker.Trade `json:"trades"`
	Orders      []broker.Order `json:"orders"`
	EquityCurve []EquityPoint  `json:"equity_curve"`
	// Skipped counts actions dropped during the run, by reason.
	Skipped map[string]int `json:"skipped,omitempty"`
}

func (r *Report) String() string {
	return fmt.Sprintf("%s %s %s: %d trades, return %.2f%%, drawdown %.2f%%, win rate %.2f%%, final %.2f",
		r.Strategy, r.Symbol, r.Interval, r.NumTrades, r.TotalReturnPct, r.MaxDrawdownPct, r.WinRatePct, r.FinalCapital)
}
