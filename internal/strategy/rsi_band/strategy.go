// Package rsi_band enters inside an RSI band and scales position size and
// stop loss by where in the band the entry happened.
package rsi_band

import (
	"fmt"
	"math"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

const Name = "rsi_band"

const (
	ParamPeriod          = "rsi_period"
	ParamLower           = "rsi_lower"
	ParamUpper           = "rsi_upper"
	ParamOptimalLow      = "rsi_optimal_low"
	ParamOptimalHigh     = "rsi_optimal_high"
	ParamDynamicCapital  = "dynamic_capital"
	ParamDynamicStopLoss = "dynamic_stop_loss"
)

// midBand splits the lower part of the band into a reduced and a neutral zone.
const midBand = 40.0

// RSIBand buys when RSI is in [lower, optimal_high); upper only caps
// optimal_high. Inside [optimal_low,
// optimal_high) it commits 20% more capital and uses a 20% tighter stop;
// in [lower, 40) it commits 20% less and uses a 20% wider stop.
type RSIBand struct {
	risk            strategy.Risk
	period          int
	lower           float64
	upper           float64
	optimalLow      float64
	optimalHigh     float64
	dynamicCapital  bool
	dynamicStopLoss bool
}

func New() *RSIBand {
	return &RSIBand{
		risk:            strategy.DefaultRisk(),
		period:          14,
		lower:           30,
		upper:           50,
		optimalLow:      45,
		optimalHigh:     50,
		dynamicCapital:  true,
		dynamicStopLoss: true,
	}
}

func (s *RSIBand) Name() string { return Name }

func (s *RSIBand) Description() string {
	return fmt.Sprintf("RSI(%d) band entry in [%.0f,%.0f), optimal [%.0f,%.0f), TP %.2f%% / SL %.2f%%",
		s.period, s.lower, s.upper, s.optimalLow, s.optimalHigh, s.risk.TakeProfit, s.risk.StopLoss)
}

func (s *RSIBand) Init(cfg strategy.Config) error {
	p := cfg.Params
	if err := strategy.CheckKeys(p,
		strategy.ParamCapitalPct, strategy.ParamStopLoss, strategy.ParamTakeProfit,
		ParamPeriod, ParamLower, ParamUpper, ParamOptimalLow, ParamOptimalHigh,
		ParamDynamicCapital, ParamDynamicStopLoss,
	); err != nil {
		return err
	}

	next := *s
	var err error
	if next.risk, err = strategy.ParseRisk(p, s.risk); err != nil {
		return err
	}
	if next.period, err = strategy.Int(p, ParamPeriod, s.period); err != nil {
		return err
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{ParamLower, &next.lower},
		{ParamUpper, &next.upper},
		{ParamOptimalLow, &next.optimalLow},
		{ParamOptimalHigh, &next.optimalHigh},
	} {
		if *f.dst, err = strategy.Float(p, f.key, *f.dst); err != nil {
			return err
		}
	}
	if next.dynamicCapital, err = strategy.Bool(p, ParamDynamicCapital, s.dynamicCapital); err != nil {
		return err
	}
	if next.dynamicStopLoss, err = strategy.Bool(p, ParamDynamicStopLoss, s.dynamicStopLoss); err != nil {
		return err
	}

	if next.period < 2 {
		return core.Errorf(core.ErrConfigInvalid, "%s must be at least 2, got %d", ParamPeriod, next.period)
	}
	if !(0 <= next.lower && next.lower < next.upper && next.upper <= 100) {
		return core.Errorf(core.ErrConfigInvalid, "band must satisfy 0 <= lower < upper <= 100, got [%v,%v)", next.lower, next.upper)
	}
	if !(next.lower <= next.optimalLow && next.optimalLow < next.optimalHigh && next.optimalHigh <= next.upper) {
		return core.Errorf(core.ErrConfigInvalid, "optimal band [%v,%v) must sit inside [%v,%v)",
			next.optimalLow, next.optimalHigh, next.lower, next.upper)
	}

	*s = next
	return nil
}

func (s *RSIBand) Params() map[string]any {
	p := map[string]any{
		ParamPeriod:          s.period,
		ParamLower:           s.lower,
		ParamUpper:           s.upper,
		ParamOptimalLow:      s.optimalLow,
		ParamOptimalHigh:     s.optimalHigh,
		ParamDynamicCapital:  s.dynamicCapital,
		ParamDynamicStopLoss: s.dynamicStopLoss,
	}
	s.risk.Fill(p)
	return p
}

// CapitalPct returns the fraction of equity to commit at rsi, capped at 1.
func (s *RSIBand) CapitalPct(rsi float64) float64 {
	if !s.dynamicCapital {
		return s.risk.CapitalPct
	}
	return math.Min(1, s.risk.CapitalPct*s.scale(rsi, 1.2, 0.8))
}

// StopLoss returns the stop loss percentage for a position entered at rsi.
func (s *RSIBand) StopLoss(rsi float64) float64 {
	if !s.dynamicStopLoss {
		return s.risk.StopLoss
	}
	return s.risk.StopLoss * s.scale(rsi, 0.8, 1.2)
}

func (s *RSIBand) scale(rsi, optimal, low float64) float64 {
	switch {
	case s.optimalLow <= rsi && rsi < s.optimalHigh:
		return optimal
	case midBand <= rsi && rsi < s.optimalLow:
		return 1
	case s.lower <= rsi && rsi < midBand:
		return low
	}
	return 1
}

// InBand reports whether a flat strategy buys at rsi.
func (s *RSIBand) InBand(rsi float64) bool {
	return s.lower <= rsi && rsi < s.optimalHigh
}

func (s *RSIBand) OnBar(h strategy.History, snap strategy.Snapshot) strategy.Action {
	if snap.IsLong() {
		stop := s.risk.StopLoss
		if entryRSI, ok := snap.Position.Indicator("rsi"); ok {
			stop = s.StopLoss(entryRSI)
		}
		a, _ := s.risk.Exit(snap, h.Current().Close, stop)
		return a
	}

	rsi := h.RSI(s.period)
	if indicator.Valid(rsi) && s.InBand(rsi) {
		return strategy.Buy(s.CapitalPct(rsi), strategy.ReasonSignal).With("rsi", rsi)
	}
	return strategy.NoAction()
}
