// Package rsi_reversion implements RSI mean reversion: buy when RSI drops
// below a threshold, sell when it recovers above another.
package rsi_reversion

import (
	"fmt"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// Name is the registry name.
const Name = "rsi_reversion"

const (
	ParamPeriod        = "rsi_period"
	ParamBuyThreshold  = "rsi_buy_threshold"
	ParamSellThreshold = "rsi_sell_threshold"
)

// RSIReversion holds its parameters only; all position state comes from the snapshot.
type RSIReversion struct {
	risk          strategy.Risk
	period        int
	buyThreshold  float64
	sellThreshold float64
}

// New creates the strategy with defaults RSI(14), buy below 30, sell at 70.
func New() *RSIReversion {
	return &RSIReversion{
		risk:          strategy.DefaultRisk(),
		period:        14,
		buyThreshold:  30,
		sellThreshold: 70,
	}
}

func (s *RSIReversion) Name() string {
	return Name
}

func (s *RSIReversion) Description() string {
	return fmt.Sprintf("RSI(%d) mean reversion: buy below %.0f, sell at or above %.0f, TP %.2f%% / SL %.2f%%",
		s.period, s.buyThreshold, s.sellThreshold, s.risk.TakeProfit, s.risk.StopLoss)
}

func (s *RSIReversion) Init(cfg strategy.Config) error {
	p := cfg.Params
	if err := strategy.CheckKeys(p,
		strategy.ParamCapitalPct, strategy.ParamStopLoss, strategy.ParamTakeProfit,
		ParamPeriod, ParamBuyThreshold, ParamSellThreshold,
	); err != nil {
		return err
	}

	risk, err := strategy.ParseRisk(p, s.risk)
	if err != nil {
		return err
	}
	period, err := strategy.Int(p, ParamPeriod, s.period)
	if err != nil {
		return err
	}
	buy, err := strategy.Float(p, ParamBuyThreshold, s.buyThreshold)
	if err != nil {
		return err
	}
	sell, err := strategy.Float(p, ParamSellThreshold, s.sellThreshold)
	if err != nil {
		return err
	}

	if period < 2 {
		return core.Errorf(core.ErrConfigInvalid, "%s must be at least 2, got %d", ParamPeriod, period)
	}
	if buy <= 0 || sell > 100 || buy >= sell {
		return core.Errorf(core.ErrConfigInvalid, "thresholds must satisfy 0 < buy < sell <= 100, got %v/%v", buy, sell)
	}

	s.risk, s.period, s.buyThreshold, s.sellThreshold = risk, period, buy, sell
	return nil
}

func (s *RSIReversion) Params() map[string]any {
	p := map[string]any{
		ParamPeriod:        s.period,
		ParamBuyThreshold:  s.buyThreshold,
		ParamSellThreshold: s.sellThreshold,
	}
	s.risk.Fill(p)
	return p
}

// OnBar checks, in order: entry while flat; then RSI exit, take profit and
// stop loss while long. The first match wins.
func (s *RSIReversion) OnBar(h strategy.History, snap strategy.Snapshot) strategy.Action {
	rsi := h.RSI(s.period)
	price := h.Current().Close

	if !snap.IsLong() {
		if indicator.Valid(rsi) && rsi < s.buyThreshold {
			return strategy.Buy(s.risk.CapitalPct, strategy.ReasonSignal).With("rsi", rsi)
		}
		return strategy.NoAction()
	}

	if indicator.Valid(rsi) && rsi >= s.sellThreshold {
		return strategy.Sell(strategy.ReasonSignal)
	}
	if a, ok := s.risk.Exit(snap, price, s.risk.StopLoss); ok {
		return a
	}
	return strategy.NoAction()
}
