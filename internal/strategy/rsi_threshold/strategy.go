// Package rsi_threshold buys whenever RSI is under a single threshold and
// leaves exits to take profit and stop loss.
package rsi_threshold

import (
	"fmt"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

const Name = "rsi_threshold"

const (
	ParamPeriod       = "rsi_period"
	ParamBuyThreshold = "rsi_buy_threshold"
)

type RSIThreshold struct {
	risk         strategy.Risk
	period       int
	buyThreshold float64
}

func New() *RSIThreshold {
	return &RSIThreshold{
		risk:         strategy.DefaultRisk(),
		period:       14,
		buyThreshold: 45,
	}
}

func (s *RSIThreshold) Name() string { return Name }

func (s *RSIThreshold) Description() string {
	return fmt.Sprintf("RSI(%d) below %.0f entry with TP %.2f%% / SL %.2f%% exits",
		s.period, s.buyThreshold, s.risk.TakeProfit, s.risk.StopLoss)
}

func (s *RSIThreshold) Init(cfg strategy.Config) error {
	p := cfg.Params
	if err := strategy.CheckKeys(p,
		strategy.ParamCapitalPct, strategy.ParamStopLoss, strategy.ParamTakeProfit,
		ParamPeriod, ParamBuyThreshold,
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
	if period < 2 {
		return core.Errorf(core.ErrConfigInvalid, "%s must be at least 2, got %d", ParamPeriod, period)
	}
	if buy <= 0 || buy > 100 {
		return core.Errorf(core.ErrConfigInvalid, "%s must be in (0,100], got %v", ParamBuyThreshold, buy)
	}
	if risk.TakeProfit == 0 && risk.StopLoss == 0 {
		return core.Errorf(core.ErrConfigInvalid, "%s needs a take_profit or stop_loss to exit", Name)
	}

	s.risk, s.period, s.buyThreshold = risk, period, buy
	return nil
}

func (s *RSIThreshold) Params() map[string]any {
	p := map[string]any{
		ParamPeriod:       s.period,
		ParamBuyThreshold: s.buyThreshold,
	}
	s.risk.Fill(p)
	return p
}

func (s *RSIThreshold) OnBar(h strategy.History, snap strategy.Snapshot) strategy.Action {
	if snap.IsLong() {
		a, _ := s.risk.Exit(snap, h.Current().Close, s.risk.StopLoss)
		return a
	}
	rsi := h.RSI(s.period)
	if indicator.Valid(rsi) && rsi < s.buyThreshold {
		return strategy.Buy(s.risk.CapitalPct, strategy.ReasonSignal).With("rsi", rsi)
	}
	return strategy.NoAction()
}
