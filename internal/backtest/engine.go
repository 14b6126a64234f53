package backtest

import (
	"context"
	"errors"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// Skip reasons that do not come from the broker.
const (
	SkipFinalBar  = "final_bar"
	SkipNoNextBar = "no_next_bar"
	SkipUnknown   = "unknown_action"

	// ReasonEndOfData marks the engine's liquidation of a position still
	// open after the last bar.
	ReasonEndOfData = "end_of_data"
)

// Engine runs strategies over price series. It holds configuration only;
// every Run starts from a fresh broker, so an Engine may run concurrently.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an engine after validating cfg.
func New(cfg Config, logger ...*zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Engine{cfg: cfg, logger: l}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run walks series once in time order, asking strat for a decision on every
// bar and executing it against a new broker. Any position still open after
// the last bar is sold at its close. On error, including cancellation
// between bars, no report is returned.
func (e *Engine) Run(ctx context.Context, series *core.Series, strat strategy.Strategy) (*Report, error) {
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	return e.run(ctx, series, indicator.NewEngine(series.Closes()), strat)
}

// run is Run with a caller-supplied indicator engine, shared by sweeps.
func (e *Engine) run(ctx context.Context, series *core.Series, ind *indicator.Engine, strat strategy.Strategy) (*Report, error) {
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	if strat == nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "nil strategy")
	}

	b, err := broker.New(e.cfg.InitialCapital, e.cfg.Commission)
	if err != nil {
		return nil, err
	}

	r := &runState{
		engine:  e,
		broker:  b,
		last:    series.Len() - 1,
		skipped: make(map[string]int),
		logger: e.logger.With(
			zap.String("strategy", strat.Name()),
			zap.String("symbol", series.Symbol()),
		),
	}
	r.logger.Info("backtest started",
		zap.Int("bars", series.Len()),
		zap.String("timing", string(e.cfg.Timing)),
		zap.Float64("initial_capital", e.cfg.InitialCapital),
		zap.Float64("commission", e.cfg.Commission),
	)

	curve := make([]EquityPoint, 0, series.Len())
	var pending *strategy.Action

	for i := 0; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			r.logger.Info("backtest cancelled", zap.Int("bar", i), zap.Error(err))
			return nil, core.WrapError(core.ErrCancelled, err)
		}
		bar := series.At(i)

		if pending != nil {
			r.execute(*pending, i, bar, bar.Open)
			pending = nil
		}

		snap := strategy.Snapshot{
			Index:    i,
			Time:     bar.Time,
			Cash:     b.Cash(),
			Equity:   b.Equity(bar.Close),
			Position: b.Position(),
		}
		act := strat.OnBar(strategy.NewHistory(series, ind, i), snap)

		if !act.IsNone() {
			switch {
			case e.cfg.Timing != TimingNextBarOpen:
				r.execute(act, i, bar, bar.Close)
			case i == r.last:
				r.skip(i, bar, act, SkipNoNextBar, nil)
			default:
				a := act
				pending = &a
			}
		}

		curve = append(curve, EquityPoint{Time: bar.Time, Equity: b.Equity(bar.Close)})
	}

	last := series.Last()
	if b.Position().IsOpen() {
		_, trade, err := b.Sell(broker.OrderRequest{
			Price:  last.Close,
			Time:   last.Time,
			Bar:    r.last,
			Reason: ReasonEndOfData,
		})
		if err != nil {
			return nil, err
		}
		r.logger.Debug("position liquidated at end of data", zap.Int("trade", trade.ID), zap.Float64("pnl", trade.PnL))
		curve[len(curve)-1].Equity = b.Equity(last.Close)
	}

	final := b.Equity(last.Close)
	trades := b.Trades()
	report := &Report{
		Strategy:       strat.Name(),
		Params:         maps.Clone(strat.Params()),
		Symbol:         series.Symbol(),
		Interval:       series.Interval(),
		Timing:         e.cfg.Timing,
		Start:          series.First().Time,
		End:            last.Time,
		Bars:           series.Len(),
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   final,
		Stats:          Summarize(e.cfg.InitialCapital, final, trades, curve),
		Trades:         trades,
		Orders:         b.Orders(),
		EquityCurve:    curve,
		Skipped:        r.skipped,
	}
	if report.Timing == "" {
		report.Timing = TimingSameBarClose
	}

	r.logger.Info("backtest finished",
		zap.Int("trades", report.NumTrades),
		zap.Float64("final_capital", report.FinalCapital),
		zap.Float64("total_return_pct", report.TotalReturnPct),
		zap.Float64("max_drawdown_pct", report.MaxDrawdownPct),
		zap.Any("skipped", r.skipped),
	)
	return report, nil
}

// runState is the mutable state of one Run.
type runState struct {
	engine  *Engine
	broker  *broker.Broker
	last    int
	skipped map[string]int
	logger  *zap.Logger
}

// execute applies act at price on bar i. Execution anomalies are logged
// and counted, never returned.
func (r *runState) execute(act strategy.Action, i int, bar core.Bar, price float64) {
	switch act.Type {
	case core.ActionBuy:
		if i == r.last {
			r.skip(i, bar, act, SkipFinalBar, nil)
			return
		}
		if r.broker.Position().IsOpen() {
			r.skip(i, bar, act, "", broker.ErrPositionOpen)
			return
		}
		size, err := r.engine.cfg.Sizing.SizeFor(r.broker, act.Fraction, r.broker.Equity(price), price)
		if err != nil {
			r.skip(i, bar, act, "", err)
			return
		}
		order, err := r.broker.Buy(broker.OrderRequest{
			Size:       size,
			Price:      price,
			Time:       bar.Time,
			Bar:        i,
			Reason:     act.Reason,
			Indicators: act.Indicators,
		})
		if err != nil {
			r.skip(i, bar, act, "", err)
			return
		}
		r.logger.Debug("buy filled",
			zap.Int("bar", i),
			zap.Float64("size", order.Size),
			zap.Float64("price", order.Price),
			zap.Float64("commission", order.Commission),
		)

	case core.ActionSell:
		_, trade, err := r.broker.Sell(broker.OrderRequest{
			Price:  price,
			Time:   bar.Time,
			Bar:    i,
			Reason: act.Reason,
		})
		if err != nil {
			r.skip(i, bar, act, "", err)
			return
		}
		r.logger.Debug("sell filled",
			zap.Int("bar", i),
			zap.Int("trade", trade.ID),
			zap.Float64("price", trade.ExitPrice),
			zap.Float64("pnl", trade.PnL),
			zap.String("reason", trade.ExitReason),
		)

	default:
		r.skip(i, bar, act, SkipUnknown, nil)
	}
}

func (r *runState) skip(i int, bar core.Bar, act strategy.Action, reason string, err error) {
	if reason == "" {
		reason = skipReason(err)
	}
	r.skipped[reason]++
	r.logger.Warn("action skipped",
		zap.Int("bar", i),
		zap.Time("time", bar.Time),
		zap.String("action", string(act.Type)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func skipReason(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return strings.ToLower(ce.Code)
	}
	return "error"
}
