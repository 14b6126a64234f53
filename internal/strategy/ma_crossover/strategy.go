package ma_crossover

import (
	"fmt"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

const Name = "ma_crossover"

const (
	ParamFastPeriod = "fast_period"
	ParamSlowPeriod = "slow_period"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	risk       strategy.Risk
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		risk:       strategy.Risk{CapitalPct: strategy.DefaultRisk().CapitalPct},
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *MACrossover) Name() string {
	return Name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	p := cfg.Params
	if err := strategy.CheckKeys(p,
		strategy.ParamCapitalPct, strategy.ParamStopLoss, strategy.ParamTakeProfit,
		ParamFastPeriod, ParamSlowPeriod,
	); err != nil {
		return err
	}

	risk, err := strategy.ParseRisk(p, m.risk)
	if err != nil {
		return err
	}
	fast, err := strategy.Int(p, ParamFastPeriod, m.fastPeriod)
	if err != nil {
		return err
	}
	slow, err := strategy.Int(p, ParamSlowPeriod, m.slowPeriod)
	if err != nil {
		return err
	}
	if fast < 1 || slow <= fast {
		return core.Errorf(core.ErrConfigInvalid, "periods must satisfy 1 <= fast < slow, got %d/%d", fast, slow)
	}

	m.risk, m.fastPeriod, m.slowPeriod = risk, fast, slow
	return nil
}

func (m *MACrossover) Params() map[string]any {
	p := map[string]any{
		ParamFastPeriod: m.fastPeriod,
		ParamSlowPeriod: m.slowPeriod,
	}
	m.risk.Fill(p)
	return p
}

// OnBar buys on a golden cross while flat and sells on a death cross while
// long. Optional take profit and stop loss are checked after the cross.
func (m *MACrossover) OnBar(h strategy.History, snap strategy.Snapshot) strategy.Action {
	i := h.Index()
	if i < 1 {
		return strategy.NoAction()
	}

	currFast, prevFast := h.SMA(m.fastPeriod, i), h.SMA(m.fastPeriod, i-1)
	currSlow, prevSlow := h.SMA(m.slowPeriod, i), h.SMA(m.slowPeriod, i-1)
	ready := indicator.Valid(prevSlow) && indicator.Valid(prevFast)

	if !snap.IsLong() {
		// Golden Cross: fast crosses above slow
		if ready && prevFast <= prevSlow && currFast > currSlow {
			return strategy.Buy(m.risk.CapitalPct, strategy.ReasonCross).
				With("fast_ma", currFast).
				With("slow_ma", currSlow)
		}
		return strategy.NoAction()
	}

	// Death Cross: fast crosses below slow
	if ready && prevFast >= prevSlow && currFast < currSlow {
		return strategy.Sell(strategy.ReasonCross)
	}
	a, _ := m.risk.Exit(snap, h.Current().Close, m.risk.StopLoss)
	return a
}
