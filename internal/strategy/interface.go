package strategy

import (
	"maps"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Exit and entry reasons recorded on orders and trades.
const (
	ReasonSignal     = "signal"
	ReasonTakeProfit = "take_profit"
	ReasonStopLoss   = "stop_loss"
	ReasonCross      = "cross"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Snapshot is the read-only account state handed to a strategy on each bar.
// Equity is marked at the current bar's close.
type Snapshot struct {
	Index    int
	Time     time.Time
	Cash     float64
	Equity   float64
	Position broker.Position
}

// IsLong returns true if a position is open.
func (s Snapshot) IsLong() bool {
	return s.Position.IsOpen()
}

// Action is a strategy decision for one bar.
type Action struct {
	Type core.Action
	// Fraction of equity to commit on a buy, in (0,1].
	Fraction float64
	Reason   string
	// Indicators are readings worth keeping with the resulting position.
	Indicators map[string]float64
}

// NoAction returns a hold decision.
func NoAction() Action {
	return Action{Type: core.ActionHold}
}

// Buy returns a decision to open a position with fraction of equity.
func Buy(fraction float64, reason string) Action {
	return Action{Type: core.ActionBuy, Fraction: fraction, Reason: reason}
}

// Sell returns a decision to close the whole position.
func Sell(reason string) Action {
	return Action{Type: core.ActionSell, Reason: reason}
}

// With returns a copy of a carrying the named indicator reading.
func (a Action) With(name string, value float64) Action {
	a.Indicators = maps.Clone(a.Indicators)
	if a.Indicators == nil {
		a.Indicators = make(map[string]float64, 1)
	}
	a.Indicators[name] = value
	return a
}

// IsNone returns true for a hold decision.
func (a Action) IsNone() bool {
	return a.Type == "" || a.Type == core.ActionHold
}

// Strategy defines the interface for trading strategies.
//
// OnBar must depend only on the history, the snapshot and the strategy's
// own parameters. Init is called once before a run with the user parameters;
// missing keys take defaults and unknown keys are rejected.
type Strategy interface {
	Name() string
	Description() string
	Init(cfg Config) error
	// Params returns the effective parameters after Init.
	Params() map[string]any
	OnBar(h History, s Snapshot) Action
}
