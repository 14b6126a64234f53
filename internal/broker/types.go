// Package broker provides the simulated account ledger used by backtests:
// cash, a single long position, commission accounting and the order and
// trade records it produces.
package broker

import (
	"fmt"
	"math"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Broker-specific errors. They share codes with core so callers can match
// either with errors.Is.
var (
	// ErrInsufficientFunds indicates a buy whose cost exceeds available cash.
	ErrInsufficientFunds = core.ErrInsufficientFunds
	// ErrNoPosition indicates a sell while flat.
	ErrNoPosition = core.ErrNoPosition
	// ErrPositionOpen indicates a buy while already long.
	ErrPositionOpen = core.ErrPositionOpen
	// ErrSizeTooSmall indicates a size under the tradable minimum.
	ErrSizeTooSmall = core.ErrSizeTooSmall
	// ErrInvalidOrder indicates a malformed order request.
	ErrInvalidOrder = core.ErrInvalidOrder
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	// OrderSideBuy represents a buy order.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell represents a sell order.
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the outcome of an order.
type OrderStatus string

const (
	// OrderStatusFilled indicates the order was executed in full.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusRejected indicates the ledger refused the order.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest is a market order to be filled at Price.
type OrderRequest struct {
	Side OrderSide `json:"side"`
	// Size is the quantity to trade. For sells, zero means the whole position.
	Size  float64   `json:"size"`
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
	// Bar is the index of the bar the order fills on.
	Bar    int    `json:"bar"`
	Reason string `json:"reason,omitempty"`
	// Indicators carries indicator readings at decision time, kept on the
	// position and copied to the resulting trade.
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return core.Errorf(ErrInvalidOrder, "unknown side %q", r.Side)
	}
	if !finitePositive(r.Price) {
		return core.Errorf(ErrInvalidOrder, "price must be positive, got %v", r.Price)
	}
	if math.IsNaN(r.Size) || math.IsInf(r.Size, 0) || r.Size < 0 {
		return core.Errorf(ErrInvalidOrder, "invalid size %v", r.Size)
	}
	if r.Side == OrderSideBuy && r.Size == 0 {
		return core.Errorf(ErrInvalidOrder, "buy size must be positive")
	}
	return nil
}

// Order is a filled order record.
type Order struct {
	ID         int         `json:"id"`
	Side       OrderSide   `json:"side"`
	Size       float64     `json:"size"`
	Price      float64     `json:"price"`
	Notional   float64     `json:"notional"`
	Commission float64     `json:"commission"`
	Time       time.Time   `json:"time"`
	Bar        int         `json:"bar"`
	Reason     string      `json:"reason,omitempty"`
	Status     OrderStatus `json:"status"`
}

// Position is the single open holding. A zero Size means flat.
type Position struct {
	Size            float64            `json:"size"`
	EntryPrice      float64            `json:"entry_price"`
	EntryTime       time.Time          `json:"entry_time"`
	EntryBar        int                `json:"entry_bar"`
	EntryCommission float64            `json:"entry_commission"`
	EntryIndicators map[string]float64 `json:"entry_indicators,omitempty"`
}

// IsOpen returns true if a position is held.
func (p Position) IsOpen() bool {
	return p.Size > 0
}

// MarketValue returns the position value at mark.
func (p Position) MarketValue(mark float64) float64 {
	return p.Size * mark
}

// UnrealizedPnL returns the gross profit of closing at mark.
func (p Position) UnrealizedPnL(mark float64) float64 {
	return (mark - p.EntryPrice) * p.Size
}

// Indicator returns the entry reading for name, if recorded.
func (p Position) Indicator(name string) (float64, bool) {
	v, ok := p.EntryIndicators[name]
	return v, ok
}

// Trade is a completed round trip from entry to flat.
type Trade struct {
	ID         int       `json:"id"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	EntryBar   int       `json:"entry_bar"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	ExitBar    int       `json:"exit_bar"`
	Quantity   float64   `json:"quantity"`
	// PnL is gross of commission: (exit - entry) * quantity.
	PnL float64 `json:"pnl"`
	// PnLPct is 100 * PnL / (entry * quantity).
	PnLPct float64 `json:"pnl_pct"`
	// Commission is the sum of entry and exit commission.
	Commission      float64            `json:"commission"`
	ExitReason      string             `json:"exit_reason,omitempty"`
	EntryIndicators map[string]float64 `json:"entry_indicators,omitempty"`
}

// NetPnL returns PnL after commission.
func (t Trade) NetPnL() float64 {
	return t.PnL - t.Commission
}

// IsWin returns true if the gross PnL is positive.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Duration returns the holding period.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

func (t Trade) String() string {
	return fmt.Sprintf("#%d %s@%.4f -> %s@%.4f qty=%.6f pnl=%.4f",
		t.ID, t.EntryTime.Format(time.RFC3339), t.EntryPrice,
		t.ExitTime.Format(time.RFC3339), t.ExitPrice, t.Quantity, t.PnL)
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
