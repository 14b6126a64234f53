package broker

import (
	"maps"
	"math"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// cashEpsilon absorbs rounding when a buy spends exactly the available cash.
const cashEpsilon = 1e-9

// Broker is a single-instrument simulated account. It is the only place
// where cash and the position change. A Broker is not safe for concurrent
// use; each backtest run owns its own.
type Broker struct {
	initialCash float64
	cash        float64
	commission  float64

	position Position
	orders   []Order
	trades   []Trade

	totalCommission float64
	nextOrderID     int
	nextTradeID     int
}

// New creates a Broker holding initialCash with a fractional commission
// rate charged on the notional of every fill.
func New(initialCash, commission float64) (*Broker, error) {
	if !finitePositive(initialCash) {
		return nil, core.Errorf(core.ErrConfigInvalid, "initial capital must be positive, got %v", initialCash)
	}
	if math.IsNaN(commission) || commission < 0 || commission >= 1 {
		return nil, core.Errorf(core.ErrConfigInvalid, "commission must be in [0,1), got %v", commission)
	}
	return &Broker{
		initialCash: initialCash,
		cash:        initialCash,
		commission:  commission,
		nextOrderID: 1,
		nextTradeID: 1,
	}, nil
}

// Cash returns the free cash balance.
func (b *Broker) Cash() float64 { return b.cash }

// InitialCash returns the starting balance.
func (b *Broker) InitialCash() float64 { return b.initialCash }

// CommissionRate returns the fractional commission rate.
func (b *Broker) CommissionRate() float64 { return b.commission }

// TotalCommission returns commission paid so far on all fills.
func (b *Broker) TotalCommission() float64 { return b.totalCommission }

// Position returns a copy of the current position.
func (b *Broker) Position() Position {
	p := b.position
	p.EntryIndicators = maps.Clone(b.position.EntryIndicators)
	return p
}

// Equity returns cash plus the position marked at mark.
func (b *Broker) Equity(mark float64) float64 {
	if !b.position.IsOpen() {
		return b.cash
	}
	return b.cash + b.position.MarketValue(mark)
}

// Affordable returns the largest size whose cost including commission fits in cash.
func (b *Broker) Affordable(price float64) float64 {
	if !finitePositive(price) {
		return 0
	}
	return b.cash / (price * (1 + b.commission))
}

// CanAfford reports whether buying size at price keeps cash non-negative.
func (b *Broker) CanAfford(size, price float64) bool {
	cost := size * price * (1 + b.commission)
	return cost-b.cash <= cashEpsilon*math.Max(1, b.cash)
}

// Orders returns a copy of all filled orders in fill order.
func (b *Broker) Orders() []Order {
	out := make([]Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// Trades returns a copy of all completed trades in close order.
func (b *Broker) Trades() []Trade {
	out := make([]Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// Buy opens a long position of req.Size at req.Price, deducting
// size*price*(1+commission) from cash.
func (b *Broker) Buy(req OrderRequest) (Order, error) {
	req.Side = OrderSideBuy
	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	if b.position.IsOpen() {
		return Order{}, core.Errorf(ErrPositionOpen, "holding %.6f", b.position.Size)
	}

	notional := req.Size * req.Price
	fee := notional * b.commission
	cost := notional + fee
	if !b.CanAfford(req.Size, req.Price) {
		return Order{}, core.Errorf(ErrInsufficientFunds, "cost %.6f exceeds cash %.6f", cost, b.cash)
	}

	b.cash -= cost
	if b.cash < 0 {
		b.cash = 0
	}
	b.totalCommission += fee
	b.position = Position{
		Size:            req.Size,
		EntryPrice:      req.Price,
		EntryTime:       req.Time,
		EntryBar:        req.Bar,
		EntryCommission: fee,
		EntryIndicators: maps.Clone(req.Indicators),
	}

	return b.record(req, notional, fee), nil
}

// Sell closes the whole position at req.Price, crediting
// size*price*(1-commission), and returns the completed trade.
// Partial closes are rejected.
func (b *Broker) Sell(req OrderRequest) (Order, Trade, error) {
	req.Side = OrderSideSell
	if err := req.Validate(); err != nil {
		return Order{}, Trade{}, err
	}
	if !b.position.IsOpen() {
		return Order{}, Trade{}, ErrNoPosition
	}
	pos := b.position
	if req.Size == 0 {
		req.Size = pos.Size
	}
	if req.Size > pos.Size {
		return Order{}, Trade{}, core.Errorf(ErrInvalidOrder, "sell %.6f exceeds position %.6f", req.Size, pos.Size)
	}
	if req.Size < pos.Size {
		return Order{}, Trade{}, core.Errorf(ErrInvalidOrder, "partial close of %.6f/%.6f not supported", req.Size, pos.Size)
	}

	notional := req.Size * req.Price
	fee := notional * b.commission
	b.cash += notional - fee
	b.totalCommission += fee

	pnl := (req.Price - pos.EntryPrice) * pos.Size
	trade := Trade{
		ID:              b.nextTradeID,
		EntryTime:       pos.EntryTime,
		EntryPrice:      pos.EntryPrice,
		EntryBar:        pos.EntryBar,
		ExitTime:        req.Time,
		ExitPrice:       req.Price,
		ExitBar:         req.Bar,
		Quantity:        pos.Size,
		PnL:             pnl,
		PnLPct:          100 * pnl / (pos.EntryPrice * pos.Size),
		Commission:      pos.EntryCommission + fee,
		ExitReason:      req.Reason,
		EntryIndicators: pos.EntryIndicators,
	}
	b.nextTradeID++
	b.trades = append(b.trades, trade)
	b.position = Position{}

	return b.record(req, notional, fee), trade, nil
}

func (b *Broker) record(req OrderRequest, notional, fee float64) Order {
	o := Order{
		ID:         b.nextOrderID,
		Side:       req.Side,
		Size:       req.Size,
		Price:      req.Price,
		Notional:   notional,
		Commission: fee,
		Time:       req.Time,
		Bar:        req.Bar,
		Reason:     req.Reason,
		Status:     OrderStatusFilled,
	}
	b.nextOrderID++
	b.orders = append(b.orders, o)
	return o
}
