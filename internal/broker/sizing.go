package broker

import (
	"fmt"
	"math"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// FundsPolicy decides what happens when a requested buy costs more than the
// available cash.
type FundsPolicy string

const (
	// FundsClamp shrinks the order to what cash affords.
	FundsClamp FundsPolicy = "clamp"
	// FundsReject skips the order with ErrInsufficientFunds.
	FundsReject FundsPolicy = "reject"
)

// SizingConfig defines order sizing parameters.
type SizingConfig struct {
	// MinSize is the smallest tradable quantity.
	MinSize float64
	// Precision is the number of decimals sizes are rounded to.
	Precision int
	// Funds chooses between clamping and rejecting oversized buys.
	Funds FundsPolicy
}

// DefaultSizingConfig returns the reference sizing rules: 0.001 minimum,
// six decimals, clamp to cash.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		MinSize:   0.001,
		Precision: 6,
		Funds:     FundsClamp,
	}
}

// Validate checks the sizing configuration.
func (c SizingConfig) Validate() error {
	if c.MinSize <= 0 || math.IsNaN(c.MinSize) {
		return core.Errorf(core.ErrConfigInvalid, "min size must be positive, got %v", c.MinSize)
	}
	if c.Precision < 0 || c.Precision > 12 {
		return core.Errorf(core.ErrConfigInvalid, "size precision must be in [0,12], got %d", c.Precision)
	}
	switch c.Funds {
	case FundsClamp, FundsReject:
	default:
		return core.Errorf(core.ErrConfigInvalid, "unknown funds policy %q", c.Funds)
	}
	return nil
}

// SizeFor returns the buy size that spends fraction of equity at price,
// rounded to the configured precision and checked against the broker's cash.
func (c SizingConfig) SizeFor(b *Broker, fraction, equity, price float64) (float64, error) {
	if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
		return 0, core.Errorf(ErrInvalidOrder, "fraction must be in (0,1], got %v", fraction)
	}
	if !finitePositive(price) {
		return 0, core.Errorf(ErrInvalidOrder, "price must be positive, got %v", price)
	}
	if equity <= 0 {
		return 0, core.Errorf(ErrInsufficientFunds, "equity %.6f", equity)
	}

	size := floorTo(equity*fraction/price, c.Precision)
	if !b.CanAfford(size, price) {
		if c.Funds == FundsReject {
			return 0, core.Errorf(ErrInsufficientFunds, "size %.6f at %.6f needs more than cash %.6f", size, price, b.Cash())
		}
		size = floorTo(b.Affordable(price), c.Precision)
	}

	if size < c.MinSize {
		return 0, core.WrapError(ErrSizeTooSmall, fmt.Errorf("size %.8f below %.8f", size, c.MinSize))
	}
	return size, nil
}

// floorTo truncates v to decimals places. The slack keeps products such as
// 0.29*100 from losing a unit to float error; it is far below cashEpsilon.
func floorTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	x := v * p
	return math.Floor(x+1e-10*math.Max(1, x)) / p
}
