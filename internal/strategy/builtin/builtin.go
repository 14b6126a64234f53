// Package builtin registers the strategies shipped with llmtrader.
package builtin

import (
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/strategy"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/ma_crossover"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/rsi_band"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/rsi_reversion"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/rsi_threshold"
)

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(func() strategy.Strategy { return rsi_reversion.New() })
	r.Register(func() strategy.Strategy { return rsi_threshold.New() })
	r.Register(func() strategy.Strategy { return rsi_band.New() })
	r.Register(func() strategy.Strategy { return ma_crossover.New(5, 20) })
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry(logger *zap.Logger) *strategy.Registry {
	r := strategy.NewRegistry(logger)
	Register(r)
	return r
}
