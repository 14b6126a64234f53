package rsi_threshold

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/strategytest"
)

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 6*math.Sin(float64(i)/3) + 0.05*float64(i)
	}
	return out
}

func TestRSIThreshold_BuysBelowThreshold(t *testing.T) {
	closes := wave(120)
	histories := strategytest.Histories(strategytest.Series(closes...))
	rsi := indicator.RSI(closes, 14)

	s := New()
	require.NoError(t, s.Init(strategy.Config{}))

	buys := 0
	for i, h := range histories {
		a := s.OnBar(h, strategytest.Flat(1000))
		want := indicator.Valid(rsi[i]) && rsi[i] < 45
		assert.Equal(t, want, a.Type == core.ActionBuy, "bar %d rsi %.2f", i, rsi[i])
		if want {
			buys++
		}
	}
	assert.Greater(t, buys, 0)
}

func TestRSIThreshold_ExitsOnlyOnRiskLevels(t *testing.T) {
	h := strategytest.Histories(strategytest.Series(101.5))[0]
	s := New()
	require.NoError(t, s.Init(strategy.Config{}))

	assert.Equal(t, strategy.ReasonTakeProfit, s.OnBar(h, strategytest.Long(100, 1, nil)).Reason)
	assert.Equal(t, strategy.ReasonStopLoss, s.OnBar(h, strategytest.Long(103, 1, nil)).Reason)
	assert.True(t, s.OnBar(h, strategytest.Long(101, 1, nil)).IsNone())
}

func TestRSIThreshold_InitRejects(t *testing.T) {
	for _, p := range []map[string]any{
		{"rsi_buy_threshold": 0},
		{"rsi_buy_threshold": 101},
		{"take_profit": 0, "stop_loss": 0},
		{"rsi_sell_threshold": 70},
	} {
		err := New().Init(strategy.Config{Params: p})
		assert.True(t, errors.Is(err, core.ErrConfigInvalid), "%v", p)
	}
}
