package strategy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

func TestFloat(t *testing.T) {
	params := map[string]any{
		"f64":   1.5,
		"int":   3,
		"i64":   int64(4),
		"num":   json.Number("2.25"),
		"str":   " 7.5 ",
		"bad":   "abc",
		"slice": []int{1},
	}

	tests := []struct {
		key  string
		want float64
		err  bool
	}{
		{"f64", 1.5, false},
		{"int", 3, false},
		{"i64", 4, false},
		{"num", 2.25, false},
		{"str", 7.5, false},
		{"missing", 9, false},
		{"bad", 0, true},
		{"slice", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Float(params, tt.key, 9)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrConfigInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntAndBool(t *testing.T) {
	params := map[string]any{"p": 14.0, "frac": 1.5, "on": "true", "off": false, "junk": 3}

	v, err := Int(params, "p", 0)
	require.NoError(t, err)
	assert.Equal(t, 14, v)

	_, err = Int(params, "frac", 0)
	assert.Error(t, err)

	b, err := Bool(params, "on", false)
	require.NoError(t, err)
	assert.True(t, b)

	b, err = Bool(params, "off", true)
	require.NoError(t, err)
	assert.False(t, b)

	b, err = Bool(params, "absent", true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = Bool(params, "junk", false)
	assert.Error(t, err)
}

func TestCheckKeys(t *testing.T) {
	assert.NoError(t, CheckKeys(map[string]any{"a": 1}, "a", "b"))
	assert.NoError(t, CheckKeys(nil, "a"))

	err := CheckKeys(map[string]any{"z": 1, "y": 2, "a": 3}, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameters: y, z")
}

func TestParseRisk(t *testing.T) {
	r, err := ParseRisk(nil, DefaultRisk())
	require.NoError(t, err)
	assert.Equal(t, DefaultRisk(), r)

	r, err = ParseRisk(map[string]any{"capital_pct": "0.5", "stop_loss": 2, "take_profit": 0}, DefaultRisk())
	require.NoError(t, err)
	assert.Equal(t, Risk{CapitalPct: 0.5, StopLoss: 2, TakeProfit: 0}, r)

	for _, p := range []map[string]any{
		{"capital_pct": 0},
		{"capital_pct": 1.01},
		{"capital_pct": -0.1},
		{"stop_loss": -1},
		{"stop_loss": 100},
		{"take_profit": -2},
	} {
		_, err := ParseRisk(p, DefaultRisk())
		assert.True(t, errors.Is(err, core.ErrConfigInvalid), "%v", p)
	}
}

func TestRisk_Exit(t *testing.T) {
	r := Risk{CapitalPct: 1, StopLoss: 2, TakeProfit: 5}
	long := Snapshot{Position: longPosition(100)}

	a, ok := r.Exit(long, 106, r.StopLoss)
	assert.True(t, ok)
	assert.Equal(t, ReasonTakeProfit, a.Reason)

	a, ok = r.Exit(long, 97.5, r.StopLoss)
	assert.True(t, ok)
	assert.Equal(t, ReasonStopLoss, a.Reason)

	_, ok = r.Exit(long, 101, r.StopLoss)
	assert.False(t, ok)

	_, ok = r.Exit(Snapshot{}, 200, r.StopLoss)
	assert.False(t, ok, "flat never exits")

	_, ok = Risk{CapitalPct: 1}.Exit(long, 1, 0)
	assert.False(t, ok, "zero disables both exits")
}

func TestParsePairs(t *testing.T) {
	p, err := ParsePairs([]string{"rsi_period=10", " capital_pct = 0.5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rsi_period": "10", "capital_pct": "0.5"}, p)

	_, err = ParsePairs([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParsePairs([]string{"=1"})
	assert.Error(t, err)
}

func TestAction(t *testing.T) {
	assert.True(t, NoAction().IsNone())
	assert.True(t, Action{}.IsNone())

	a := Buy(0.5, ReasonSignal)
	b := a.With("rsi", 25)
	c := b.With("ma", 3)
	assert.Nil(t, a.Indicators)
	assert.Equal(t, map[string]float64{"rsi": 25}, b.Indicators)
	assert.Equal(t, map[string]float64{"rsi": 25, "ma": 3}, c.Indicators)
	assert.Equal(t, core.ActionBuy, c.Type)
	assert.Equal(t, core.ActionSell, Sell("x").Type)
}
