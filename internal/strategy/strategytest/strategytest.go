// Package strategytest provides fixtures for strategy tests.
package strategytest

import (
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// Start is the timestamp of the first fixture bar.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Series builds an hourly series whose bars open, high, low and close at the given prices.
func Series(closes ...float64) *core.Series {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:   Start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1,
		}
	}
	s, err := core.NewSeries("TEST", "1h", bars)
	if err != nil {
		panic(err)
	}
	return s
}

// Histories returns the view of s at every bar, sharing one indicator engine.
func Histories(s *core.Series) []strategy.History {
	ind := indicator.NewEngine(s.Closes())
	out := make([]strategy.History, s.Len())
	for i := range out {
		out[i] = strategy.NewHistory(s, ind, i)
	}
	return out
}

// Flat returns a snapshot with no position.
func Flat(equity float64) strategy.Snapshot {
	return strategy.Snapshot{Cash: equity, Equity: equity}
}

// Long returns a snapshot holding size units bought at entry, with the given
// entry indicator readings.
func Long(entry, size float64, indicators map[string]float64) strategy.Snapshot {
	return strategy.Snapshot{
		Equity: entry * size,
		Position: broker.Position{
			Size:            size,
			EntryPrice:      entry,
			EntryIndicators: indicators,
		},
	}
}
