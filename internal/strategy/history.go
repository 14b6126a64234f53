package strategy

import (
	"fmt"
	"math"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
)

// History is a view of a price series that ends at the current bar.
// Reads past the current bar panic, so a strategy cannot look ahead.
type History struct {
	series *core.Series
	ind    *indicator.Engine
	index  int
}

// NewHistory returns the view of series up to and including bar index.
// ind must have been built over the same series.
func NewHistory(series *core.Series, ind *indicator.Engine, index int) History {
	return History{series: series, ind: ind, index: index}
}

// Len returns the number of visible bars.
func (h History) Len() int { return h.index + 1 }

// Index returns the current bar index.
func (h History) Index() int { return h.index }

// Bar returns visible bar i.
func (h History) Bar(i int) core.Bar {
	h.check(i)
	return h.series.At(i)
}

// Current returns the bar being decided on.
func (h History) Current() core.Bar {
	return h.series.At(h.index)
}

// Close returns the close of visible bar i.
func (h History) Close(i int) float64 {
	return h.Bar(i).Close
}

// IndicatorAt returns the indicator value at visible bar i, or NaN while
// warming up.
func (h History) IndicatorAt(kind indicator.Kind, period, i int) float64 {
	h.check(i)
	v, err := h.ind.Value(kind, period, i)
	if err != nil {
		return math.NaN()
	}
	return v
}

// RSI returns RSI(period) at the current bar.
func (h History) RSI(period int) float64 {
	return h.IndicatorAt(indicator.KindRSI, period, h.index)
}

// SMA returns SMA(period) at visible bar i.
func (h History) SMA(period, i int) float64 {
	return h.IndicatorAt(indicator.KindSMA, period, i)
}

func (h History) check(i int) {
	if i < 0 || i > h.index {
		panic(fmt.Sprintf("strategy: bar %d not visible at index %d", i, h.index))
	}
}
