package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar represents one OHLCV candle
type Bar struct {
	Time   time.Time `json:"timestamp"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks that prices are finite and positive
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("bar at %s: non-positive or non-finite price", b.Time.Format(time.RFC3339))
		}
	}
	if b.Volume < 0 || math.IsNaN(b.Volume) {
		return fmt.Errorf("bar at %s: invalid volume %v", b.Time.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Action represents a trading decision
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Series is an immutable, strictly ascending sequence of bars for one
// symbol and interval. It is safe to share between concurrent runs.
type Series struct {
	symbol   string
	interval string
	bars     []Bar
	closes   []float64
}

// NewSeries copies bars into a new Series. Bars must already be strictly
// ascending by time; use Normalize first for raw provider output.
func NewSeries(symbol, interval string, bars []Bar) (*Series, error) {
	s := &Series{
		symbol:   symbol,
		interval: interval,
		bars:     make([]Bar, len(bars)),
		closes:   make([]float64, len(bars)),
	}
	copy(s.bars, bars)
	for i, b := range s.bars {
		if err := b.Validate(); err != nil {
			return nil, WrapError(ErrInvalidSeries, err)
		}
		if i > 0 && !b.Time.After(s.bars[i-1].Time) {
			return nil, Errorf(ErrInvalidSeries, "bar %d at %s does not follow %s",
				i, b.Time.Format(time.RFC3339), s.bars[i-1].Time.Format(time.RFC3339))
		}
		s.closes[i] = b.Close
	}
	return s, nil
}

// Normalize sorts bars by time, keeps the first bar for each timestamp and
// drops bars outside [start, end]. A zero start or end leaves that side open.
func Normalize(bars []Bar, start, end time.Time) []Bar {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		if len(out) > 0 && b.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *Series) Symbol() string   { return s.symbol }
func (s *Series) Interval() string { return s.interval }
func (s *Series) Len() int         { return len(s.bars) }

// At returns the bar at index i.
func (s *Series) At(i int) Bar { return s.bars[i] }

// First and Last panic on an empty series.
func (s *Series) First() Bar { return s.bars[0] }
func (s *Series) Last() Bar  { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the underlying bars.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Closes returns a copy of the close prices.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.closes))
	copy(out, s.closes)
	return out
}

// Head returns a new series holding at most n leading bars.
func (s *Series) Head(n int) *Series {
	if n >= len(s.bars) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return &Series{
		symbol:   s.symbol,
		interval: s.interval,
		bars:     s.bars[:n:n],
		closes:   s.closes[:n:n],
	}
}
