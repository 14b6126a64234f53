package indicator

import (
	"fmt"
	"sync"
)

// Kind names an indicator computed over close prices.
type Kind string

const (
	KindSMA Kind = "sma"
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
)

type key struct {
	kind   Kind
	period int
}

// Engine computes indicator series over a fixed set of close prices and
// memoizes them. It is safe for concurrent use, so runs sharing one price
// series can share one Engine.
type Engine struct {
	closes []float64

	mu    sync.Mutex
	cache map[key][]float64
}

// NewEngine creates an engine over closes. The slice must not be modified afterwards.
func NewEngine(closes []float64) *Engine {
	return &Engine{
		closes: closes,
		cache:  make(map[key][]float64),
	}
}

// Len returns the number of bars covered.
func (e *Engine) Len() int { return len(e.closes) }

// Series returns the full indicator series for kind and period, one value per bar.
func (e *Engine) Series(kind Kind, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator %s: period must be positive, got %d", kind, period)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key{kind, period}
	if s, ok := e.cache[k]; ok {
		return s, nil
	}

	var s []float64
	switch kind {
	case KindSMA:
		s = SMA(e.closes, period)
	case KindEMA:
		s = EMA(e.closes, period)
	case KindRSI:
		s = RSI(e.closes, period)
	default:
		return nil, fmt.Errorf("unknown indicator: %s", kind)
	}
	e.cache[k] = s
	return s, nil
}

// Value returns the indicator value at bar i, or NaN while warming up.
func (e *Engine) Value(kind Kind, period, i int) (float64, error) {
	s, err := e.Series(kind, period)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(s) {
		return 0, fmt.Errorf("indicator %s(%d): index %d out of range [0,%d)", kind, period, i, len(s))
	}
	return s[i], nil
}
