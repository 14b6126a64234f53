package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Common parameter names shared by every variant.
const (
	ParamCapitalPct = "capital_pct"
	ParamStopLoss   = "stop_loss"
	ParamTakeProfit = "take_profit"
)

// Float reads a numeric parameter, returning def when absent.
// Values decoded from JSON, YAML or the command line are all accepted.
func Float(params map[string]any, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalidParam(key, raw)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, invalidParam(key, raw)
		}
		v = f
	default:
		return 0, invalidParam(key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidParam(key, raw)
	}
	return v, nil
}

// Int reads an integer parameter, returning def when absent.
func Int(params map[string]any, key string, def int) (int, error) {
	f, err := Float(params, key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, invalidParam(key, params[key])
	}
	return int(f), nil
}

// Bool reads a boolean parameter, returning def when absent.
func Bool(params map[string]any, key string, def bool) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch b := raw.(type) {
	case bool:
		return b, nil
	case string:
		v, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, invalidParam(key, raw)
		}
		return v, nil
	}
	return false, invalidParam(key, raw)
}

// CheckKeys rejects parameters not in allowed.
func CheckKeys(params map[string]any, allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	var unknown []string
	for k := range params {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return core.Errorf(core.ErrConfigInvalid, "unknown parameters: %s", strings.Join(unknown, ", "))
}

func invalidParam(key string, v any) error {
	return core.Errorf(core.ErrConfigInvalid, "parameter %s: invalid value %v", key, v)
}

// Risk holds the position sizing and exit parameters every variant shares.
// StopLoss and TakeProfit are percentages; zero disables the exit.
type Risk struct {
	CapitalPct float64
	StopLoss   float64
	TakeProfit float64
}

// DefaultRisk returns 30% of equity per entry with 1% stop loss and take profit.
func DefaultRisk() Risk {
	return Risk{CapitalPct: 0.3, StopLoss: 1.0, TakeProfit: 1.0}
}

// ParseRisk reads the shared parameters on top of def and validates them.
func ParseRisk(params map[string]any, def Risk) (Risk, error) {
	var r Risk
	var err error
	if r.CapitalPct, err = Float(params, ParamCapitalPct, def.CapitalPct); err != nil {
		return Risk{}, err
	}
	if r.StopLoss, err = Float(params, ParamStopLoss, def.StopLoss); err != nil {
		return Risk{}, err
	}
	if r.TakeProfit, err = Float(params, ParamTakeProfit, def.TakeProfit); err != nil {
		return Risk{}, err
	}
	return r, r.Validate()
}

// Validate checks the risk parameters.
func (r Risk) Validate() error {
	if r.CapitalPct <= 0 || r.CapitalPct > 1 {
		return core.Errorf(core.ErrConfigInvalid, "capital_pct must be in (0,1], got %v", r.CapitalPct)
	}
	if r.StopLoss < 0 || r.StopLoss >= 100 {
		return core.Errorf(core.ErrConfigInvalid, "stop_loss must be in [0,100), got %v", r.StopLoss)
	}
	if r.TakeProfit < 0 {
		return core.Errorf(core.ErrConfigInvalid, "take_profit must not be negative, got %v", r.TakeProfit)
	}
	return nil
}

// TakeProfitHit reports whether price reached the take-profit level above entry.
func (r Risk) TakeProfitHit(entry, price float64) bool {
	return r.TakeProfit > 0 && price >= entry*(1+r.TakeProfit/100)
}

// StopLossHit reports whether price fell to stopPct percent below entry.
func StopLossHit(entry, price, stopPct float64) bool {
	return stopPct > 0 && price <= entry*(1-stopPct/100)
}

// Fill writes the risk parameters into params.
func (r Risk) Fill(params map[string]any) {
	params[ParamCapitalPct] = r.CapitalPct
	params[ParamStopLoss] = r.StopLoss
	params[ParamTakeProfit] = r.TakeProfit
}

// Exit applies the take-profit then stop-loss rules for an open position.
func (r Risk) Exit(s Snapshot, price, stopPct float64) (Action, bool) {
	if !s.IsLong() {
		return NoAction(), false
	}
	entry := s.Position.EntryPrice
	if r.TakeProfitHit(entry, price) {
		return Sell(ReasonTakeProfit), true
	}
	if StopLossHit(entry, price, stopPct) {
		return Sell(ReasonStopLoss), true
	}
	return NoAction(), false
}

// ParsePairs parses "key=value" strings, as given on the command line, into params.
func ParsePairs(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		params[k] = strings.TrimSpace(v)
	}
	return params, nil
}
