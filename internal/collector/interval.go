package collector

import (
	"strings"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// IntervalDuration returns the bar length of an exchange interval such as "15m" or "1d".
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervals[interval]
	if !ok {
		return 0, core.Errorf(core.ErrConfigInvalid, "unsupported interval %q", interval)
	}
	return d, nil
}

// quoteCurrencies are tried in order when detecting a pair's quote asset.
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB"}

// NormalizeSymbol converts "btc", "BTC/USDT", "BTC-USDT" or "BTC/USDT:USDT"
// to exchange form ("BTCUSDT"), appending defaultQuote when no known quote
// asset ends the symbol.
func NormalizeSymbol(input, defaultQuote string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return ""
	}
	if base, _, ok := strings.Cut(s, ":"); ok {
		s = base
	}
	s = strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)

	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s
		}
	}
	return s + strings.ToUpper(defaultQuote)
}
