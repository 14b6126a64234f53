// Package binance loads historical klines from the Binance REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

const (
	spotBaseURL    = "https://api.binance.com"
	futuresBaseURL = "https://fapi.binance.com"

	spotPath    = "/api/v3/klines"
	futuresPath = "/fapi/v1/klines"

	// PageLimit is the largest page the klines endpoint returns.
	PageLimit = 1000
)

// Config controls paging. Zero values take the defaults of DefaultConfig.
type Config struct {
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	// Futures selects USDⓈ-M perpetual klines instead of spot.
	Futures      bool
	MaxPoints    int
	MaxRequests  int
	RequestDelay time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns spot klines, at most 10000 bars over 20 requests
// spaced 500ms apart.
func DefaultConfig() Config {
	return Config{
		MaxPoints:    10000,
		MaxRequests:  20,
		RequestDelay: 500 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Binance implements collector.Source for Binance klines
type Binance struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a new Binance source
func New(cfg Config, logger ...*zap.Logger) *Binance {
	def := DefaultConfig()
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = def.MaxPoints
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.RequestDelay < 0 {
		cfg.RequestDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = spotBaseURL
		if cfg.Futures {
			cfg.BaseURL = futuresBaseURL
		}
	}

	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Binance{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: l.With(zap.String("source", "binance")),
	}
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchBars pages through klines from req.Start, advancing one millisecond
// past the last open time of each page. It stops at req.End, at MaxPoints
// bars, after MaxRequests calls, or on a short page.
func (b *Binance) FetchBars(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := collector.NormalizeSymbol(req.Symbol, "USDT")

	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	from := req.Start.UnixMilli()
	if req.Start.IsZero() {
		step, _ := collector.IntervalDuration(req.Interval)
		from = end.Add(-time.Duration(b.cfg.MaxPoints) * step).UnixMilli()
	}
	to := end.UnixMilli()

	var bars []core.Bar
	for requests := 0; requests < b.cfg.MaxRequests; requests++ {
		if requests > 0 && b.cfg.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, core.WrapError(core.ErrCancelled, ctx.Err())
			case <-time.After(b.cfg.RequestDelay):
			}
		}

		page, err := b.fetchPage(ctx, symbol, req.Interval, from, to)
		if err != nil {
			return nil, err
		}
		b.logger.Debug("klines page",
			zap.String("symbol", symbol),
			zap.Int("request", requests+1),
			zap.Int("bars", len(page)),
		)
		if len(page) == 0 {
			break
		}

		full := len(page) == PageLimit
		last := page[len(page)-1].Time
		for len(page) > 0 && len(bars) > 0 && !page[0].Time.After(bars[len(bars)-1].Time) {
			page = page[1:]
		}
		bars = append(bars, page...)

		if len(bars) >= b.cfg.MaxPoints {
			bars = bars[:b.cfg.MaxPoints]
			break
		}
		from = last.UnixMilli() + 1
		if from > to || !full {
			break
		}
	}

	bars = core.Normalize(bars, req.Start, req.End)
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "no klines for %s %s", symbol, req.Interval)
	}
	b.logger.Info("klines loaded",
		zap.String("symbol", symbol),
		zap.String("interval", req.Interval),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Time),
		zap.Time("last", bars[len(bars)-1].Time),
	)
	return core.NewSeries(symbol, req.Interval, bars)
}

func (b *Binance) fetchPage(ctx context.Context, symbol, interval string, from, to int64) ([]core.Bar, error) {
	path := spotPath
	if b.cfg.Futures {
		path = futuresPath
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(from, 10))
	q.Set("endTime", strconv.FormatInt(to, 10))
	q.Set("limit", strconv.Itoa(PageLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, core.WrapError(core.ErrCancelled, ctx.Err())
		}
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("fetching klines: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.Errorf(core.ErrDataUnavailable, "unexpected status %d: %s", resp.StatusCode, body)
	}

	var klines [][]any
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("decoding response: %w", err))
	}

	bars := make([]core.Bar, 0, len(klines))
	for _, k := range klines {
		bar, err := parseKline(k)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidSeries, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline reads [openTime, open, high, low, close, volume, ...].
func parseKline(k []any) (core.Bar, error) {
	if len(k) < 6 {
		return core.Bar{}, fmt.Errorf("kline has %d fields", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return core.Bar{}, fmt.Errorf("kline open time %v", k[0])
	}

	var v [5]float64
	for i := range v {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Bar{}, fmt.Errorf("kline field %d: %v", i+1, k[i+1])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		v[i] = f
	}

	return core.Bar{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   v[0],
		High:   v[1],
		Low:    v[2],
		Close:  v[3],
		Volume: v[4],
	}, nil
}
