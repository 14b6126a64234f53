package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// klineServer serves n one-minute klines starting at t0, honouring
// startTime, endTime and limit. overlap repeats the bar before startTime.
type klineServer struct {
	n        int
	overlap  bool
	requests atomic.Int32
	path     atomic.Value
}

func (k *klineServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	k.requests.Add(1)
	k.path.Store(r.URL.Path)

	q := r.URL.Query()
	from, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
	to, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if k.overlap && k.requests.Load() > 1 {
		from -= time.Minute.Milliseconds()
	}

	out := [][]any{}
	for i := 0; i < k.n && len(out) < limit; i++ {
		ts := t0.Add(time.Duration(i) * time.Minute).UnixMilli()
		if ts < from || ts > to {
			continue
		}
		price := strconv.Itoa(100 + i)
		out = append(out, []any{ts, price, price, price, price, "1.5", ts + 59999, "0", 1, "0", "0", "0"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func newSource(url string, mutate func(*Config)) *Binance {
	cfg := Config{BaseURL: url, RequestDelay: 0}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func request(n int) collector.Request {
	return collector.Request{
		Symbol:   "BTC/USDT",
		Interval: "1m",
		Start:    t0,
		End:      t0.Add(time.Duration(n-1) * time.Minute),
	}
}

func TestBinance_Name(t *testing.T) {
	assert.Equal(t, "binance", New(Config{}).Name())
}

func TestBinance_FetchBarsPages(t *testing.T) {
	srv := &klineServer{n: 2500}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s, err := newSource(ts.URL, nil).FetchBars(context.Background(), request(2500))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", s.Symbol())
	assert.Equal(t, "1m", s.Interval())
	assert.Equal(t, 2500, s.Len())
	assert.Equal(t, int32(3), srv.requests.Load())
	assert.Equal(t, t0, s.First().Time)
	assert.Equal(t, 100.0, s.First().Close)
	assert.Equal(t, 2599.0, s.Last().Close)
	assert.Equal(t, 1.5, s.Last().Volume)
	assert.Equal(t, spotPath, srv.path.Load())
}

func TestBinance_FetchBarsDropsOverlap(t *testing.T) {
	srv := &klineServer{n: 1500, overlap: true}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s, err := newSource(ts.URL, nil).FetchBars(context.Background(), request(1500))
	require.NoError(t, err)

	assert.Equal(t, 1500, s.Len())
	for i := 1; i < s.Len(); i++ {
		require.True(t, s.At(i).Time.After(s.At(i-1).Time))
	}
}

func TestBinance_FetchBarsLimits(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantBars int
		wantReqs int32
	}{
		{"max requests", func(c *Config) { c.MaxRequests = 2 }, 2000, 2},
		{"max points", func(c *Config) { c.MaxPoints = 1500 }, 1500, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &klineServer{n: 5000}
			ts := httptest.NewServer(srv)
			defer ts.Close()

			s, err := newSource(ts.URL, tt.mutate).FetchBars(context.Background(), request(5000))
			require.NoError(t, err)
			assert.Equal(t, tt.wantBars, s.Len())
			assert.Equal(t, tt.wantReqs, srv.requests.Load())
		})
	}
}

func TestBinance_FetchBarsTruncatesRange(t *testing.T) {
	srv := &klineServer{n: 100}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req := collector.Request{Symbol: "BTCUSDT", Interval: "1m", Start: t0.Add(10 * time.Minute), End: t0.Add(19 * time.Minute)}
	s, err := newSource(ts.URL, nil).FetchBars(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 10, s.Len())
	assert.Equal(t, 110.0, s.First().Close)
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestBinance_Futures(t *testing.T) {
	srv := &klineServer{n: 10}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	_, err := newSource(ts.URL, func(c *Config) { c.Futures = true }).FetchBars(context.Background(), request(10))
	require.NoError(t, err)
	assert.Equal(t, futuresPath, srv.path.Load())
}

func TestBinance_Errors(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		ts := httptest.NewServer(&klineServer{n: 0})
		defer ts.Close()

		_, err := newSource(ts.URL, nil).FetchBars(context.Background(), request(10))
		assert.True(t, errors.Is(err, core.ErrDataUnavailable))
	})

	t.Run("status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}))
		defer ts.Close()

		_, err := newSource(ts.URL, nil).FetchBars(context.Background(), request(10))
		assert.True(t, errors.Is(err, core.ErrDataUnavailable))
		assert.Contains(t, err.Error(), "Invalid symbol")
	})

	t.Run("bad interval", func(t *testing.T) {
		req := request(10)
		req.Interval = "7m"
		_, err := New(Config{}).FetchBars(context.Background(), req)
		assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	})

	t.Run("malformed kline", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[[1704067200000,"abc","1","1","1","1"]]`))
		}))
		defer ts.Close()

		_, err := newSource(ts.URL, nil).FetchBars(context.Background(), request(10))
		assert.True(t, errors.Is(err, core.ErrInvalidSeries))
	})
}

func TestBinance_CancelledDuringDelay(t *testing.T) {
	srv := &klineServer{n: 5000}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newSource(ts.URL, func(c *Config) { c.RequestDelay = time.Hour }).FetchBars(ctx, request(5000))
	assert.True(t, errors.Is(err, core.ErrCancelled))
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestParseKline(t *testing.T) {
	bar, err := parseKline([]any{float64(1704067200000), "42000.5", "42100", "41900", "42050.25", "12.75"})
	require.NoError(t, err)

	assert.Equal(t, t0, bar.Time)
	assert.Equal(t, 42000.5, bar.Open)
	assert.Equal(t, 42050.25, bar.Close)
	assert.Equal(t, 12.75, bar.Volume)

	_, err = parseKline([]any{float64(1), "1"})
	assert.Error(t, err)
}
