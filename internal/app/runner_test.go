package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/backtest"
	"github.com/shinmindoree/llmtradingtest/internal/collector/csvfile"
	"github.com/shinmindoree/llmtradingtest/internal/config"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/llm"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
	"github.com/shinmindoree/llmtradingtest/internal/notifier"
	"github.com/shinmindoree/llmtradingtest/internal/storage/archive"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RSI(3) over these closes is 0 at bar 3 and first exceeds 70 at bar 7.
var closes = []float64{100, 99, 98, 97, 96, 97, 98, 99, 100, 101}

func fixtureBars() []core.Bar {
	out := make([]core.Bar, len(closes))
	for i, c := range closes {
		out[i] = core.Bar{Time: start.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return out
}

func writeCSV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, csvfile.Write(&buf, fixtureBars()))
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = writeCSV(t)
	cfg.Data.Symbol = "TEST"
	cfg.Data.Interval = "1h"
	cfg.Backtest.Commission = 0
	return cfg
}

type recorder struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(ctx context.Context, ev notifier.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func rsiParams() map[string]any {
	return map[string]any{"rsi_period": 3, "capital_pct": 1.0, "stop_loss": 0, "take_profit": 0}
}

func counter(t *testing.T, reg *metrics.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if want, ok := labels[l.GetName()]; ok && want != l.GetValue() {
					continue next
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestRunner_Backtest(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := &recorder{}
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	r, err := New(testConfig(t), nil, WithMetrics(reg), WithNotifier(rec), WithArchive(store))
	require.NoError(t, err)
	defer r.Close()

	res, err := r.Backtest(context.Background(), Request{Strategy: "rsi_reversion", Params: rsiParams()})
	require.NoError(t, err)

	rep := res.Report
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "TEST", rep.Symbol)
	assert.Equal(t, "1h", rep.Interval)
	require.Len(t, rep.Trades, 1)
	assert.Equal(t, 97.0, rep.Trades[0].EntryPrice)
	assert.Equal(t, 99.0, rep.Trades[0].ExitPrice)
	assert.Equal(t, 3, rep.Params["rsi_period"])

	assert.ElementsMatch(t, []string{rep.RunID + "/report.json", rep.RunID + "/trades.csv"}, res.ArchiveKeys)
	loaded, err := r.Reports().Load(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.NumTrades)

	// Closes run 97, 96, 97, 98, 99 while long.
	require.NotNil(t, res.Series)
	assert.Equal(t, 10, res.Series.Len())
	qty := rep.Trades[0].Quantity
	exit := backtest.TradeList(rep.Trades, res.Series)[1]
	assert.InDelta(t, 2*qty, exit.RunUp, 1e-9)
	assert.InDelta(t, 1*qty, exit.Drawdown, 1e-9)

	trades, err := store.Read(context.Background(), rep.RunID+"/trades.csv")
	require.NoError(t, err)
	assert.Contains(t, string(trades), strconv.FormatFloat(exit.RunUp, 'f', -1, 64))

	assert.Equal(t, 1.0, counter(t, reg, "llmtrader_backtests_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, counter(t, reg, "llmtrader_backtest_trades_total", nil))
	assert.Equal(t, 10.0, counter(t, reg, "llmtrader_backtest_bars_total", nil))

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, notifier.EventCompleted, ev.Type)
	assert.Equal(t, rep.RunID, ev.RunID)
	assert.Equal(t, 1, ev.NumTrades)
	assert.Equal(t, res.ArchiveKeys, ev.ArchiveKeys)
}

func TestRunner_BacktestFailure(t *testing.T) {
	reg := metrics.NewRegistry()
	rec := &recorder{}
	r, err := New(testConfig(t), nil, WithMetrics(reg), WithNotifier(rec))
	require.NoError(t, err)

	_, err = r.Backtest(context.Background(), Request{Strategy: "grid_bot"})
	assert.True(t, errors.Is(err, core.ErrUnknownStrategy))

	_, err = r.Backtest(context.Background(), Request{Strategy: "rsi_reversion", Start: start.AddDate(1, 0, 0)})
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))

	_, err = r.Backtest(context.Background(), Request{Strategy: "rsi_reversion", Source: "yahoo"})
	assert.True(t, errors.Is(err, core.ErrNotFound))

	assert.Equal(t, 3.0, counter(t, reg, "llmtrader_backtests_total", map[string]string{"status": "error"}))
	require.Len(t, rec.events, 3)
	assert.Equal(t, notifier.EventFailed, rec.events[0].Type)
	assert.NotEmpty(t, rec.events[0].Error)
}

func TestRunner_EngineConfig(t *testing.T) {
	r, err := New(testConfig(t), nil)
	require.NoError(t, err)

	cfg, err := r.EngineConfig(Request{})
	require.NoError(t, err)
	assert.Equal(t, 10000.0, cfg.InitialCapital)
	assert.Equal(t, 0.0, cfg.Commission)
	assert.Equal(t, "close", string(cfg.Timing))
	assert.Equal(t, 0.001, cfg.Sizing.MinSize)

	fee := 0.001
	cfg, err = r.EngineConfig(Request{InitialCapital: 500, Commission: &fee, Timing: "open"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, cfg.InitialCapital)
	assert.Equal(t, 0.001, cfg.Commission)
	assert.Equal(t, "open", string(cfg.Timing))

	_, err = r.EngineConfig(Request{Timing: "vwap"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = r.EngineConfig(Request{InitialCapital: -1})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRunner_Sweep(t *testing.T) {
	reg := metrics.NewRegistry()
	r, err := New(testConfig(t), nil, WithMetrics(reg))
	require.NoError(t, err)

	grid, err := ParseGrid([]string{"rsi_buy_threshold=10,30", "rsi_sell_threshold=60,70"})
	require.NoError(t, err)

	results, err := r.Sweep(context.Background(), Request{Strategy: "rsi_reversion", Params: rsiParams()}, grid, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, res := range results {
		require.NoError(t, res.Err)
		assert.NotEmpty(t, res.Report.RunID)
	}
	assert.Equal(t, "10", results[0].Case.Params["rsi_buy_threshold"])
	assert.Equal(t, "70", results[3].Case.Params["rsi_sell_threshold"])
	assert.Equal(t, 4.0, counter(t, reg, "llmtrader_backtests_total", nil))

	_, err = r.Sweep(context.Background(), Request{Strategy: "grid_bot"}, grid, 0)
	assert.True(t, errors.Is(err, core.ErrUnknownStrategy))
}

func TestRunner_PreviewAndFiles(t *testing.T) {
	r, err := New(testConfig(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	p, err := r.Preview(ctx, Request{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Rows)
	assert.Len(t, p.Head, 5)

	pq := filepath.Join(t.TempDir(), "bars.parquet")
	require.NoError(t, bars.WriteFile(pq, fixtureBars()))

	s, err := r.LoadBars(ctx, Request{File: pq, Symbol: "eth", End: start.Add(4 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "ETH", s.Symbol())
	assert.Equal(t, 5, s.Len())

	_, err = r.LoadBars(ctx, Request{Interval: "7m"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRunner_Cache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Cache = config.CacheConfig{Enabled: true, Type: "sqlite", Path: filepath.Join(t.TempDir(), "bars.db")}

	r, err := New(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, r.Store())
	assert.NoError(t, r.Close())
}

type fakeLLM struct{}

func (fakeLLM) Name() string { return "fake" }

func (fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: `{"strategy":"rsi_band","params":{},"rationale":"band entries"}`}, nil
}

func TestRunner_Suggest(t *testing.T) {
	cfg := testConfig(t)
	r, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = r.Suggest(context.Background(), "buy dips")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "no API key configured")

	r, err = New(cfg, nil, WithLLM(fakeLLM{}))
	require.NoError(t, err)
	s, err := r.Suggest(context.Background(), "buy dips")
	require.NoError(t, err)
	assert.Equal(t, "rsi_band", s.Strategy)
	assert.Equal(t, "fake", s.Provider)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backtest.Timing = "vwap"
	_, err := New(cfg, nil)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("yesterday")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestParseGrid(t *testing.T) {
	grid, err := ParseGrid([]string{"a=1, 2,3", "b=x"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]any{"a": {"1", "2", "3"}, "b": {"x"}}, grid)

	for _, bad := range []string{"a", "=1", "a="} {
		_, err := ParseGrid([]string{bad})
		assert.True(t, errors.Is(err, core.ErrConfigInvalid), bad)
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"rsi_period=7", " stop_loss = 2.5 ", "rsi_period=9", "note="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rsi_period": "9", "stop_loss": "2.5", "note": ""}, params)

	_, err = ParseParams([]string{"novalue"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	_, err = ParseParams([]string{"=1"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
