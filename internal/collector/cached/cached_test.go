package cached

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type countingSource struct {
	calls int
	err   error
}

func (c *countingSource) Name() string { return "fake" }

func (c *countingSource) FetchBars(ctx context.Context, req collector.Request) (*core.Series, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	var out []core.Bar
	for ts := req.Start; !ts.After(req.End); ts = ts.Add(time.Hour) {
		out = append(out, core.Bar{Time: ts, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	}
	return core.NewSeries(req.Symbol, req.Interval, out)
}

func newStore(t *testing.T) bars.Store {
	t.Helper()
	s, err := bars.NewSQLiteStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSource_ReadThrough(t *testing.T) {
	up := &countingSource{}
	src := New(up, newStore(t))
	req := collector.Request{Symbol: "BTCUSDT", Interval: "1h", Start: t0, End: t0.Add(23 * time.Hour)}

	first, err := src.FetchBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 24, first.Len())
	assert.Equal(t, 1, up.calls)

	second, err := src.FetchBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, up.calls)
	assert.Equal(t, first.Bars(), second.Bars())

	narrower := req
	narrower.Start = t0.Add(5 * time.Hour)
	s, err := src.FetchBars(context.Background(), narrower)
	require.NoError(t, err)
	assert.Equal(t, 19, s.Len())
	assert.Equal(t, 1, up.calls)

	wider := req
	wider.End = t0.Add(30 * time.Hour)
	_, err = src.FetchBars(context.Background(), wider)
	require.NoError(t, err)
	assert.Equal(t, 2, up.calls)
}

func TestSource_UpstreamError(t *testing.T) {
	up := &countingSource{err: core.ErrDataUnavailable}
	src := New(up, newStore(t))

	_, err := src.FetchBars(context.Background(), collector.Request{Symbol: "BTCUSDT", Interval: "1h", Start: t0, End: t0.Add(time.Hour)})
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
	assert.Equal(t, "fake", src.Name())
}

func TestCovers(t *testing.T) {
	bar := func(h int) core.Bar { return core.Bar{Time: t0.Add(time.Duration(h) * time.Hour)} }
	req := collector.Request{Interval: "1h", Start: t0, End: t0.Add(3 * time.Hour)}

	assert.True(t, covers([]core.Bar{bar(0), bar(1), bar(2), bar(3)}, req))
	assert.False(t, covers([]core.Bar{bar(0), bar(1), bar(3)}, req), "gap")
	assert.False(t, covers([]core.Bar{bar(1), bar(2), bar(3)}, req), "late start")
	assert.False(t, covers([]core.Bar{bar(0), bar(1), bar(2)}, req), "early end")
	assert.False(t, covers(nil, req))

	open := req
	open.End = time.Time{}
	assert.False(t, covers([]core.Bar{bar(0)}, open))
}
