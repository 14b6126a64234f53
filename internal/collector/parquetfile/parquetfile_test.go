package parquetfile

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

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func writeBars(t *testing.T, n int) string {
	t.Helper()
	out := make([]core.Bar, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = core.Bar{Time: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	path := filepath.Join(t.TempDir(), "BTCUSDT-1h.parquet")
	require.NoError(t, bars.WriteFile(path, out))
	return path
}

func TestFetchBars(t *testing.T) {
	src := New(writeBars(t, 10))
	assert.Equal(t, "parquet", src.Name())

	s, err := src.FetchBars(context.Background(), collector.Request{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		Start:    start.Add(2 * time.Hour),
		End:      start.Add(5 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", s.Symbol())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 102.0, s.First().Close)
	assert.Equal(t, 105.0, s.Last().Close)
}

func TestFetchBars_Errors(t *testing.T) {
	ctx := context.Background()
	req := collector.Request{Symbol: "BTCUSDT", Interval: "1h"}

	_, err := New(filepath.Join(t.TempDir(), "missing.parquet")).FetchBars(ctx, req)
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	req.Start = start.AddDate(1, 0, 0)
	_, err = New(writeBars(t, 3)).FetchBars(ctx, req)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable), "got %v", err)
}
