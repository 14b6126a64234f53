package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

const sample = `timestamp,open,high,low,close,volume
2024-01-01 00:15:00,101,103,100,102,5
2024-01-01 00:00:00,100,102,99,101,4
2024-01-01 00:15:00,999,999,999,999,9
2024-01-01T00:30:00Z,102,104,101,103,6
1704069900000,103,105,102,104,7
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	tests := []string{
		"2024-01-01T00:15:00Z",
		"2024-01-01T09:15:00+09:00",
		"2024-01-01 00:15:00",
		"1704068100000",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			got, err := ParseTime(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	day, err := ParseTime("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, day.Hour())

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestCSV_FetchBars(t *testing.T) {
	src := New(writeFile(t, sample))
	assert.Equal(t, "csv", src.Name())

	s, err := src.FetchBars(context.Background(), collector.Request{Symbol: "BTCUSDT", Interval: "15m"})
	require.NoError(t, err)

	require.Equal(t, 4, s.Len())
	assert.Equal(t, []float64{101, 102, 103, 104}, s.Closes())
	assert.Equal(t, "BTCUSDT", s.Symbol())
	assert.Equal(t, "15m", s.Interval())
}

func TestCSV_FetchBarsRange(t *testing.T) {
	src := New(writeFile(t, sample))
	req := collector.Request{
		Symbol:   "BTCUSDT",
		Interval: "15m",
		Start:    time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
	}

	s, err := src.FetchBars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103}, s.Closes())

	req.Start = req.Start.AddDate(1, 0, 0)
	req.End = req.End.AddDate(1, 0, 0)
	_, err = src.FetchBars(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable))
}

func TestCSV_Errors(t *testing.T) {
	req := collector.Request{Symbol: "X", Interval: "1d"}

	_, err := New(filepath.Join(t.TempDir(), "missing.csv")).FetchBars(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = New(writeFile(t, "timestamp,open,high,low,close\n")).FetchBars(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))

	_, err = New(writeFile(t, "timestamp,open,high,low,close,volume\n2024-01-01,1,1,1,x,1\n")).FetchBars(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidSeries))
	assert.Contains(t, err.Error(), "line 2")
}

func TestRead_ColumnOrder(t *testing.T) {
	bars, err := Read(strings.NewReader("close,volume,open,high,low,time\n10,1,9,11,8,2024-03-01\n"))
	require.NoError(t, err)

	require.Len(t, bars, 1)
	assert.Equal(t, core.Bar{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Open: 9, High: 11, Low: 8, Close: 10, Volume: 1}, bars[0])
}

func TestWrite_ReadBack(t *testing.T) {
	bars, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	bars = core.Normalize(bars, time.Time{}, time.Time{})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, bars))

	again, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, bars, again)
}
