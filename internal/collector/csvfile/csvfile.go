// Package csvfile loads bars from CSV files with a
// timestamp,open,high,low,close,volume header.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// CSV implements collector.Source over one file. The request symbol and
// interval label the resulting series.
type CSV struct {
	path string
}

// New creates a source reading path.
func New(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Name() string {
	return "csv"
}

func (c *CSV) FetchBars(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.WrapError(core.ErrCancelled, err)
	}
	f, err := os.Open(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrNotFound, err)
		}
		return nil, core.WrapError(core.ErrDataUnavailable, err)
	}
	defer f.Close()

	bars, err := Read(f)
	if err != nil {
		return nil, err
	}
	bars = core.Normalize(bars, req.Start, req.End)
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrDataUnavailable, "no bars in %s for the requested range", c.path)
	}
	return core.NewSeries(req.Symbol, req.Interval, bars)
}

// Read parses CSV bars. Columns are located by header name, so extra
// columns and any column order are accepted. Rows are returned in file order.
func Read(r io.Reader) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, core.Errorf(core.ErrInvalidSeries, "reading header: %v", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["timestamp"]; !ok {
		if i, ok := idx["time"]; ok {
			idx["timestamp"] = i
		}
	}
	for _, col := range collector.Columns {
		if _, ok := idx[col]; !ok {
			return nil, core.Errorf(core.ErrInvalidSeries, "missing column %q", col)
		}
	}

	var bars []core.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Errorf(core.ErrInvalidSeries, "line %d: %v", line, err)
		}
		bar, err := parseRecord(rec, idx)
		if err != nil {
			return nil, core.Errorf(core.ErrInvalidSeries, "line %d: %v", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseRecord(rec []string, idx map[string]int) (core.Bar, error) {
	ts, err := ParseTime(rec[idx["timestamp"]])
	if err != nil {
		return core.Bar{}, err
	}
	var v [5]float64
	for i, col := range collector.Columns[1:] {
		f, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[col]]), 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", col, err)
		}
		v[i] = f
	}
	return core.Bar{Time: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}, nil
}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05", "2006-01-02" or unix
// milliseconds. Zoneless values are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Write writes bars with the standard header.
func Write(w io.Writer, bars []core.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(collector.Columns); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
