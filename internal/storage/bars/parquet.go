package bars

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Record is the Parquet schema for one bar.
type Record struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetStore keeps one Parquet file per symbol and interval at
//
//	<DataDir>/<SYMBOL>/<interval>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

func (s *ParquetStore) path(symbol, interval string) string {
	return filepath.Join(s.DataDir, strings.ToUpper(symbol), interval+".parquet")
}

// Write merges bars into the symbol's file, preferring new bars over
// stored ones with the same timestamp.
func (s *ParquetStore) Write(ctx context.Context, symbol, interval string, bars []core.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(symbol, interval)

	existing, err := ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return WriteFile(path, merge(existing, bars))
}

func (s *ParquetStore) Read(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := ReadFile(s.path(symbol, interval))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, b := range all {
		if inRange(b.Time, start, end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Close is a no-op; files are closed after every call.
func (s *ParquetStore) Close() error { return nil }

// WriteFile writes bars to a single Parquet file, creating parent directories.
func WriteFile(path string, bars []core.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := make([]Record, len(bars))
	for i, b := range bars {
		records[i] = Record{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadFile reads every bar of a Parquet file in stored order.
func ReadFile(path string) ([]core.Bar, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	records, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	bars := make([]core.Bar, len(records))
	for i, r := range records {
		bars[i] = core.Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return bars, nil
}

// merge deduplicates by timestamp, preferring incoming bars, and sorts.
func merge(existing, incoming []core.Bar) []core.Bar {
	seen := make(map[int64]core.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		seen[b.Time.UnixMilli()] = b
	}
	for _, b := range incoming {
		seen[b.Time.UnixMilli()] = b
	}

	merged := make([]core.Bar, 0, len(seen))
	for _, b := range seen {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}
