// Package bars persists OHLCV bars keyed by symbol, interval and open time.
package bars

import (
	"context"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Store persists and retrieves bars.
type Store interface {
	// Write upserts bars for symbol and interval. A bar with the same open
	// time replaces the stored one.
	Write(ctx context.Context, symbol, interval string, bars []core.Bar) error

	// Read returns stored bars within [start, end] in ascending time order.
	// A zero start or end leaves that side open.
	Read(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error)

	// Close releases the store.
	Close() error
}

// Compile-time interface checks.
var _ Store = (*SQLiteStore)(nil)
var _ Store = (*ParquetStore)(nil)

func inRange(t, start, end time.Time) bool {
	return (start.IsZero() || !t.Before(start)) && (end.IsZero() || !t.After(end))
}
