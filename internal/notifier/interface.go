// Package notifier tells external endpoints about finished runs.
package notifier

import (
	"context"
	"time"
)

// Event types.
const (
	EventCompleted = "backtest.completed"
	EventFailed    = "backtest.failed"
)

// Event summarises one finished run.
type Event struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id"`
	Strategy string    `json:"strategy"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Time     time.Time `json:"time"`

	TotalReturn  float64 `json:"total_return,omitempty"`
	MaxDrawdown  float64 `json:"max_drawdown,omitempty"`
	WinRate      float64 `json:"win_rate,omitempty"`
	NumTrades    int     `json:"num_trades,omitempty"`
	FinalCapital float64 `json:"final_capital,omitempty"`
	// ArchiveKeys lists the objects written for the run, if any.
	ArchiveKeys []string `json:"archive_keys,omitempty"`

	Error string `json:"error,omitempty"`
}

// Notifier delivers events to one endpoint.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers a single event
	Send(ctx context.Context, ev Event) error
}
