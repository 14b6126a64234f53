package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Request selects the bars to load. A zero Start or End leaves that side open.
type Request struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

// Validate checks the request fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return core.Errorf(core.ErrConfigInvalid, "symbol is required")
	}
	if _, err := IntervalDuration(r.Interval); err != nil {
		return err
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return core.Errorf(core.ErrConfigInvalid, "end %s before start %s", r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// Source loads historical bars.
type Source interface {
	// Name returns the source identifier (e.g., "binance", "csv")
	Name() string

	// FetchBars returns the bars of req as a validated, ascending series.
	// An empty result is reported as core.ErrDataUnavailable.
	FetchBars(ctx context.Context, req Request) (*core.Series, error)
}
