// Package cached wraps a bar source with a persistent read-through store.
package cached

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
)

// Source serves requests from the store when it holds every bar of the
// requested range, and otherwise fetches from upstream and writes the
// result back.
type Source struct {
	upstream collector.Source
	store    bars.Store
	logger   *zap.Logger
}

// New wraps upstream with store.
func New(upstream collector.Source, store bars.Store, logger ...*zap.Logger) *Source {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Source{upstream: upstream, store: store, logger: l}
}

// Name reports the upstream name; caching does not change where bars come from.
func (s *Source) Name() string {
	return s.upstream.Name()
}

func (s *Source) FetchBars(ctx context.Context, req collector.Request) (*core.Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	symbol := collector.NormalizeSymbol(req.Symbol, "USDT")

	stored, err := s.store.Read(ctx, symbol, req.Interval, req.Start, req.End)
	if err != nil {
		s.logger.Warn("bar cache read failed", zap.String("symbol", symbol), zap.Error(err))
	} else if covers(stored, req) {
		s.logger.Debug("bar cache hit", zap.String("symbol", symbol), zap.Int("bars", len(stored)))
		return core.NewSeries(symbol, req.Interval, stored)
	}

	series, err := s.upstream.FetchBars(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(ctx, series.Symbol(), series.Interval(), series.Bars()); err != nil {
		s.logger.Warn("bar cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return series, nil
}

// covers reports whether stored is a gap-free run of bars spanning req.
// Open-ended requests are never served from the store.
func covers(stored []core.Bar, req collector.Request) bool {
	if len(stored) == 0 || req.Start.IsZero() || req.End.IsZero() {
		return false
	}
	step, err := collector.IntervalDuration(req.Interval)
	if err != nil {
		return false
	}
	first, last := stored[0].Time, stored[len(stored)-1].Time
	if first.Sub(req.Start) >= step || req.End.Sub(last) >= step {
		return false
	}
	span := last.Sub(first)
	return span == time.Duration(len(stored)-1)*step
}
