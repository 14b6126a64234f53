package backtest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/indicator"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// SweepCase is one strategy configuration to evaluate.
type SweepCase struct {
	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params,omitempty"`
}

func (c SweepCase) String() string {
	keys := slices.Sorted(maps.Keys(c.Params))
	s := c.Strategy
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%v", k, c.Params[k])
	}
	return s
}

// SweepResult pairs a case with its report or the error that stopped it.
type SweepResult struct {
	Case     SweepCase     `json:"case"`
	Report   *Report       `json:"report,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Sweep runs every case over the same series with at most workers runs in
// flight. All cases share one indicator engine. Results are returned in
// case order; a failing case records its error and does not stop the
// others. The returned error is non-nil only when ctx ends first.
func (e *Engine) Sweep(ctx context.Context, reg *strategy.Registry, series *core.Series, cases []SweepCase, workers int) ([]SweepResult, error) {
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	if workers < 1 {
		workers = 1
	}

	ind := indicator.NewEngine(series.Closes())
	results := make([]SweepResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cases {
		results[i].Case = c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = core.WrapError(core.ErrCancelled, err)
				return nil
			}
			started := time.Now()
			strat, err := reg.New(c.Strategy, strategy.Config{Params: c.Params})
			if err == nil {
				results[i].Report, err = e.run(gctx, series, ind, strat)
			}
			results[i].Err = err
			results[i].Duration = time.Since(started)
			if err != nil {
				e.logger.Warn("sweep case failed", zap.Stringer("case", c), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, core.WrapError(core.ErrCancelled, err)
	}
	return results, nil
}

// Grid expands per-key value lists into the cartesian product of cases for
// one strategy, layered over base. Keys vary in sorted order with the last
// key changing fastest.
func Grid(name string, base map[string]any, grid map[string][]any) []SweepCase {
	keys := make([]string, 0, len(grid))
	for k, vs := range grid {
		if len(vs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	cases := []SweepCase{{Strategy: name, Params: maps.Clone(base)}}
	for _, k := range keys {
		next := make([]SweepCase, 0, len(cases)*len(grid[k]))
		for _, c := range cases {
			for _, v := range grid[k] {
				p := maps.Clone(c.Params)
				if p == nil {
					p = make(map[string]any, len(keys))
				}
				p[k] = v
				next = append(next, SweepCase{Strategy: name, Params: p})
			}
		}
		cases = next
	}
	return cases
}

// Best returns the successful result with the highest total return, or
// false when every case failed.
func Best(results []SweepResult) (SweepResult, bool) {
	var best SweepResult
	found := false
	for _, r := range results {
		if r.Err != nil || r.Report == nil {
			continue
		}
		if !found || r.Report.TotalReturnPct > best.Report.TotalReturnPct {
			best, found = r, true
		}
	}
	return best, found
}
