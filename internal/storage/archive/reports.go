package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/shinmindoree/llmtradingtest/internal/backtest"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Files written per run, under "<run_id>/".
const (
	ReportFile = "report.json"
	TradesFile = "trades.csv"
)

// Reports keeps finished backtest reports in a Storage.
type Reports struct {
	store Storage
}

// NewReports creates a report archive over store.
func NewReports(store Storage) *Reports {
	return &Reports{store: store}
}

// Save writes the report's wire form and its trade list. series, when not
// nil, fills the trade list's run-up and drawdown columns. It returns the
// keys written.
func (r *Reports) Save(ctx context.Context, rep *backtest.Report, series *core.Series) ([]string, error) {
	if rep.RunID == "" {
		return nil, core.Errorf(core.ErrConfigInvalid, "report has no run id")
	}

	var js bytes.Buffer
	if err := backtest.WriteJSON(&js, rep); err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	var csv bytes.Buffer
	if err := backtest.WriteTradeListCSV(&csv, backtest.TradeList(rep.Trades, series)); err != nil {
		return nil, fmt.Errorf("encoding trades: %w", err)
	}

	keys := []string{path.Join(rep.RunID, ReportFile), path.Join(rep.RunID, TradesFile)}
	for i, data := range [][]byte{js.Bytes(), csv.Bytes()} {
		if err := r.store.Write(ctx, keys[i], data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", keys[i], err)
		}
	}
	return keys, nil
}

// Load reads a saved report by run id.
func (r *Reports) Load(ctx context.Context, runID string) (backtest.ReportJSON, error) {
	var out backtest.ReportJSON
	data, err := r.store.Read(ctx, path.Join(runID, ReportFile))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding report %s: %w", runID, err)
	}
	return out, nil
}

// Runs lists archived run ids in sorted order.
func (r *Reports) Runs(ctx context.Context) ([]string, error) {
	paths, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var runs []string
	for _, p := range paths {
		id, file, ok := strings.Cut(p, "/")
		if !ok || file != ReportFile || seen[id] {
			continue
		}
		seen[id] = true
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}
