// Package app wires bar sources, strategies, the backtest engine, metrics,
// the report archive and notifiers into one runner shared by the CLI and the
// HTTP API.
package app

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/advisor"
	"github.com/shinmindoree/llmtradingtest/internal/backtest"
	"github.com/shinmindoree/llmtradingtest/internal/broker"
	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/collector/binance"
	"github.com/shinmindoree/llmtradingtest/internal/collector/cached"
	"github.com/shinmindoree/llmtradingtest/internal/collector/csvfile"
	"github.com/shinmindoree/llmtradingtest/internal/collector/parquetfile"
	"github.com/shinmindoree/llmtradingtest/internal/config"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/llm"
	"github.com/shinmindoree/llmtradingtest/internal/llm/factory"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
	"github.com/shinmindoree/llmtradingtest/internal/notifier"
	"github.com/shinmindoree/llmtradingtest/internal/notifier/webhook"
	"github.com/shinmindoree/llmtradingtest/internal/storage/archive"
	"github.com/shinmindoree/llmtradingtest/internal/storage/bars"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/builtin"
)

// Runner executes backtests, sweeps and previews against configured data.
// It is safe for concurrent use.
type Runner struct {
	cfg        *config.Config
	logger     *zap.Logger
	strategies *strategy.Registry
	sources    *collector.Registry
	metrics    *metrics.Registry
	reports    *archive.Reports
	notifiers  *notifier.Registry
	advisor    *advisor.Advisor
	provider   llm.Provider
	store      bars.Store
	closers    []io.Closer
}

// Option customises a Runner.
type Option func(*Runner)

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSource registers an extra bar source, replacing any of the same name.
func WithSource(s collector.Source) Option {
	return func(r *Runner) { r.sources.Register(s) }
}

// WithArchive stores reports in s regardless of the archive configuration.
func WithArchive(s archive.Storage) Option {
	return func(r *Runner) { r.reports = archive.NewReports(s) }
}

// WithNotifier adds n to the notifiers told about finished runs.
func WithNotifier(n notifier.Notifier) Option {
	return func(r *Runner) {
		if err := r.notifiers.Register(n); err != nil {
			r.logger.Warn("notifier not registered", zap.String("notifier", n.Name()), zap.Error(err))
		}
	}
}

// WithLLM sets the provider used for strategy suggestions.
func WithLLM(p llm.Provider) Option {
	return func(r *Runner) { r.provider = p }
}

// New builds a runner from cfg. Sources, the bar cache, the archive, the
// webhooks and the LLM provider all come from cfg; options apply last.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:        cfg,
		logger:     logger,
		strategies: builtin.NewRegistry(logger),
		sources:    collector.NewRegistry(),
		notifiers:  notifier.NewRegistry(),
	}

	if err := r.initSources(); err != nil {
		r.Close()
		return nil, err
	}

	if cfg.Archive.Enabled {
		store, err := archive.New(archive.Config{
			Type: cfg.Archive.Type,
			Path: cfg.Archive.Path,
			S3: archive.S3Config{
				Bucket:    cfg.Archive.S3.Bucket,
				Endpoint:  cfg.Archive.S3.Endpoint,
				Region:    cfg.Archive.S3.Region,
				AccessKey: cfg.Archive.S3.AccessKey,
				SecretKey: cfg.Archive.S3.SecretKey,
				Prefix:    cfg.Archive.S3.Prefix,
			},
		})
		if err != nil {
			r.Close()
			return nil, err
		}
		r.reports = archive.NewReports(store)
	}

	for i, w := range cfg.Notify.Webhooks {
		hook, err := webhook.New("webhook-"+strconv.Itoa(i), w.URL, w.Headers)
		if err != nil {
			r.Close()
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		_ = r.notifiers.Register(hook)
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.provider == nil {
		p, err := factory.New(cfg.LLM)
		if err != nil {
			logger.Debug("llm provider unavailable, suggestions disabled", zap.Error(err))
		} else {
			r.provider = p
		}
	}
	if r.provider != nil {
		r.advisor = advisor.New(r.provider, r.strategies, logger, advisor.Config{})
	}

	return r, nil
}

func (r *Runner) initSources() error {
	d := r.cfg.Data

	var upstream collector.Source = binance.New(binance.Config{
		BaseURL:      d.BaseURL,
		Futures:      d.Futures,
		MaxPoints:    d.MaxPoints,
		MaxRequests:  d.MaxRequests,
		RequestDelay: d.RequestDelay,
	}, r.logger)

	if d.Cache.Enabled {
		store, err := openStore(d.Cache)
		if err != nil {
			return err
		}
		r.store = store
		r.closers = append(r.closers, store)
		upstream = cached.New(upstream, store, r.logger)
	}
	r.sources.Register(upstream)

	if d.CSVPath != "" {
		r.sources.Register(csvfile.New(d.CSVPath))
	}
	return nil
}

func openStore(c config.CacheConfig) (bars.Store, error) {
	switch c.Type {
	case "parquet":
		return bars.NewParquetStore(c.Path), nil
	default:
		store, err := bars.NewSQLiteStore(c.Path)
		if err != nil {
			return nil, core.WrapError(core.ErrDataUnavailable, err)
		}
		return store, nil
	}
}

// Close releases the bar cache.
func (r *Runner) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Config returns the runner configuration.
func (r *Runner) Config() *config.Config { return r.cfg }

// Strategies returns the strategy registry.
func (r *Runner) Strategies() *strategy.Registry { return r.strategies }

// Reports returns the report archive, or nil when archiving is off.
func (r *Runner) Reports() *archive.Reports { return r.reports }

// Store returns the bar cache, or nil when caching is off.
func (r *Runner) Store() bars.Store { return r.store }

// Request describes one run. Empty fields fall back to the configuration.
type Request struct {
	Strategy string
	Params   map[string]any

	// Source names a registered source. File, when set, wins and picks the
	// CSV or Parquet loader by extension.
	Source   string
	File     string
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time

	InitialCapital float64
	Commission     *float64
	Timing         string
}

// resolve fills defaults and validates the data selection.
func (r *Runner) resolve(req Request) (Request, collector.Source, error) {
	if req.Interval == "" {
		req.Interval = r.cfg.Data.Interval
	}
	if req.Symbol == "" {
		req.Symbol = r.cfg.Data.Symbol
	}

	var src collector.Source
	switch {
	case req.File != "":
		if strings.EqualFold(filepath.Ext(req.File), ".parquet") {
			src = parquetfile.New(req.File)
		} else {
			src = csvfile.New(req.File)
		}
	default:
		name := req.Source
		if name == "" {
			name = r.cfg.Data.Source
		}
		var err error
		if src, err = r.sources.MustGet(name); err != nil {
			return req, nil, err
		}
	}

	if src.Name() == "binance" {
		req.Symbol = collector.NormalizeSymbol(req.Symbol, "USDT")
	} else {
		req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	}

	creq := collector.Request{Symbol: req.Symbol, Interval: req.Interval, Start: req.Start, End: req.End}
	if err := creq.Validate(); err != nil {
		return req, nil, err
	}
	return req, src, nil
}

// LoadBars fetches the series a request selects.
func (r *Runner) LoadBars(ctx context.Context, req Request) (*core.Series, error) {
	req, src, err := r.resolve(req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loading bars",
		zap.String("source", src.Name()),
		zap.String("symbol", req.Symbol),
		zap.String("interval", req.Interval),
		zap.Time("start", req.Start),
		zap.Time("end", req.End))
	return src.FetchBars(ctx, collector.Request{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Start:    req.Start,
		End:      req.End,
	})
}

// Preview loads the selected bars and summarises the first n.
func (r *Runner) Preview(ctx context.Context, req Request, n int) (collector.Preview, error) {
	s, err := r.LoadBars(ctx, req)
	if err != nil {
		return collector.Preview{}, err
	}
	return collector.NewPreview(s, n), nil
}

// EngineConfig merges the request overrides into the configured run
// parameters.
func (r *Runner) EngineConfig(req Request) (backtest.Config, error) {
	c := r.cfg.Backtest
	timing := req.Timing
	if timing == "" {
		timing = c.Timing
	}
	t, err := backtest.ParseTiming(timing)
	if err != nil {
		return backtest.Config{}, err
	}

	out := backtest.Config{
		InitialCapital: c.InitialCapital,
		Commission:     c.Commission,
		Timing:         t,
		Sizing: broker.SizingConfig{
			MinSize:   c.MinSize,
			Precision: c.SizePrecision,
			Funds:     broker.FundsPolicy(c.FundsPolicy),
		},
	}
	if req.InitialCapital != 0 {
		out.InitialCapital = req.InitialCapital
	}
	if req.Commission != nil {
		out.Commission = *req.Commission
	}
	return out, out.Validate()
}

// Result is a finished run plus where it was archived.
type Result struct {
	Report *backtest.Report
	// Series is the bars the run replayed.
	Series      *core.Series
	ArchiveKeys []string
	Duration    time.Duration
}

// Backtest runs one strategy. Metrics, the archive and notifiers are
// updated whether or not the run succeeds; archive and notifier failures
// are logged and do not fail the run.
func (r *Runner) Backtest(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	rep, series, err := r.backtest(ctx, req)
	res := &Result{Report: rep, Series: series, Duration: time.Since(started)}

	r.record(req.Strategy, rep, err, res.Duration)
	if err == nil && r.reports != nil {
		keys, aerr := r.reports.Save(ctx, rep, series)
		if aerr != nil {
			r.logger.Warn("archiving report failed", zap.String("run_id", rep.RunID), zap.Error(aerr))
		} else {
			res.ArchiveKeys = keys
			r.logger.Info("report archived", zap.String("run_id", rep.RunID), zap.Strings("keys", keys))
		}
	}
	r.notify(ctx, req, res, err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) backtest(ctx context.Context, req Request) (*backtest.Report, *core.Series, error) {
	strat, err := r.strategies.New(req.Strategy, strategy.Config{Params: req.Params})
	if err != nil {
		return nil, nil, err
	}
	engine, err := r.engine(req)
	if err != nil {
		return nil, nil, err
	}
	series, err := r.LoadBars(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	rep, err := engine.Run(ctx, series, strat)
	if err != nil {
		return nil, nil, err
	}
	rep.RunID = uuid.NewString()
	return rep, series, nil
}

func (r *Runner) engine(req Request) (*backtest.Engine, error) {
	cfg, err := r.EngineConfig(req)
	if err != nil {
		return nil, err
	}
	return backtest.New(cfg, r.logger)
}

// Sweep runs req's strategy once per grid combination over one series.
// workers <= 0 uses the configured worker count.
func (r *Runner) Sweep(ctx context.Context, req Request, grid map[string][]any, workers int) ([]backtest.SweepResult, error) {
	if !r.strategies.Has(req.Strategy) {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%q", req.Strategy)
	}
	engine, err := r.engine(req)
	if err != nil {
		return nil, err
	}
	series, err := r.LoadBars(ctx, req)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = r.cfg.Backtest.Workers
	}

	cases := backtest.Grid(req.Strategy, req.Params, grid)
	r.logger.Info("sweep started",
		zap.String("strategy", req.Strategy),
		zap.Int("cases", len(cases)),
		zap.Int("workers", workers))

	results, err := engine.Sweep(ctx, r.strategies, series, cases, workers)
	for _, res := range results {
		if res.Report != nil {
			res.Report.RunID = uuid.NewString()
		}
		r.record(req.Strategy, res.Report, res.Err, res.Duration)
	}
	return results, err
}

// Suggest maps a trading idea onto a registered strategy.
func (r *Runner) Suggest(ctx context.Context, description string) (*advisor.Suggestion, error) {
	if r.advisor == nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "no LLM provider configured for %q", r.cfg.LLM.Provider)
	}
	return r.advisor.Suggest(ctx, description)
}

func (r *Runner) record(strategyName string, rep *backtest.Report, err error, d time.Duration) {
	if r.metrics == nil {
		return
	}
	if err != nil {
		r.metrics.RecordBacktest(strategyName, metrics.StatusError, d.Seconds(), 0, 0)
		return
	}
	r.metrics.RecordBacktest(rep.Strategy, metrics.StatusSuccess, d.Seconds(), rep.NumTrades, rep.Bars)
	for reason, n := range rep.Skipped {
		r.metrics.RecordSkipped(reason, n)
	}
}

func (r *Runner) notify(ctx context.Context, req Request, res *Result, err error) {
	if r.notifiers.Len() == 0 {
		return
	}
	ev := notifier.Event{
		Type:     notifier.EventCompleted,
		Strategy: req.Strategy,
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Time:     time.Now().UTC(),
	}
	if err != nil {
		ev.Type = notifier.EventFailed
		ev.Error = err.Error()
	} else {
		rep := res.Report.Wire()
		ev.RunID = rep.RunID
		ev.Symbol = rep.Symbol
		ev.Interval = rep.Interval
		ev.TotalReturn = rep.TotalReturn
		ev.MaxDrawdown = rep.MaxDrawdown
		ev.WinRate = rep.WinRate
		ev.NumTrades = rep.NumTrades
		ev.FinalCapital = rep.FinalCapital
		ev.ArchiveKeys = res.ArchiveKeys
	}
	for name, nerr := range r.notifiers.NotifyAll(ctx, ev) {
		r.logger.Warn("notification failed", zap.String("notifier", name), zap.Error(nerr))
	}
}
