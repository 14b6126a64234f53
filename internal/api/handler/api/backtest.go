package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/api/job"
	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// DefaultRunTimeout bounds one asynchronous backtest.
const DefaultRunTimeout = 5 * time.Minute

// Backtester runs one backtest.
type Backtester interface {
	Backtest(ctx context.Context, req app.Request) (*app.Result, error)
	Strategies() *strategy.Registry
}

// BacktestRequest is the request body for starting a backtest.
type BacktestRequest struct {
	Strategy   string         `json:"strategy"`
	Params     map[string]any `json:"params,omitempty"`
	Source     string         `json:"source,omitempty"`
	Symbol     string         `json:"symbol"`
	Interval   string         `json:"interval"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	Capital    float64        `json:"capital,omitempty"`
	CapitalPct *float64       `json:"capital_pct,omitempty"`
	StopLoss   *float64       `json:"stop_loss,omitempty"`
	TakeProfit *float64       `json:"take_profit,omitempty"`
	Commission *float64       `json:"commission,omitempty"`
	Timing     string         `json:"timing,omitempty"`
}

// ToRequest validates the body and converts it to a runner request. The
// shortcut risk fields override the same keys in Params.
func (b BacktestRequest) ToRequest() (app.Request, error) {
	if strings.TrimSpace(b.Strategy) == "" {
		return app.Request{}, core.Errorf(core.ErrConfigInvalid, "strategy is required")
	}
	start, err := app.ParseDate(b.StartDate)
	if err != nil {
		return app.Request{}, err
	}
	end, err := app.ParseDate(b.EndDate)
	if err != nil {
		return app.Request{}, err
	}

	params := make(map[string]any, len(b.Params)+3)
	for k, v := range b.Params {
		params[k] = v
	}
	for key, v := range map[string]*float64{
		strategy.ParamCapitalPct: b.CapitalPct,
		strategy.ParamStopLoss:   b.StopLoss,
		strategy.ParamTakeProfit: b.TakeProfit,
	} {
		if v != nil {
			params[key] = *v
		}
	}

	return app.Request{
		Strategy:       b.Strategy,
		Params:         params,
		Source:         b.Source,
		Symbol:         b.Symbol,
		Interval:       b.Interval,
		Start:          start,
		End:            end,
		InitialCapital: b.Capital,
		Commission:     b.Commission,
		Timing:         b.Timing,
	}, nil
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	ctx      context.Context
	jobStore *job.Store
	runner   Backtester
	metrics  *metrics.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. Jobs run under ctx, so
// cancelling it aborts them. m may be nil.
func NewBacktestHandler(ctx context.Context, jobStore *job.Store, runner Backtester, m *metrics.Registry, timeout time.Duration, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &BacktestHandler{
		ctx:      ctx,
		jobStore: jobStore,
		runner:   runner,
		metrics:  m,
		timeout:  timeout,
		logger:   logger,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		response.Fail(w, err)
		return
	}
	// Reject unknown names now rather than in a failed job.
	if !h.runner.Strategies().Has(req.Strategy) {
		response.Fail(w, core.Errorf(core.ErrUnknownStrategy, "%q", req.Strategy))
		return
	}

	j := h.jobStore.Create("backtest")
	h.publishCounts()

	go h.run(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// run executes the backtest and updates job status.
func (h *BacktestHandler) run(jobID string, req app.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})
	h.publishCounts()

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()
	res, err := h.runner.Backtest(ctx, req)

	if err != nil {
		h.logger.Warn("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		detail := response.Detail(err)
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = &detail
		})
	} else {
		wire := res.Report.Wire()
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusCompleted
			j.Result = wire
		})
	}
	h.publishCounts()
}

func (h *BacktestHandler) publishCounts() {
	if h.metrics == nil {
		return
	}
	for status, n := range h.jobStore.Counts() {
		h.metrics.SetJobsActive(string(status), n)
	}
}

// Get returns a backtest job; the report is included once completed.
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// List returns live jobs without their reports.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStore.List()
	for i := range jobs {
		jobs[i].Result = nil
	}
	response.JSON(w, http.StatusOK, jobs)
}
