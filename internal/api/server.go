// Package api serves the backtest runner over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/shinmindoree/llmtradingtest/internal/api/handler/api"
	"github.com/shinmindoree/llmtradingtest/internal/api/job"
	"github.com/shinmindoree/llmtradingtest/internal/api/middleware"
	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/config"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
)

// DefaultMetricsPath is where Prometheus metrics are exposed.
const DefaultMetricsPath = "/metrics"

// Dependencies holds what the routes need.
type Dependencies struct {
	Runner *app.Runner
	// Metrics is optional; without it /metrics is not served.
	Metrics     *metrics.Registry
	MetricsPath string
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store

	// cancel aborts running jobs on shutdown.
	cancel context.CancelFunc
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil {
		return nil, core.Errorf(core.ErrConfigInvalid, "server needs a runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		logger: logger,
		mux:    mux,
		jobs:   job.NewStore(cfg.MaxJobs, time.Duration(cfg.JobTTLHours)*time.Hour),
		cancel: cancel,
	}

	s.setupRoutes(ctx, cfg, deps)

	var h http.Handler = mux
	h = metrics.LoggingMiddleware(logger)(h)
	if deps.Metrics != nil {
		h = metrics.HTTPMiddleware(deps.Metrics)(h)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

func (s *Server) setupRoutes(ctx context.Context, cfg config.ServerConfig, deps Dependencies) {
	runner := deps.Runner
	auth := middleware.APIKeyAuth(cfg.APIKey)
	route := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	backtests := handler.NewBacktestHandler(ctx, s.jobs, runner, deps.Metrics, cfg.RunTimeout, s.logger)
	route("POST /api/v1/backtests", backtests.Create)
	route("GET /api/v1/backtests", backtests.List)
	route("GET /api/v1/backtests/{id}", backtests.Get)

	strategies := handler.NewStrategyHandler(runner.Strategies(), runner)
	route("GET /api/v1/strategies", strategies.List)
	route("POST /api/v1/strategies/suggest", strategies.Suggest)

	bars := handler.NewBarsHandler(runner)
	route("GET /api/v1/bars", bars.Preview)

	reports := handler.NewReportsHandler(runner.Reports())
	route("GET /api/v1/reports", reports.List)
	route("GET /api/v1/reports/{id}", reports.Get)

	s.mux.HandleFunc("GET /health", s.handleHealth)

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{
			Registry: deps.Metrics,
		}))
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and cancels running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	defer s.cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.jobs.Counts(),
	})
}
