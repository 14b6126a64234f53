package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/api/middleware"
	"github.com/shinmindoree/llmtradingtest/internal/app"
	"github.com/shinmindoree/llmtradingtest/internal/collector/csvfile"
	"github.com/shinmindoree/llmtradingtest/internal/config"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/metrics"
)

func testRunner(t *testing.T) *app.Runner {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 99, 98, 97, 96, 97, 98, 99, 100, 101}
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Time: start.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	var buf bytes.Buffer
	require.NoError(t, csvfile.Write(&buf, bars))
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	cfg := config.Defaults()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = path
	cfg.Data.Symbol = "TEST"
	cfg.Data.Interval = "1h"
	cfg.Backtest.Commission = 0

	r, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func newTestServer(t *testing.T, cfg config.ServerConfig, reg *metrics.Registry) *Server {
	t.Helper()
	srv, err := NewServer(cfg, Dependencies{Runner: testRunner(t), Metrics: reg}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer_RequiresRunner(t *testing.T) {
	_, err := NewServer(config.ServerConfig{}, Dependencies{}, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Host: "localhost"}, nil)

	w := do(srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(metrics.RequestIDHeader))
}

func TestServer_APIAuth(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{APIKey: "test-key"}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, "/api/v1/strategies", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(srv, http.MethodGet, "/api/v1/strategies", "", map[string]string{middleware.APIKeyHeader: "wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		do(srv, http.MethodGet, "/api/v1/strategies", "", map[string]string{middleware.APIKeyHeader: "test-key"}).Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/health", "", nil).Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, do(srv, http.MethodDelete, "/api/v1/strategies", "", nil).Code)
}

func TestServer_BacktestFlow(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{RunTimeout: 10 * time.Second}, nil)

	created := do(srv, http.MethodPost, "/api/v1/backtests",
		`{"strategy":"rsi_reversion","params":{"rsi_period":3},"capital_pct":1,"stop_loss":0,"take_profit":0}`, nil)
	require.Equal(t, http.StatusAccepted, created.Code, created.Body.String())

	var accepted struct {
		Data struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.Data.JobID)

	var got struct {
		Data struct {
			Status string `json:"status"`
			Result struct {
				RunID     string `json:"run_id"`
				Symbol    string `json:"symbol"`
				NumTrades int    `json:"num_trades"`
			} `json:"result"`
		} `json:"data"`
	}
	require.Eventually(t, func() bool {
		w := do(srv, http.MethodGet, "/api/v1/backtests/"+accepted.Data.JobID, "", nil)
		if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &got) != nil {
			return false
		}
		return got.Data.Status == "completed" || got.Data.Status == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "completed", got.Data.Status)
	assert.NotEmpty(t, got.Data.Result.RunID)
	assert.Equal(t, "TEST", got.Data.Result.Symbol)
	assert.Equal(t, 1, got.Data.Result.NumTrades)
}

func TestServer_BacktestUnknownStrategy(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	w := do(srv, http.MethodPost, "/api/v1/backtests", `{"strategy":"grid_bot"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), core.ErrUnknownStrategy.Code)
}

func TestServer_BarsPreview(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	w := do(srv, http.MethodGet, "/api/v1/bars?limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Data struct {
			Rows int   `json:"rows"`
			Head []any `json:"head"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 10, out.Data.Rows)
	assert.Len(t, out.Data.Head, 3)
}

func TestServer_SuggestWithoutProvider(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	w := do(srv, http.MethodPost, "/api/v1/strategies/suggest", `{"description":"buy dips"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ReportsDisabled(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/api/v1/reports", "", nil).Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := metrics.NewRegistry()
	srv := newTestServer(t, config.ServerConfig{}, reg)

	do(srv, http.MethodGet, "/health", "", nil)

	w := do(srv, http.MethodGet, DefaultMetricsPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "llmtrader_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="GET /health"`)
}

func TestServer_NoMetricsRoute(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{}, nil)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, DefaultMetricsPath, "", nil).Code)
}
