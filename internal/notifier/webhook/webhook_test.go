package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinmindoree/llmtradingtest/internal/notifier"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestNew(t *testing.T) {
	w, err := New("", "http://example.com/hook", nil)
	require.NoError(t, err)
	assert.Equal(t, "webhook", w.Name())

	_, err = New("hook", "", nil)
	assert.Error(t, err)
}

func TestWebhook_Send(t *testing.T) {
	var received map[string]any
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := New("runs", server.URL, map[string]string{"Authorization": "Bearer abc"})
	require.NoError(t, err)

	err = w.Send(context.Background(), notifier.Event{
		Type:        notifier.EventCompleted,
		RunID:       "run-1",
		Strategy:    "rsi_reversion",
		Symbol:      "BTCUSDT",
		Interval:    "15m",
		Time:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalReturn: 1.25,
		NumTrades:   4,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc", auth)
	assert.Equal(t, "backtest.completed", received["type"])
	assert.Equal(t, "run-1", received["run_id"])
	assert.Equal(t, 1.25, received["total_return"])
	assert.Equal(t, 4.0, received["num_trades"])
	assert.NotContains(t, received, "error")
}

func TestWebhook_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w, err := New("", server.URL, nil)
	require.NoError(t, err)

	err = w.Send(context.Background(), notifier.Event{Type: notifier.EventFailed, Error: "boom"})
	assert.ErrorContains(t, err, "500")
}
