package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/advisor"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/strategy/builtin"
)

type fakeAdvisor struct {
	got string
	err error
}

func (f *fakeAdvisor) Suggest(ctx context.Context, description string) (*advisor.Suggestion, error) {
	f.got = description
	if f.err != nil {
		return nil, f.err
	}
	return &advisor.Suggestion{
		Strategy:  "rsi_reversion",
		Params:    map[string]any{"rsi_period": 14.0},
		Rationale: "buys oversold dips",
	}, nil
}

func TestStrategyHandler_List(t *testing.T) {
	registry := builtin.NewRegistry(zap.NewNop())
	h := NewStrategyHandler(registry, &fakeAdvisor{})

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/v1/strategies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Data []struct {
			Name     string         `json:"name"`
			Defaults map[string]any `json:"defaults"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Data, len(registry.List()))

	names := make([]string, len(out.Data))
	for i, s := range out.Data {
		names[i] = s.Name
		assert.NotEmpty(t, s.Defaults, s.Name)
	}
	assert.Contains(t, names, "rsi_reversion")
}

func TestStrategyHandler_Suggest(t *testing.T) {
	adv := &fakeAdvisor{}
	h := NewStrategyHandler(builtin.NewRegistry(zap.NewNop()), adv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/strategies/suggest",
		bytes.NewBufferString(`{"description":"buy when RSI is low"}`))
	w := httptest.NewRecorder()
	h.Suggest(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "buy when RSI is low", adv.got)
	body := data(t, w)
	assert.Equal(t, "rsi_reversion", body["strategy"])
	assert.Equal(t, "buys oversold dips", body["rationale"])
}

func TestStrategyHandler_SuggestErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"malformed", `{`, nil, http.StatusBadRequest, core.ErrConfigInvalid.Code},
		{"llm failure", `{"description":"x"}`, core.Errorf(core.ErrLLMFailed, "timeout"), http.StatusBadGateway, core.ErrLLMFailed.Code},
		{"no provider", `{"description":"x"}`, core.Errorf(core.ErrConfigInvalid, "no llm provider"), http.StatusBadRequest, core.ErrConfigInvalid.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStrategyHandler(builtin.NewRegistry(zap.NewNop()), &fakeAdvisor{err: tt.err})
			w := httptest.NewRecorder()
			h.Suggest(w, httptest.NewRequest(http.MethodPost, "/api/v1/strategies/suggest", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}
