package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shinmindoree/llmtradingtest/internal/advisor"
	"github.com/shinmindoree/llmtradingtest/internal/api/response"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// Advisor suggests a registered strategy for a description.
type Advisor interface {
	Suggest(ctx context.Context, description string) (*advisor.Suggestion, error)
}

// StrategyHandler serves the strategy catalogue and suggestions.
type StrategyHandler struct {
	registry *strategy.Registry
	advisor  Advisor
}

// NewStrategyHandler creates a strategy handler.
func NewStrategyHandler(registry *strategy.Registry, adv Advisor) *StrategyHandler {
	return &StrategyHandler{registry: registry, advisor: adv}
}

// List returns every registered strategy with its defaults.
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.registry.List())
}

// SuggestRequest is the body of a suggestion request.
type SuggestRequest struct {
	Description string `json:"description"`
}

// Suggest maps a description onto a registered strategy.
func (h *StrategyHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	s, err := h.advisor.Suggest(r.Context(), req.Description)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}
