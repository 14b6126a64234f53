package factory

import (
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shinmindoree/llmtradingtest/internal/config"
	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/llm"
	"github.com/shinmindoree/llmtradingtest/internal/llm/claude"
	"github.com/shinmindoree/llmtradingtest/internal/llm/openai"
)

// New creates an LLM provider based on configuration.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "claude":
		var opts []option.RequestOption
		if cfg.Claude.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Claude.BaseURL))
		}
		p, err := claude.New(cfg.Claude.APIKey, cfg.Claude.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		p, err := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown LLM provider: %s", cfg.Provider)
	}
}
