// Package advisor turns a free-text trading idea into a registered strategy
// and its parameters. The LLM only selects; it never supplies code.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/shinmindoree/llmtradingtest/internal/core"
	"github.com/shinmindoree/llmtradingtest/internal/llm"
	"github.com/shinmindoree/llmtradingtest/internal/strategy"
)

// DefaultMaxAttempts bounds the LLM round trips per suggestion, including
// corrective follow-ups after a rejected answer.
const DefaultMaxAttempts = 2

// Advisor picks a strategy for a natural-language description.
type Advisor struct {
	llm         llm.Provider
	registry    *strategy.Registry
	logger      *zap.Logger
	maxAttempts int
}

// Config holds advisor configuration.
type Config struct {
	MaxAttempts int
}

// New creates an advisor over the strategies in registry.
func New(provider llm.Provider, registry *strategy.Registry, logger *zap.Logger, cfg Config) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Advisor{
		llm:         provider,
		registry:    registry,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Suggestion is a validated strategy selection.
type Suggestion struct {
	Strategy  string         `json:"strategy"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale"`
	// Resolved holds every parameter after defaults were applied.
	Resolved map[string]any `json:"resolved_params"`
	Provider string         `json:"provider"`
	Attempts int            `json:"attempts"`
	Usage    llm.Usage      `json:"-"`
}

type answer struct {
	Strategy  string         `json:"strategy"`
	Params    map[string]any `json:"params"`
	Rationale string         `json:"rationale"`
}

// Suggest asks the LLM for a strategy matching description. Answers naming
// an unknown strategy or invalid parameters are sent back to the model with
// the validation error until maxAttempts is reached.
func (a *Advisor) Suggest(ctx context.Context, description string) (*Suggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, core.Errorf(core.ErrConfigInvalid, "description is empty")
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: a.buildPrompt(description)}}
	var usage llm.Usage
	var lastErr error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		resp, err := a.llm.Chat(ctx, llm.ChatRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			MaxTokens:    llm.DefaultMaxTokens,
			Temperature:  0.2,
			JSONMode:     true,
		})
		if err != nil {
			return nil, err
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		s, err := a.validate(resp.Content)
		if err == nil {
			s.Provider = a.llm.Name()
			s.Attempts = attempt
			s.Usage = usage
			a.logger.Info("strategy suggested",
				zap.String("strategy", s.Strategy),
				zap.Int("attempts", attempt),
				zap.Int("input_tokens", usage.InputTokens),
				zap.Int("output_tokens", usage.OutputTokens))
			return s, nil
		}

		a.logger.Warn("rejected suggestion",
			zap.Int("attempt", attempt),
			zap.String("content", resp.Content),
			zap.Error(err))
		lastErr = err
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
				"That answer was rejected: %v. Reply again with one JSON object using only the listed strategies and parameters.", err)},
		)
	}
	return nil, lastErr
}

func (a *Advisor) validate(content string) (*Suggestion, error) {
	var ans answer
	if err := json.Unmarshal([]byte(extractJSON(content)), &ans); err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, fmt.Errorf("decode answer: %w", err))
	}
	if ans.Strategy == "" {
		return nil, core.Errorf(core.ErrLLMFailed, "answer names no strategy")
	}
	if ans.Params == nil {
		ans.Params = map[string]any{}
	}

	s, err := a.registry.New(ans.Strategy, strategy.Config{Params: ans.Params})
	if err != nil {
		return nil, err
	}
	return &Suggestion{
		Strategy:  ans.Strategy,
		Params:    ans.Params,
		Rationale: ans.Rationale,
		Resolved:  s.Params(),
	}, nil
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func (a *Advisor) buildPrompt(description string) string {
	var sb strings.Builder

	sb.WriteString("## Available strategies:\n")
	for _, info := range a.registry.List() {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", info.Name, info.Description))
		keys := make([]string, 0, len(info.Defaults))
		for k := range info.Defaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  - %s (default %v)\n", k, info.Defaults[k]))
		}
	}
	sb.WriteString("\n## Trading idea:\n")
	sb.WriteString(description)
	sb.WriteString("\n\nRespond with JSON containing: strategy, params, rationale.\n")

	return sb.String()
}

const systemPrompt = `You are a trading strategy selector for a backtesting engine. You map a trader's idea onto exactly one of the registered strategies listed in the prompt and choose its parameters.

Rules:
1. Use only a strategy name from the list.
2. Use only that strategy's listed parameter names. Omit a parameter to keep its default.
3. Percentages (capital_pct excluded) are plain numbers: 2 means 2%. capital_pct is a fraction between 0 and 1.
4. Never write code.

Always respond with valid JSON:
{
  "strategy": "strategy_name",
  "params": {"param_name": value},
  "rationale": "one or two sentences"
}`
