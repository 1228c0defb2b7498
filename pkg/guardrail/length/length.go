package length

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "length"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

type Config struct {
	MaxChars  int    `mapstructure:"max_chars"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Encoding  string `mapstructure:"encoding"`
	Action    string `mapstructure:"action"`
}

// Guardrail bounds content size in characters and/or estimated tokens.
// Token counting uses the rune heuristic unless a tiktoken encoding name
// is configured.
type Guardrail struct {
	logger  *logrus.Logger
	cfg     Config
	counter conversation.TokenCounter
}

func New(logger *logrus.Logger, def types.Definition) (*Guardrail, error) {
	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if cfg.MaxChars < 0 || cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("limits cannot be negative")
	}
	if cfg.MaxChars == 0 && cfg.MaxTokens == 0 {
		return nil, fmt.Errorf("max_chars or max_tokens must be set")
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}

	counter := conversation.TokenCounter(conversation.EstimateTokens)
	if cfg.Encoding != "" {
		c, err := conversation.TiktokenCounter(cfg.Encoding)
		if err != nil {
			return nil, err
		}
		counter = c
	}

	return &Guardrail{
		logger:  logger,
		cfg:     cfg,
		counter: counter,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	chars := utf8.RuneCountInString(content)
	tokens := g.counter(content)

	details := map[string]interface{}{
		"chars":  chars,
		"tokens": tokens,
	}

	var reason string
	switch {
	case g.cfg.MaxChars > 0 && chars > g.cfg.MaxChars:
		reason = fmt.Sprintf("content length %d exceeds the %d character limit", chars, g.cfg.MaxChars)
	case g.cfg.MaxTokens > 0 && tokens > g.cfg.MaxTokens:
		reason = fmt.Sprintf("content size %d exceeds the %d token limit", tokens, g.cfg.MaxTokens)
	default:
		return types.NewAllowResult("content within size limits").WithDetails(details), nil
	}

	if g.cfg.Action == ActionWarn {
		return types.NewWarnResult(reason, 1.0).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, 1.0).WithDetails(details), nil
}
