package pattern

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/patternsafety"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "pattern"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

type Config struct {
	Patterns []string `mapstructure:"patterns"`
	Action   string   `mapstructure:"action"`
}

// Guardrail matches content against caller-supplied regular expressions.
// Every pattern passes the safety validator at construction; matching runs
// under the validator's execution budget so hostile patterns cannot stall
// an evaluation.
type Guardrail struct {
	logger   *logrus.Logger
	compiled []*patternsafety.SafePattern
	action   string
}

func New(logger *logrus.Logger, validator *patternsafety.Validator, def types.Definition) (*Guardrail, error) {
	if validator == nil {
		return nil, fmt.Errorf("pattern guardrail requires a pattern validator")
	}

	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("at least one pattern is required")
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}

	compiled := make([]*patternsafety.SafePattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		sp, err := validator.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q rejected: %w", p, err)
		}
		compiled = append(compiled, sp)
	}

	return &Guardrail{
		logger:   logger,
		compiled: compiled,
		action:   cfg.Action,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	for _, sp := range g.compiled {
		if !sp.MatchString(content) {
			continue
		}
		reason := fmt.Sprintf("content matched pattern %q", sp.String())
		details := map[string]interface{}{
			"pattern": sp.String(),
		}
		if m := sp.FindString(content); m != "" {
			details["match"] = m
		}
		if g.action == ActionWarn {
			return types.NewWarnResult(reason, 1.0).WithDetails(details), nil
		}
		return types.NewBlockResult(reason, 1.0).WithDetails(details), nil
	}
	return types.NewAllowResult("no patterns matched"), nil
}
