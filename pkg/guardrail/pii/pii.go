package pii

import (
	"context"
	"fmt"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/pii_entities"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "pii"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

type Config struct {
	Entities []string `mapstructure:"entities"`
	Action   string   `mapstructure:"action"`
}

// Guardrail detects preset PII entities (ssn, credit card, email, api
// keys, ...) in content. An empty entity list enables every preset.
type Guardrail struct {
	logger   *logrus.Logger
	entities []pii_entities.Entity
	action   string
}

func New(logger *logrus.Logger, def types.Definition) (*Guardrail, error) {
	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}

	entities := pii_entities.DetectionOrder
	if len(cfg.Entities) > 0 {
		requested := make(map[pii_entities.Entity]struct{}, len(cfg.Entities))
		for _, name := range cfg.Entities {
			e := pii_entities.Entity(name)
			if !pii_entities.Valid(e) {
				return nil, fmt.Errorf("unknown pii entity %q", name)
			}
			requested[e] = struct{}{}
		}
		// Keep detection order stable regardless of configuration order.
		entities = make([]pii_entities.Entity, 0, len(requested))
		for _, e := range pii_entities.DetectionOrder {
			if _, ok := requested[e]; ok {
				entities = append(entities, e)
			}
		}
	}

	return &Guardrail{
		logger:   logger,
		entities: entities,
		action:   cfg.Action,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	var found []string
	counts := make(map[string]interface{})
	for _, entity := range g.entities {
		matches := pii_entities.Patterns[entity].FindAllString(content, -1)
		if len(matches) == 0 {
			continue
		}
		found = append(found, string(entity))
		counts[string(entity)] = len(matches)
	}

	if len(found) == 0 {
		return types.NewAllowResult("no pii entities detected"), nil
	}

	reason := fmt.Sprintf("detected pii entities: %s", strings.Join(found, ", "))
	details := map[string]interface{}{
		"entities": found,
		"counts":   counts,
	}
	if g.action == ActionWarn {
		return types.NewWarnResult(reason, 1.0).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, 1.0).WithDetails(details), nil
}
