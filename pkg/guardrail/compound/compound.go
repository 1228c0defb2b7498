package compound

import (
	"context"
	"fmt"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/patternsafety"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "compound"

// RuleConfig is one weighted signal: a pattern or a keyword matcher
// (exactly one) contributing its certainty to the total when it fires.
type RuleConfig struct {
	Name      string `mapstructure:"name"`
	Pattern   string `mapstructure:"pattern"`
	Keyword   string `mapstructure:"keyword"`
	Certainty int    `mapstructure:"certainty"`
}

type Config struct {
	Rules []RuleConfig `mapstructure:"rules"`
	Bands Bands        `mapstructure:"bands"`
}

type rule struct {
	name      string
	certainty int
	pattern   *patternsafety.SafePattern
	keyword   string
}

func (r rule) matches(content string) bool {
	if r.pattern != nil {
		return r.pattern.MatchString(content)
	}
	return strings.Contains(strings.ToLower(content), r.keyword)
}

// Guardrail combines weighted rules: certainties of matched rules add up,
// the clamped total selects a decision band. Evaluation is deterministic
// and independent of rule order because addition commutes.
type Guardrail struct {
	logger *logrus.Logger
	rules  []rule
	bands  Bands
}

func New(logger *logrus.Logger, validator *patternsafety.Validator, def types.Definition) (*Guardrail, error) {
	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	bands, err := NewBands(cfg.Bands.Allow, cfg.Bands.Warn, cfg.Bands.Block)
	if err != nil {
		return nil, fmt.Errorf("invalid bands: %w", err)
	}

	rules := make([]rule, 0, len(cfg.Rules))
	seen := make(map[string]struct{}, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		if rc.Name == "" {
			return nil, fmt.Errorf("rules must be named")
		}
		if _, dup := seen[rc.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", rc.Name)
		}
		seen[rc.Name] = struct{}{}

		if rc.Certainty < 1 || rc.Certainty > 100 {
			return nil, fmt.Errorf("rule %q: certainty must be within 1..100, got %d", rc.Name, rc.Certainty)
		}
		if (rc.Pattern == "") == (rc.Keyword == "") {
			return nil, fmt.Errorf("rule %q: exactly one of pattern or keyword is required", rc.Name)
		}

		r := rule{name: rc.Name, certainty: rc.Certainty}
		if rc.Pattern != "" {
			if validator == nil {
				return nil, fmt.Errorf("rule %q: pattern rules require a pattern validator", rc.Name)
			}
			sp, err := validator.Compile(rc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: pattern rejected: %w", rc.Name, err)
			}
			r.pattern = sp
		} else {
			r.keyword = strings.ToLower(rc.Keyword)
		}
		rules = append(rules, r)
	}

	return &Guardrail{
		logger: logger,
		rules:  rules,
		bands:  bands,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	total := 0
	var matched []string
	for _, r := range g.rules {
		if r.matches(content) {
			total += r.certainty
			matched = append(matched, r.name)
		}
	}
	if total > 100 {
		total = 100
	}

	decision := g.bands.DecisionFor(total)
	confidence := float64(total) / 100.0
	details := map[string]interface{}{
		"score":         total,
		"matched_rules": matched,
		"band":          string(decision),
	}

	switch decision {
	case types.DecisionBlock:
		reason := fmt.Sprintf("combined certainty %d falls in the block band (rules: %s)",
			total, strings.Join(matched, ", "))
		return types.NewBlockResult(reason, confidence).WithDetails(details), nil
	case types.DecisionWarn:
		reason := fmt.Sprintf("combined certainty %d falls in the warn band (rules: %s)",
			total, strings.Join(matched, ", "))
		return types.NewWarnResult(reason, confidence).WithDetails(details), nil
	default:
		return types.NewAllowResult(
			fmt.Sprintf("combined certainty %d falls in the allow band", total),
		).WithDetails(details), nil
	}
}
