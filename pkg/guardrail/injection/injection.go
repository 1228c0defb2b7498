package injection

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "injection"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

const (
	FamilyInstructionOverride = "instruction_override"
	FamilyRolePlay            = "role_play"
	FamilyDelimiterEscape     = "delimiter_escape"
	FamilyExfiltration        = "exfiltration"
)

// familyPatterns are first-party presets, written without backtracking
// hazards. Caller-supplied patterns belong in the pattern kind, which
// gates them through the safety validator.
var familyPatterns = map[string][]*regexp.Regexp{
	FamilyInstructionOverride: {
		regexp.MustCompile(`(?i)ignore\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions|prompts?|rules|directives)`),
		regexp.MustCompile(`(?i)disregard\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier|your)\s+(?:instructions|prompts?|rules|guidelines)`),
		regexp.MustCompile(`(?i)forget\s+(?:everything\s+(?:above|before)|all\s+(?:previous|prior)\s+\w+|your\s+(?:instructions|rules|training))`),
		regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`),
		regexp.MustCompile(`(?i)override\s+(?:the\s+)?(?:system|safety|previous)`),
		regexp.MustCompile(`(?i)from\s+now\s+on\s+you\s+(?:are|will|must)`),
	},
	FamilyRolePlay: {
		regexp.MustCompile(`(?i)pretend\s+(?:to\s+be|that\s+you\s+are|you\s+are)`),
		regexp.MustCompile(`(?i)\bact\s+as\s+(?:if\s+you|though\s+you|an?\s+(?:unrestricted|unfiltered|jailbroken))`),
		regexp.MustCompile(`(?i)\byou\s+are\s+(?:now\s+)?(?:dan|aim|jailbroken|unfiltered|unrestricted)\b`),
		regexp.MustCompile(`(?i)\broleplay\s+as\b`),
		regexp.MustCompile(`(?i)\bwithout\s+(?:any\s+)?(?:restrictions|filters|limitations|censorship)\b`),
	},
	FamilyDelimiterEscape: {
		regexp.MustCompile("(?i)```\\s*(?:system|assistant)"),
		regexp.MustCompile(`(?i)<\|?(?:im_start|im_end|system|endoftext)\|?>`),
		regexp.MustCompile(`(?i)\[/?(?:INST|SYS)\]`),
		regexp.MustCompile(`(?i)###\s*(?:system|instruction|admin)`),
		regexp.MustCompile(`(?i)\bend\s+of\s+(?:system\s+)?(?:prompt|instructions)\b`),
		regexp.MustCompile(`(?i)<\s*/?\s*system\s*>`),
	},
	FamilyExfiltration: {
		regexp.MustCompile(`(?i)(?:reveal|show|print|repeat|output|display|tell)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|initial\s+prompt|instructions|hidden\s+rules)`),
		regexp.MustCompile(`(?i)what\s+(?:are|were)\s+your\s+(?:instructions|rules|guidelines)`),
		regexp.MustCompile(`(?i)\brepeat\s+(?:everything|all\s+text)\s+above\b`),
	},
}

// DefaultIndicators returns the phrase list the suspicious context
// strategy falls back to when a definition configures none.
func DefaultIndicators() []string {
	return []string{
		"ignore previous instructions",
		"ignore all previous",
		"disregard",
		"new instructions:",
		"system prompt",
		"jailbreak",
		"jailbroken",
		"pretend to be",
		"roleplay as",
		"without restrictions",
		"reveal your instructions",
	}
}

// Families lists the available preset family names, sorted.
func Families() []string {
	names := make([]string, 0, len(familyPatterns))
	for name := range familyPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Config struct {
	Families []string                    `mapstructure:"families"`
	Action   string                      `mapstructure:"action"`
	Context  conversation.StrategyConfig `mapstructure:"context"`
}

// Guardrail detects prompt-injection and jailbreak attempts using preset
// pattern families. With a context strategy configured it also scans the
// selected prior turns, catching payloads spread across a conversation.
type Guardrail struct {
	logger   *logrus.Logger
	families []string
	action   string
	ctxCfg   conversation.StrategyConfig
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

	families := cfg.Families
	if len(families) == 0 {
		families = Families()
	} else {
		for _, f := range families {
			if _, ok := familyPatterns[f]; !ok {
				return nil, fmt.Errorf("unknown injection family %q (available: %v)", f, Families())
			}
		}
	}

	ctxCfg := cfg.Context
	if ctxCfg.Strategy != "" && len(ctxCfg.Indicators) == 0 {
		ctxCfg.Indicators = DefaultIndicators()
	}

	return &Guardrail{
		logger:   logger,
		families: families,
		action:   cfg.Action,
		ctxCfg:   ctxCfg,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, conv *conversation.Conversation) (types.Result, error) {
	hits := g.scan(content)

	fromContext := false
	if g.ctxCfg.Strategy != "" && conv != nil {
		for _, turn := range conv.ContextTurns(g.ctxCfg) {
			contextHits := g.scan(turn.Content + "\n" + turn.Response)
			if len(contextHits) > 0 {
				fromContext = true
				hits = mergeHits(hits, contextHits)
			}
		}
	}

	if len(hits) == 0 {
		return types.NewAllowResult("no injection patterns detected"), nil
	}

	names := make([]string, 0, len(hits))
	samples := make(map[string]interface{}, len(hits))
	for _, f := range Families() {
		if sample, ok := hits[f]; ok {
			names = append(names, f)
			samples[f] = sample
		}
	}

	confidence := 0.85
	if len(names) > 1 {
		confidence = 0.95
	}

	reason := fmt.Sprintf("prompt injection indicators detected: %s", strings.Join(names, ", "))
	details := map[string]interface{}{
		"families": names,
		"matches":  samples,
	}
	if fromContext {
		details["from_context"] = true
	}

	if g.action == ActionWarn {
		return types.NewWarnResult(reason, confidence).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, confidence).WithDetails(details), nil
}

// scan returns family name → first matched snippet.
func (g *Guardrail) scan(content string) map[string]string {
	hits := make(map[string]string)
	for _, family := range g.families {
		for _, re := range familyPatterns[family] {
			if m := re.FindString(content); m != "" {
				hits[family] = m
				break
			}
		}
	}
	return hits
}

func mergeHits(dst, src map[string]string) map[string]string {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}
