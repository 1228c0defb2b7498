package llmjudge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/infra/llm"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "llmjudge"

const (
	VerdictSafe   = "SAFE"
	VerdictWarn   = "WARN"
	VerdictUnsafe = "UNSAFE"
)

const defaultMaxTokens = 64

// The judge must answer on this contract; parseVerdict rejects anything
// else so a drifting model surfaces as a guardrail error instead of a
// silent allow.
const defaultSystemPrompt = `You are a strict content safety judge for an LLM application.
Assess the text supplied by the user and answer with exactly one line of the form:

VERDICT: SAFE|WARN|UNSAFE CONFIDENCE: <0.00-1.00>

SAFE means the text is acceptable. WARN means it is suspicious but not
clearly harmful. UNSAFE means it must be blocked. Do not add anything
else to your answer.`

var (
	verdictPattern    = regexp.MustCompile(`(?i)\bVERDICT:\s*(SAFE|WARN|UNSAFE)\b`)
	confidencePattern = regexp.MustCompile(`(?i)\bCONFIDENCE:\s*([0-9]*\.?[0-9]+)`)
)

// Config addresses the judge model. A custom system_prompt may reword
// the instructions but has to keep the VERDICT line contract.
type Config struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature"`
}

// Guardrail asks an OpenAI-compatible model to judge the content and
// maps its verdict onto a Result.
type Guardrail struct {
	logger *logrus.Logger
	client llm.Client
	ask    *llm.Config
}

func New(logger *logrus.Logger, client llm.Client, def types.Definition) (*Guardrail, error) {
	if client == nil {
		return nil, fmt.Errorf("llmjudge guardrail requires an llm client")
	}

	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	return &Guardrail{
		logger: logger,
		client: client,
		ask: &llm.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
		},
	}, nil
}

// Available reports whether the judge can be reached at all.
func (g *Guardrail) Available() bool {
	return g.client != nil && g.ask.APIKey != ""
}

func (g *Guardrail) Analyze(ctx context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	if content == "" {
		return types.NewAllowResult("no content to inspect"), nil
	}

	completion, err := g.client.Ask(ctx, g.ask, content)
	if err != nil {
		g.logger.WithError(err).Error("judge completion failed")
		return types.Result{}, fmt.Errorf("judge completion failed: %w", err)
	}

	verdict, confidence, err := parseVerdict(completion.Response)
	if err != nil {
		return types.Result{}, err
	}

	details := map[string]interface{}{
		"verdict": verdict,
		"model":   completion.Model,
		"tokens":  completion.Usage.TotalTokens,
	}
	switch verdict {
	case VerdictUnsafe:
		return types.NewBlockResult("judge ruled the content unsafe", confidence).WithDetails(details), nil
	case VerdictWarn:
		return types.NewWarnResult("judge flagged the content as suspicious", confidence).WithDetails(details), nil
	default:
		return types.NewAllowResult("judge ruled the content safe").WithDetails(details), nil
	}
}

// parseVerdict extracts the verdict token and its confidence. A missing
// or unknown verdict is an error. A missing confidence takes the
// verdict at full weight.
func parseVerdict(response string) (string, float64, error) {
	m := verdictPattern.FindStringSubmatch(response)
	if m == nil {
		return "", 0, fmt.Errorf("unrecognized judge verdict in %q", truncate(response, 120))
	}
	verdict := strings.ToUpper(m[1])

	confidence := 1.0
	if cm := confidencePattern.FindStringSubmatch(response); cm != nil {
		if v, err := strconv.ParseFloat(cm[1], 64); err == nil {
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			confidence = v
		}
	}
	return verdict, confidence, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
