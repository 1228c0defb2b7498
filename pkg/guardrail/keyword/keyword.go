package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/NeuralTrust/TrustRail/pkg/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "keyword"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

type Config struct {
	Keywords            []string `mapstructure:"keywords"`
	CaseSensitive       bool     `mapstructure:"case_sensitive"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	Action              string   `mapstructure:"action"`
}

// Guardrail flags content containing configured keywords. With a
// similarity threshold set, words within Levenshtein similarity of a
// keyword also match, catching near-miss spellings.
type Guardrail struct {
	logger   *logrus.Logger
	keywords []string
	cfg      Config
}

func New(logger *logrus.Logger, def types.Definition) (*Guardrail, error) {
	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}
	for _, k := range cfg.Keywords {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("keywords cannot be blank")
		}
	}
	if t := cfg.SimilarityThreshold; t != 0 && (t < 0 || t >= 1) {
		return nil, fmt.Errorf("similarity_threshold must be within (0, 1), got %v", t)
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}

	keywords := make([]string, len(cfg.Keywords))
	for i, k := range cfg.Keywords {
		if cfg.CaseSensitive {
			keywords[i] = k
		} else {
			keywords[i] = strings.ToLower(k)
		}
	}

	return &Guardrail{
		logger:   logger,
		keywords: keywords,
		cfg:      cfg,
	}, nil
}

type match struct {
	Keyword    string  `json:"keyword"`
	Word       string  `json:"word,omitempty"`
	Similarity float64 `json:"similarity"`
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	haystack := content
	if !g.cfg.CaseSensitive {
		haystack = strings.ToLower(content)
	}

	var matches []match
	for _, keyword := range g.keywords {
		if strings.Contains(haystack, keyword) {
			matches = append(matches, match{Keyword: keyword, Similarity: 1.0})
		}
	}

	if g.cfg.SimilarityThreshold > 0 {
		matches = append(matches, g.similarMatches(haystack)...)
	}

	if len(matches) == 0 {
		return types.NewAllowResult("no blocked keywords found"), nil
	}

	confidence := 0.0
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Similarity > confidence {
			confidence = m.Similarity
		}
		names = append(names, m.Keyword)
	}

	reason := fmt.Sprintf("content contains blocked keywords: %s", strings.Join(names, ", "))
	details := map[string]interface{}{"matches": matches}

	if g.cfg.Action == ActionWarn {
		return types.NewWarnResult(reason, confidence).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, confidence).WithDetails(details), nil
}

// similarMatches compares every word of the content against every keyword
// that did not already match exactly.
func (g *Guardrail) similarMatches(haystack string) []match {
	var out []match
	words := strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ',' || r == '.' || r == ';' || r == ':' || r == '!' || r == '?'
	})
	for _, keyword := range g.keywords {
		if strings.Contains(haystack, keyword) {
			continue
		}
		for _, word := range words {
			score := similarity(word, keyword)
			if score >= g.cfg.SimilarityThreshold {
				out = append(out, match{Keyword: keyword, Word: word, Similarity: score})
				break
			}
		}
	}
	return out
}

func similarity(s1, s2 string) float64 {
	longest := len(s1)
	if len(s2) > longest {
		longest = len(s2)
	}
	if longest == 0 {
		return 1.0
	}
	distance := utils.LevenshteinDistance(s1, s2)
	return 1.0 - float64(distance)/float64(longest)
}
