package conversation

import (
	"sort"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/common"
)

const defaultRecentTurns = 5

// StrategyConfig selects which turns a multi-turn-aware guardrail sees.
// Selection is deterministic: the same history and configuration always
// produce the same slice.
type StrategyConfig struct {
	Strategy    string       `json:"strategy" mapstructure:"strategy"`
	RecentTurns int          `json:"recent_turns" mapstructure:"recent_turns"`
	Indicators  []string     `json:"indicators" mapstructure:"indicators"`
	MaxTurns    int          `json:"max_turns" mapstructure:"max_turns"`
	TokenBudget int          `json:"token_budget" mapstructure:"token_budget"`
	Counter     TokenCounter `json:"-" mapstructure:"-"`
}

// ContextTurns applies the configured strategy to the history and
// returns the selected turns, oldest first.
func (c *Conversation) ContextTurns(cfg StrategyConfig) []Turn {
	c.mu.RLock()
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	c.mu.RUnlock()

	switch cfg.Strategy {
	case common.SuspiciousStrategyName:
		return truncate(selectSuspicious(turns, cfg.Indicators), cfg)
	case common.MixedStrategyName:
		recent := lastN(turns, recentCount(cfg))
		suspicious := selectSuspicious(turns, cfg.Indicators)
		return truncate(mergeChronological(turns, recent, suspicious), cfg)
	case common.RecentStrategyName, "":
		return truncate(lastN(turns, recentCount(cfg)), cfg)
	default:
		return truncate(lastN(turns, recentCount(cfg)), cfg)
	}
}

func recentCount(cfg StrategyConfig) int {
	if cfg.RecentTurns > 0 {
		return cfg.RecentTurns
	}
	return defaultRecentTurns
}

func lastN(turns []Turn, n int) []Turn {
	if n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

// selectSuspicious returns turns whose prompt or response contains any
// indicator (case-insensitive), together with their immediate
// neighbors, in chronological order.
func selectSuspicious(turns []Turn, indicators []string) []Turn {
	if len(indicators) == 0 {
		return nil
	}
	marked := make(map[int]struct{})
	for i, t := range turns {
		haystack := strings.ToLower(t.Content + " " + t.Response)
		for _, needle := range indicators {
			if needle == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(needle)) {
				marked[i] = struct{}{}
				if i > 0 {
					marked[i-1] = struct{}{}
				}
				if i < len(turns)-1 {
					marked[i+1] = struct{}{}
				}
				break
			}
		}
	}
	if len(marked) == 0 {
		return nil
	}
	idx := make([]int, 0, len(marked))
	for i := range marked {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]Turn, 0, len(idx))
	for _, i := range idx {
		out = append(out, turns[i])
	}
	return out
}

// mergeChronological unions the selections, deduplicated by position in
// the original history.
func mergeChronological(all []Turn, selections ...[]Turn) []Turn {
	pos := make(map[int]struct{})
	for _, sel := range selections {
		for _, t := range sel {
			if i := indexOf(all, t); i >= 0 {
				pos[i] = struct{}{}
			}
		}
	}
	idx := make([]int, 0, len(pos))
	for i := range pos {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]Turn, 0, len(idx))
	for _, i := range idx {
		out = append(out, all[i])
	}
	return out
}

func indexOf(all []Turn, t Turn) int {
	for i := range all {
		if all[i].Timestamp.Equal(t.Timestamp) && all[i].Content == t.Content {
			return i
		}
	}
	return -1
}

// truncate drops oldest turns first until the selection fits the turn
// budget, then the token budget. The newest turn is always kept.
func truncate(turns []Turn, cfg StrategyConfig) []Turn {
	if cfg.MaxTurns > 0 && len(turns) > cfg.MaxTurns {
		turns = turns[len(turns)-cfg.MaxTurns:]
	}
	if cfg.TokenBudget <= 0 || len(turns) == 0 {
		return turns
	}

	counter := cfg.Counter
	if counter == nil {
		counter = EstimateTokens
	}
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := counter(turns[i].Content) + counter(turns[i].Response)
		if total+cost > cfg.TokenBudget && start < len(turns) {
			break
		}
		total += cost
		start = i
	}
	return turns[start:]
}
