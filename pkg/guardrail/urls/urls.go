package urls

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "urls"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

// urlPattern finds scheme URLs and bare www hosts; trailing punctuation is
// trimmed after extraction.
var urlPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)

type Config struct {
	AllowedDomains []string `mapstructure:"allowed_domains"`
	BlockedDomains []string `mapstructure:"blocked_domains"`
	Action         string   `mapstructure:"action"`
}

// Guardrail extracts URLs from content and checks their hosts against
// domain lists. A blocklist flags matching hosts; an allowlist flags every
// host outside it. Subdomains match their parent domain.
type Guardrail struct {
	logger  *logrus.Logger
	allowed []string
	blocked []string
	action  string
}

func New(logger *logrus.Logger, def types.Definition) (*Guardrail, error) {
	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(cfg.AllowedDomains) == 0 && len(cfg.BlockedDomains) == 0 {
		return nil, fmt.Errorf("allowed_domains or blocked_domains must be set")
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}

	return &Guardrail{
		logger:  logger,
		allowed: normalizeDomains(cfg.AllowedDomains),
		blocked: normalizeDomains(cfg.BlockedDomains),
		action:  cfg.Action,
	}, nil
}

func (g *Guardrail) Analyze(_ context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	found := urlPattern.FindAllString(content, -1)
	if len(found) == 0 {
		return types.NewAllowResult("no urls found"), nil
	}

	var offending []string
	hosts := make([]string, 0, len(found))
	for _, raw := range found {
		host := extractHost(raw)
		if host == "" {
			continue
		}
		hosts = append(hosts, host)

		if matchesAny(host, g.blocked) {
			offending = append(offending, host)
			continue
		}
		if len(g.allowed) > 0 && !matchesAny(host, g.allowed) {
			offending = append(offending, host)
		}
	}

	details := map[string]interface{}{
		"urls":  found,
		"hosts": hosts,
	}
	if len(offending) == 0 {
		return types.NewAllowResult("all urls permitted").WithDetails(details), nil
	}

	details["offending_hosts"] = offending
	reason := fmt.Sprintf("content links to disallowed domains: %s", strings.Join(offending, ", "))
	if g.action == ActionWarn {
		return types.NewWarnResult(reason, 1.0).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, 1.0).WithDetails(details), nil
}

func extractHost(raw string) string {
	raw = strings.TrimRight(raw, ".,;:!?)")
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchesAny reports whether the host equals a domain or is one of its
// subdomains.
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "*.")
		d = strings.TrimSuffix(d, ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
