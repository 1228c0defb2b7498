package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/infra/httpx"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const Kind = "classifier"

const (
	ActionBlock = "block"
	ActionWarn  = "warn"
)

const (
	defaultAuthHeader             = "Token"
	defaultBreakerFailures        = 3
	defaultBreakerCooldownSeconds = 30
)

type Config struct {
	URL             string             `mapstructure:"url"`
	AuthHeader      string             `mapstructure:"auth_header"`
	AuthToken       string             `mapstructure:"auth_token"`
	Thresholds      map[string]float64 `mapstructure:"thresholds"`
	BreakerFailures uint32             `mapstructure:"breaker_failures"`
	BreakerCooldown int                `mapstructure:"breaker_cooldown"` // seconds
	Action          string             `mapstructure:"action"`
}

type scoreRequest struct {
	Input string `json:"input"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Guardrail scores content through a remote classification service. The
// service receives `{"input": <content>}` and answers with per-category
// scores; any category whose score exceeds its configured threshold flags
// the content. Calls run behind a circuit breaker so a failing scorer
// degrades into guardrail errors instead of piling up timeouts. The
// caller's context deadline bounds each request.
type Guardrail struct {
	logger     *logrus.Logger
	client     httpx.Client
	breaker    httpx.CircuitBreaker
	url        string
	authHeader string
	authToken  string
	thresholds map[string]float64
	categories []string
	action     string
}

func New(logger *logrus.Logger, client httpx.Client, def types.Definition) (*Guardrail, error) {
	if client == nil {
		return nil, fmt.Errorf("classifier guardrail requires an http client")
	}

	var cfg Config
	if err := mapstructure.Decode(def.Settings, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid classifier url %q", cfg.URL)
	}
	if len(cfg.Thresholds) == 0 {
		return nil, fmt.Errorf("at least one category threshold is required")
	}
	for category, threshold := range cfg.Thresholds {
		if category == "" {
			return nil, fmt.Errorf("category names must not be empty")
		}
		if threshold < 0 || threshold > 1 {
			return nil, fmt.Errorf("threshold for %q must be between 0 and 1, got %v", category, threshold)
		}
	}
	switch cfg.Action {
	case "":
		cfg.Action = ActionBlock
	case ActionBlock, ActionWarn:
	default:
		return nil, fmt.Errorf("invalid action %q", cfg.Action)
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = defaultAuthHeader
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = defaultBreakerCooldownSeconds
	}

	// Stable category order keeps reasons and details deterministic.
	categories := make([]string, 0, len(cfg.Thresholds))
	for category := range cfg.Thresholds {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return &Guardrail{
		logger:     logger,
		client:     client,
		breaker:    httpx.NewCircuitBreaker(def.Name, time.Duration(cfg.BreakerCooldown)*time.Second, cfg.BreakerFailures),
		url:        cfg.URL,
		authHeader: cfg.AuthHeader,
		authToken:  cfg.AuthToken,
		thresholds: cfg.Thresholds,
		categories: categories,
		action:     cfg.Action,
	}, nil
}

func (g *Guardrail) Analyze(ctx context.Context, content string, _ *conversation.Conversation) (types.Result, error) {
	payload, err := json.Marshal(scoreRequest{Input: content})
	if err != nil {
		return types.Result{}, fmt.Errorf("failed to marshal classifier request: %w", err)
	}

	var scores map[string]float64
	err = g.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build classifier request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if g.authToken != "" {
			req.Header.Set(g.authHeader, g.authToken)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("classifier request failed: %w", err)
		}
		body, err := httpx.ReadResponseBody(resp)
		if err != nil {
			return fmt.Errorf("failed to read classifier response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("classifier returned status %d", resp.StatusCode)
		}

		var parsed scoreResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("invalid classifier response: %w", err)
		}
		scores = parsed.Scores
		return nil
	})
	if err != nil {
		g.logger.WithError(err).Error("classifier call failed")
		return types.Result{}, err
	}

	var flagged []string
	maxScore := 0.0
	for _, category := range g.categories {
		score, ok := scores[category]
		if !ok {
			continue
		}
		threshold := g.thresholds[category]
		if score > threshold {
			flagged = append(flagged, fmt.Sprintf("%s (%.2f > %.2f)", category, score, threshold))
			if score > maxScore {
				maxScore = score
			}
		}
	}

	details := map[string]interface{}{
		"scores": scores,
	}
	if len(flagged) == 0 {
		return types.NewAllowResult("classifier scores within thresholds").WithDetails(details), nil
	}

	details["flagged"] = flagged
	reason := fmt.Sprintf("classifier flagged categories: %s", strings.Join(flagged, ", "))
	if g.action == ActionWarn {
		return types.NewWarnResult(reason, maxScore).WithDetails(details), nil
	}
	return types.NewBlockResult(reason, maxScore).WithDetails(details), nil
}
