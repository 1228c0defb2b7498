// Package guardrail builds guardrail instances from definitions. Each kind
// lives in its own subpackage and implements Analyzer; this package wraps
// the analyzer with the identity, enable/disable state and settings snapshot
// the engine addresses it by.
package guardrail

import (
	"context"
	"sync/atomic"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/infra/bedrock"
	"github.com/NeuralTrust/TrustRail/pkg/infra/httpx"
	"github.com/NeuralTrust/TrustRail/pkg/infra/llm"
	"github.com/NeuralTrust/TrustRail/pkg/patternsafety"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/sirupsen/logrus"
)

// Analyzer is the narrow contract a kind implements: judge one piece of
// content. Identity, enablement and configuration reporting are handled by
// the wrapper, so kinds stay pure detectors.
type Analyzer interface {
	Analyze(ctx context.Context, content string, conv *conversation.Conversation) (types.Result, error)
}

// availability is implemented by kinds whose readiness depends on an
// external collaborator (remote endpoint, cloud client, API key).
type availability interface {
	Available() bool
}

// Dependencies carries the injected collaborators kinds are built from.
// Fields a given kind does not use may be nil; kinds that require one fail
// construction when it is missing.
type Dependencies struct {
	Logger    *logrus.Logger
	Validator *patternsafety.Validator
	HTTP      httpx.Client
	Bedrock   bedrock.Client
	LLM       llm.Client
}

type instance struct {
	def      types.Definition
	settings map[string]interface{}
	analyzer Analyzer
	enabled  atomic.Bool
}

func (g *instance) Name() string {
	return g.def.Name
}

func (g *instance) Kind() string {
	return g.def.Kind
}

func (g *instance) Direction() types.Direction {
	return g.def.Direction
}

func (g *instance) Enabled() bool {
	return g.enabled.Load()
}

// SetEnabled toggles the instance at runtime. The engine reaches it through
// a type assertion so the public Guardrail contract stays read-only.
func (g *instance) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *instance) IsAvailable() bool {
	if a, ok := g.analyzer.(availability); ok {
		return a.Available()
	}
	return true
}

// Config returns a copy; callers cannot reach the instance's settings.
func (g *instance) Config() map[string]interface{} {
	return copySettings(g.settings)
}

func (g *instance) Analyze(ctx context.Context, content string, conv *conversation.Conversation) (types.Result, error) {
	return g.analyzer.Analyze(ctx, content, conv)
}

func copySettings(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
