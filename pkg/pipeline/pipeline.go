// Package pipeline runs configured guardrails against conversation content
// and merges their verdicts into a single evaluation. Input and output
// guardrails form independent collections; the pipeline itself holds no
// conversation state.
package pipeline

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/TrustRail/pkg/audit"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail"
	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/NeuralTrust/TrustRail/pkg/types"
)

const defaultConcurrency = 4

// Pipeline evaluates content against two ordered guardrail collections,
// one per direction. Definition order is evaluation order for merging.
type Pipeline struct {
	logger      *logrus.Logger
	collections map[types.Direction]*collection
	auditLog    audit.Log
	limiter     ratelimit.Store
	concurrency int
	timeout     time.Duration
	metrics     bool
	clock       func() time.Time
}

// collection keeps a direction's guardrails in definition order alongside
// their definitions, needed at evaluation time for on_error resolution.
type collection struct {
	guardrails []types.Guardrail
	defs       map[string]types.Definition
}

type Option func(*Pipeline)

// WithAuditLog attaches an audit log. Without one, evaluations are not
// recorded.
func WithAuditLog(log audit.Log) Option {
	return func(p *Pipeline) { p.auditLog = log }
}

// WithRateLimiter attaches the store consulted for conversations that
// carry rate limits.
func WithRateLimiter(store ratelimit.Store) Option {
	return func(p *Pipeline) { p.limiter = store }
}

// WithConcurrency bounds the guardrail fan-out per evaluation. Values
// below one keep the default.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTimeout sets the per-evaluation deadline. Zero means no deadline
// beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics enables Prometheus recording for evaluations.
func WithMetrics(enabled bool) Option {
	return func(p *Pipeline) { p.metrics = enabled }
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New builds both collections from the definitions. Every definition is
// validated and constructed through the registry; a duplicate name within
// a direction fails construction.
func New(registry *guardrail.Registry, deps guardrail.Dependencies, defs []types.Definition, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline requires a registry")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("pipeline requires a logger")
	}

	p := &Pipeline{
		logger: deps.Logger,
		collections: map[types.Direction]*collection{
			types.DirectionInput:  {defs: make(map[string]types.Definition)},
			types.DirectionOutput: {defs: make(map[string]types.Definition)},
		},
		concurrency: defaultConcurrency,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, def := range defs {
		g, err := registry.Build(deps, def)
		if err != nil {
			return nil, err
		}
		col := p.collections[def.Direction]
		if _, exists := col.defs[def.Name]; exists {
			return nil, fmt.Errorf("duplicate guardrail name %q for direction %s", def.Name, def.Direction)
		}
		col.defs[def.Name] = def
		col.guardrails = append(col.guardrails, g)
	}
	return p, nil
}

// Guardrails returns the direction's guardrails in definition order.
func (p *Pipeline) Guardrails(direction types.Direction) []types.Guardrail {
	col, ok := p.collections[direction]
	if !ok {
		return nil
	}
	out := make([]types.Guardrail, len(col.guardrails))
	copy(out, col.guardrails)
	return out
}

// SetEnabled toggles one guardrail in one direction. The other direction
// is untouched even when it holds a guardrail with the same name.
func (p *Pipeline) SetEnabled(name string, direction types.Direction, enabled bool) error {
	col, ok := p.collections[direction]
	if !ok {
		return fmt.Errorf("invalid direction %q", direction)
	}
	for _, g := range col.guardrails {
		if g.Name() != name {
			continue
		}
		toggler, ok := g.(interface{ SetEnabled(bool) })
		if !ok {
			return fmt.Errorf("guardrail %q cannot be toggled", name)
		}
		toggler.SetEnabled(enabled)
		p.logger.WithFields(logrus.Fields{
			"guardrail": name,
			"direction": direction,
			"enabled":   enabled,
		}).Info("guardrail toggled")
		return nil
	}
	return fmt.Errorf("no guardrail named %q for direction %s", name, direction)
}
