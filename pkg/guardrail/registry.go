package guardrail

import (
	"fmt"
	"sort"

	"github.com/NeuralTrust/TrustRail/pkg/guardrail/bedrockguard"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/classifier"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/compound"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/injection"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/keyword"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/length"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/llmjudge"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/pattern"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/pii"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail/urls"
	"github.com/NeuralTrust/TrustRail/pkg/types"
)

// Factory builds one kind's analyzer from a definition. Factories must
// validate their settings and fail construction rather than defer errors to
// evaluation time.
type Factory func(deps Dependencies, def types.Definition) (Analyzer, error)

// Registry maps kind names to factories. There is no package-level
// registry; callers construct one (usually via NewDefaultRegistry) and
// share it explicitly.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("guardrail kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("guardrail kind %q: factory cannot be nil", kind)
	}
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("guardrail kind %q is already registered", kind)
	}
	r.factories[kind] = factory
	return nil
}

// Kinds lists the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build validates the definition, constructs the kind's analyzer and wraps
// it into a Guardrail. An unknown kind is a configuration error.
func (r *Registry) Build(deps Dependencies, def types.Definition) (types.Guardrail, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	factory, ok := r.factories[def.Kind]
	if !ok {
		return nil, fmt.Errorf("guardrail %q: unknown kind %q (registered: %v)", def.Name, def.Kind, r.Kinds())
	}
	analyzer, err := factory(deps, def)
	if err != nil {
		return nil, fmt.Errorf("guardrail %q: %w", def.Name, err)
	}
	g := &instance{
		def:      def,
		settings: copySettings(def.Settings),
		analyzer: analyzer,
	}
	g.enabled.Store(def.Enabled)
	return g, nil
}

// NewDefaultRegistry returns a registry with every shipped kind registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Register cannot fail here: kinds are distinct and factories non-nil.
	_ = r.Register(keyword.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return keyword.New(deps.Logger, def)
	})
	_ = r.Register(pattern.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return pattern.New(deps.Logger, deps.Validator, def)
	})
	_ = r.Register(length.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return length.New(deps.Logger, def)
	})
	_ = r.Register(urls.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return urls.New(deps.Logger, def)
	})
	_ = r.Register(pii.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return pii.New(deps.Logger, def)
	})
	_ = r.Register(injection.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return injection.New(deps.Logger, def)
	})
	_ = r.Register(compound.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return compound.New(deps.Logger, deps.Validator, def)
	})
	_ = r.Register(classifier.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return classifier.New(deps.Logger, deps.HTTP, def)
	})
	_ = r.Register(bedrockguard.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return bedrockguard.New(deps.Logger, deps.Bedrock, def)
	})
	_ = r.Register(llmjudge.Kind, func(deps Dependencies, def types.Definition) (Analyzer, error) {
		return llmjudge.New(deps.Logger, deps.LLM, def)
	})
	return r
}
