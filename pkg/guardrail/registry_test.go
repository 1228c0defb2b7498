package guardrail_test

import (
	"context"
	"errors"
	"testing"

	"github.com/NeuralTrust/TrustRail/pkg/guardrail"
	bedrockmocks "github.com/NeuralTrust/TrustRail/pkg/infra/bedrock/mocks"
	"github.com/NeuralTrust/TrustRail/pkg/infra/httpx"
	llmmocks "github.com/NeuralTrust/TrustRail/pkg/infra/llm/mocks"
	"github.com/NeuralTrust/TrustRail/pkg/patternsafety"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stubFactory(_ guardrail.Dependencies, _ types.Definition) (guardrail.Analyzer, error) {
	return stubAnalyzer{result: types.NewAllowResult("ok")}, nil
}

func TestRegister_RejectsEmptyKind(t *testing.T) {
	r := guardrail.NewRegistry()
	err := r.Register("", stubFactory)
	assert.ErrorContains(t, err, "kind cannot be empty")
}

func TestRegister_RejectsNilFactory(t *testing.T) {
	r := guardrail.NewRegistry()
	err := r.Register("stub", nil)
	assert.ErrorContains(t, err, "factory cannot be nil")
}

func TestRegister_RejectsDuplicateKind(t *testing.T) {
	r := guardrail.NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))
	err := r.Register("stub", stubFactory)
	assert.ErrorContains(t, err, "already registered")
}

func TestKinds_Sorted(t *testing.T) {
	r := guardrail.NewRegistry()
	require.NoError(t, r.Register("zeta", stubFactory))
	require.NoError(t, r.Register("alpha", stubFactory))
	require.NoError(t, r.Register("mid", stubFactory))
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Kinds())
}

func TestBuild_UnknownKindIsConfigError(t *testing.T) {
	r := guardrail.NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))

	_, err := r.Build(guardrail.Dependencies{Logger: testLogger()}, types.Definition{
		Name:      "mystery",
		Kind:      "nope",
		Direction: types.DirectionInput,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "nope"`)
	assert.Contains(t, err.Error(), "stub")
}

func TestBuild_ValidatesDefinition(t *testing.T) {
	r := guardrail.NewRegistry()
	require.NoError(t, r.Register("stub", stubFactory))

	_, err := r.Build(guardrail.Dependencies{Logger: testLogger()}, types.Definition{
		Kind:      "stub",
		Direction: types.DirectionInput,
	})
	assert.ErrorContains(t, err, "name is required")

	_, err = r.Build(guardrail.Dependencies{Logger: testLogger()}, types.Definition{
		Name:      "sideways",
		Kind:      "stub",
		Direction: "sideways",
	})
	assert.ErrorContains(t, err, "invalid direction")
}

func TestBuild_WrapsFactoryError(t *testing.T) {
	r := guardrail.NewRegistry()
	sentinel := errors.New("bad settings")
	require.NoError(t, r.Register("stub", func(_ guardrail.Dependencies, _ types.Definition) (guardrail.Analyzer, error) {
		return nil, sentinel
	}))

	_, err := r.Build(guardrail.Dependencies{Logger: testLogger()}, types.Definition{
		Name:      "broken",
		Kind:      "stub",
		Direction: types.DirectionInput,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), `guardrail "broken"`)
}

func TestNewDefaultRegistry_RegistersEveryKind(t *testing.T) {
	r := guardrail.NewDefaultRegistry()
	assert.Equal(t, []string{
		"bedrockguard",
		"classifier",
		"compound",
		"injection",
		"keyword",
		"length",
		"llmjudge",
		"pattern",
		"pii",
		"urls",
	}, r.Kinds())
}

func TestNewDefaultRegistry_BuildsEveryKind(t *testing.T) {
	bedrockClient := new(bedrockmocks.MockBedrockClient)
	bedrockClient.On("BuildClient", mock.Anything, mock.Anything).Return(bedrockClient, nil)

	deps := guardrail.Dependencies{
		Logger:    testLogger(),
		Validator: patternsafety.NewValidator(testLogger(), nil),
		HTTP:      httpx.NewFastHTTPClient(),
		Bedrock:   bedrockClient,
		LLM:       new(llmmocks.MockLLMClient),
	}

	cases := []struct {
		kind     string
		settings map[string]interface{}
	}{
		{"keyword", map[string]interface{}{"keywords": []string{"secret"}}},
		{"pattern", map[string]interface{}{"patterns": []string{`order-\d+`}}},
		{"length", map[string]interface{}{"max_chars": 100}},
		{"urls", map[string]interface{}{"blocked_domains": []string{"evil.example"}}},
		{"pii", map[string]interface{}{}},
		{"injection", map[string]interface{}{}},
		{"compound", map[string]interface{}{
			"rules": []map[string]interface{}{
				{"name": "r", "keyword": "x", "certainty": 50},
			},
			"bands": map[string]interface{}{
				"allow": map[string]interface{}{"from": 0, "to": 20},
				"warn":  map[string]interface{}{"from": 21, "to": 60},
				"block": map[string]interface{}{"from": 61, "to": 100},
			},
		}},
		{"classifier", map[string]interface{}{
			"url":        "http://scorer.internal/v1",
			"thresholds": map[string]interface{}{"toxicity": 0.5},
		}},
		{"bedrockguard", map[string]interface{}{
			"guardrail_id": "gr-1",
			"credentials": map[string]interface{}{
				"aws_access_key": "AKIATEST",
				"aws_secret_key": "secret",
				"aws_region":     "us-east-1",
			},
		}},
		{"llmjudge", map[string]interface{}{
			"api_key": "sk-test",
			"model":   "gpt-4o-mini",
		}},
	}

	r := guardrail.NewDefaultRegistry()
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			g, err := r.Build(deps, types.Definition{
				Name:      "check-" + tc.kind,
				Kind:      tc.kind,
				Direction: types.DirectionInput,
				Enabled:   true,
				Settings:  tc.settings,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.kind, g.Kind())
			assert.True(t, g.Enabled())
		})
	}
}

func TestNewDefaultRegistry_KeywordEndToEnd(t *testing.T) {
	r := guardrail.NewDefaultRegistry()
	g, err := r.Build(guardrail.Dependencies{Logger: testLogger()}, types.Definition{
		Name:      "no-codenames",
		Kind:      "keyword",
		Direction: types.DirectionInput,
		Enabled:   true,
		Settings:  map[string]interface{}{"keywords": []string{"skunkworks"}},
	})
	require.NoError(t, err)

	result, err := g.Analyze(context.Background(), "the skunkworks launch", nil)
	require.NoError(t, err)
	assert.True(t, result.Blocked)
}
