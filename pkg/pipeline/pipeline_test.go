package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeuralTrust/TrustRail/pkg/audit"
	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/guardrail"
	metrics "github.com/NeuralTrust/TrustRail/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustRail/pkg/pipeline"
	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/NeuralTrust/TrustRail/pkg/types"
)

const scriptedKind = "scripted"

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// scripted is a controllable analyzer. The test registry resolves each
// definition name to its own instance, so one pipeline can mix verdicts,
// errors and panics.
type scripted struct {
	mu     sync.Mutex
	calls  int
	result types.Result
	err    error
	panics bool
	delay  time.Duration
}

func (s *scripted) Analyze(ctx context.Context, _ string, _ *conversation.Conversation) (types.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return types.Result{}, ctx.Err()
		}
	}
	if s.panics {
		panic("scripted failure")
	}
	return s.result, s.err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type unavailable struct{ scripted }

func (u *unavailable) Available() bool { return false }

// probe counts in-flight Analyze calls to observe the fan-out bound.
type probe struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
	hold     time.Duration
}

func (p *probe) Analyze(context.Context, string, *conversation.Conversation) (types.Result, error) {
	p.mu.Lock()
	p.calls++
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(p.hold)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return types.NewAllowResult("ok"), nil
}

func (p *probe) Peak() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak
}

func (p *probe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memorySink captures audit records in write order.
type memorySink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *memorySink) Write(rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Flush() error { return nil }
func (s *memorySink) Close() error { return nil }

func (s *memorySink) Records() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Record, len(s.records))
	copy(out, s.records)
	return out
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) CheckAndRecord(context.Context, string, ratelimit.Limits) (ratelimit.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return ratelimit.Decision{}, errors.New("store unavailable")
}

func (s *failingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func definition(name string, direction types.Direction) types.Definition {
	return types.Definition{
		Name:      name,
		Kind:      scriptedKind,
		Direction: direction,
		Enabled:   true,
	}
}

func newPipeline(t *testing.T, analyzers map[string]guardrail.Analyzer, defs []types.Definition, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	registry := guardrail.NewRegistry()
	err := registry.Register(scriptedKind, func(_ guardrail.Dependencies, def types.Definition) (guardrail.Analyzer, error) {
		a, ok := analyzers[def.Name]
		if !ok {
			return nil, fmt.Errorf("no scripted analyzer named %q", def.Name)
		}
		return a, nil
	})
	require.NoError(t, err)

	p, err := pipeline.New(registry, guardrail.Dependencies{Logger: testLogger()}, defs, opts...)
	require.NoError(t, err)
	return p
}

func memoryStore(t *testing.T) *ratelimit.MemoryStore {
	t.Helper()
	store := ratelimit.NewMemoryStore(testLogger(), nil)
	t.Cleanup(store.Stop)
	return store
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := pipeline.New(nil, guardrail.Dependencies{Logger: testLogger()}, nil)
	require.ErrorContains(t, err, "requires a registry")
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := pipeline.New(guardrail.NewRegistry(), guardrail.Dependencies{}, nil)
	require.ErrorContains(t, err, "requires a logger")
}

func TestNew_RejectsDuplicateNamePerDirection(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{"dup": &scripted{result: types.NewAllowResult("ok")}}
	registry := guardrail.NewRegistry()
	require.NoError(t, registry.Register(scriptedKind, func(_ guardrail.Dependencies, def types.Definition) (guardrail.Analyzer, error) {
		return analyzers[def.Name], nil
	}))

	_, err := pipeline.New(registry, guardrail.Dependencies{Logger: testLogger()}, []types.Definition{
		definition("dup", types.DirectionInput),
		definition("dup", types.DirectionInput),
	})
	require.ErrorContains(t, err, `duplicate guardrail name "dup"`)
}

func TestNew_AllowsSameNameAcrossDirections(t *testing.T) {
	shared := &scripted{result: types.NewAllowResult("ok")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"shared": shared}, []types.Definition{
		definition("shared", types.DirectionInput),
		definition("shared", types.DirectionOutput),
	})

	assert.Len(t, p.Guardrails(types.DirectionInput), 1)
	assert.Len(t, p.Guardrails(types.DirectionOutput), 1)
}

func TestNew_PropagatesConstructionErrors(t *testing.T) {
	def := definition("mystery", types.DirectionInput)
	def.Kind = "nope"
	_, err := pipeline.New(guardrail.NewRegistry(), guardrail.Dependencies{Logger: testLogger()}, []types.Definition{def})
	require.ErrorContains(t, err, `unknown kind "nope"`)
}

func TestCheckInput_MergesBySeverity(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"blocker": &scripted{result: types.NewBlockResult("contains profanity", 0.9)},
		"warner":  &scripted{result: types.NewWarnResult("looks suspicious", 0.5)},
		"allower": &scripted{result: types.NewAllowResult("clean")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("blocker", types.DirectionInput),
		definition("warner", types.DirectionInput),
		definition("allower", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.True(t, eval.Blocked)
	assert.Equal(t, types.DecisionBlock, eval.Decision())
	assert.Equal(t, []string{"contains profanity"}, eval.Reasons)
	assert.Equal(t, []string{"looks suspicious"}, eval.Warnings)
	require.Len(t, eval.Results, 3)
	assert.Equal(t, "blocker", eval.Results[0].GuardrailName)
	assert.Equal(t, scriptedKind, eval.Results[0].GuardrailKind)
	assert.Equal(t, "warner", eval.Results[1].GuardrailName)
	assert.Equal(t, "allower", eval.Results[2].GuardrailName)
}

func TestCheckInput_WarningsDoNotBlock(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"warner":  &scripted{result: types.NewWarnResult("borderline", 0.4)},
		"allower": &scripted{result: types.NewAllowResult("clean")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("warner", types.DirectionInput),
		definition("allower", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.Equal(t, types.DecisionWarn, eval.Decision())
	assert.Equal(t, []string{"borderline"}, eval.Warnings)
	assert.Empty(t, eval.Reasons)
}

func TestCheckInput_AllAllow(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"a": &scripted{result: types.NewAllowResult("clean")},
		"b": &scripted{result: types.NewAllowResult("clean")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("a", types.DirectionInput),
		definition("b", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.Equal(t, types.DecisionAllow, eval.Decision())
	assert.Empty(t, eval.Reasons)
	assert.Empty(t, eval.Warnings)
	assert.Nil(t, eval.Details)
	assert.Len(t, eval.Results, 2)
}

func TestCheckInput_NoGuardrailsAllows(t *testing.T) {
	p := newPipeline(t, nil, nil)

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.Equal(t, types.DecisionAllow, eval.Decision())
	assert.Empty(t, eval.Results)
}

func TestCheckInput_ReasonsKeepDefinitionOrder(t *testing.T) {
	// The first guardrail finishes last; merge order must still follow
	// definition order.
	analyzers := map[string]guardrail.Analyzer{
		"slow": &scripted{result: types.NewBlockResult("slow verdict", 1.0), delay: 40 * time.Millisecond},
		"fast": &scripted{result: types.NewBlockResult("fast verdict", 1.0)},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("slow", types.DirectionInput),
		definition("fast", types.DirectionInput),
	}, pipeline.WithConcurrency(2))

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"slow verdict", "fast verdict"}, eval.Reasons)
	require.Len(t, eval.Results, 2)
	assert.Equal(t, "slow", eval.Results[0].GuardrailName)
	assert.Equal(t, "fast", eval.Results[1].GuardrailName)
}

func TestCheckInput_DetailsKeyedByGuardrailName(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"first": &scripted{result: types.NewBlockResult("bad", 1.0).
			WithDetails(map[string]interface{}{"matched": "badword"})},
		"second": &scripted{result: types.NewWarnResult("iffy", 0.5).
			WithDetails(map[string]interface{}{"score": 0.5})},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("first", types.DirectionInput),
		definition("second", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	require.Contains(t, eval.Details, "first")
	require.Contains(t, eval.Details, "second")
	assert.Equal(t, map[string]interface{}{"matched": "badword"}, eval.Details["first"])
	assert.Equal(t, map[string]interface{}{"score": 0.5}, eval.Details["second"])
}

func TestCheckInput_ErrorResolvedByPolicy(t *testing.T) {
	tests := []struct {
		name     string
		onError  types.ErrorPolicy
		decision types.Decision
	}{
		{name: "block policy", onError: types.ErrorPolicyBlock, decision: types.DecisionBlock},
		{name: "warn policy", onError: types.ErrorPolicyWarn, decision: types.DecisionWarn},
		{name: "allow policy", onError: types.ErrorPolicyAllow, decision: types.DecisionAllow},
		{name: "default is block", onError: "", decision: types.DecisionBlock},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sibling := &scripted{result: types.NewAllowResult("clean")}
			analyzers := map[string]guardrail.Analyzer{
				"broken":  &scripted{err: errors.New("upstream unreachable")},
				"sibling": sibling,
			}
			brokenDef := definition("broken", types.DirectionInput)
			brokenDef.OnError = tc.onError
			p := newPipeline(t, analyzers, []types.Definition{
				brokenDef,
				definition("sibling", types.DirectionInput),
			})

			eval, err := p.CheckInput(context.Background(), "hello", nil)
			require.NoError(t, err)

			assert.Equal(t, tc.decision, eval.Decision())
			require.Len(t, eval.Results, 2)
			assert.Contains(t, eval.Results[0].Reason, "upstream unreachable")
			if tc.onError != "" {
				assert.Contains(t, eval.Results[0].Reason, fmt.Sprintf("resolved as %s", tc.onError))
			}
			assert.Equal(t, 1, sibling.Calls())
		})
	}
}

func TestCheckInput_PanicIsGuardrailError(t *testing.T) {
	sibling := &scripted{result: types.NewAllowResult("clean")}
	analyzers := map[string]guardrail.Analyzer{
		"panicky": &scripted{panics: true},
		"sibling": sibling,
	}
	panickyDef := definition("panicky", types.DirectionInput)
	panickyDef.OnError = types.ErrorPolicyWarn
	p := newPipeline(t, analyzers, []types.Definition{
		panickyDef,
		definition("sibling", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.Equal(t, types.DecisionWarn, eval.Decision())
	require.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0], "guardrail panicked")
	assert.Contains(t, eval.Warnings[0], "scripted failure")
	assert.Equal(t, 1, sibling.Calls())
}

func TestCheckInput_SkipsDisabledAndUnavailable(t *testing.T) {
	disabled := &scripted{result: types.NewBlockResult("never seen", 1.0)}
	gated := &unavailable{scripted: scripted{result: types.NewBlockResult("never seen", 1.0)}}
	active := &scripted{result: types.NewAllowResult("clean")}
	analyzers := map[string]guardrail.Analyzer{
		"disabled": disabled,
		"gated":    gated,
		"active":   active,
	}
	disabledDef := definition("disabled", types.DirectionInput)
	disabledDef.Enabled = false
	p := newPipeline(t, analyzers, []types.Definition{
		disabledDef,
		definition("gated", types.DirectionInput),
		definition("active", types.DirectionInput),
	})

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	require.Len(t, eval.Results, 1)
	assert.Equal(t, "active", eval.Results[0].GuardrailName)
	assert.Equal(t, 0, disabled.Calls())
	assert.Equal(t, 0, gated.Calls())
	assert.Equal(t, 1, active.Calls())
}

func TestCheckInput_TimeoutRoutedThroughErrorPolicy(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"slow": &scripted{result: types.NewAllowResult("clean"), delay: 5 * time.Second},
	}
	slowDef := definition("slow", types.DirectionInput)
	slowDef.OnError = types.ErrorPolicyWarn
	p := newPipeline(t, analyzers, []types.Definition{slowDef},
		pipeline.WithTimeout(30*time.Millisecond))

	started := time.Now()
	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), 2*time.Second)
	assert.False(t, eval.Blocked)
	require.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0], context.DeadlineExceeded.Error())
	assert.Contains(t, eval.Warnings[0], "resolved as warn")
}

func TestCheckInput_ConcurrencyBound(t *testing.T) {
	shared := &probe{hold: 20 * time.Millisecond}
	analyzers := map[string]guardrail.Analyzer{
		"g1": shared, "g2": shared, "g3": shared, "g4": shared,
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("g1", types.DirectionInput),
		definition("g2", types.DirectionInput),
		definition("g3", types.DirectionInput),
		definition("g4", types.DirectionInput),
	}, pipeline.WithConcurrency(2))

	eval, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Len(t, eval.Results, 4)
	assert.Equal(t, 4, shared.Calls())
	assert.LessOrEqual(t, shared.Peak(), 2)
}

func TestCheckInput_RateLimitShortCircuits(t *testing.T) {
	g := &scripted{result: types.NewAllowResult("clean")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"g": g},
		[]types.Definition{definition("g", types.DirectionInput)},
		pipeline.WithRateLimiter(memoryStore(t)))

	conv := conversation.New(conversation.Options{
		ID:     "conv-limited",
		Limits: ratelimit.Limits{PerMinute: 1},
	})

	first, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)
	assert.False(t, first.Blocked)
	assert.False(t, first.RateLimited)
	assert.Equal(t, 1, g.Calls())

	second, err := p.CheckInput(context.Background(), "hello again", conv)
	require.NoError(t, err)

	assert.True(t, second.Blocked)
	assert.True(t, second.RateLimited)
	assert.Greater(t, second.RetryAfter, time.Duration(0))
	require.Len(t, second.Reasons, 1)
	assert.Contains(t, second.Reasons[0], "rate limit exceeded")
	assert.Contains(t, second.Reasons[0], "conv-limited")
	require.Len(t, second.Results, 1)
	assert.Equal(t, "rate_limit", second.Results[0].GuardrailName)
	assert.Contains(t, second.Details, "rate_limit")
	// Guardrails were not consulted for the limited call.
	assert.Equal(t, 1, g.Calls())
}

func TestCheckInput_UnlimitedConversationSkipsStore(t *testing.T) {
	store := &failingStore{}
	g := &scripted{result: types.NewAllowResult("clean")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"g": g},
		[]types.Definition{definition("g", types.DirectionInput)},
		pipeline.WithRateLimiter(store))

	conv := conversation.New(conversation.Options{ID: "conv-free"})
	eval, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.Equal(t, 0, store.Calls())
	assert.Equal(t, 1, g.Calls())
}

func TestCheckInput_StoreErrorFailsOpen(t *testing.T) {
	store := &failingStore{}
	g := &scripted{result: types.NewAllowResult("clean")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"g": g},
		[]types.Definition{definition("g", types.DirectionInput)},
		pipeline.WithRateLimiter(store))

	conv := conversation.New(conversation.Options{
		ID:     "conv-degraded",
		Limits: ratelimit.Limits{PerMinute: 5},
	})
	eval, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)

	assert.False(t, eval.Blocked)
	assert.False(t, eval.RateLimited)
	assert.Equal(t, 1, store.Calls())
	assert.Equal(t, 1, g.Calls())
}

func TestCheckInput_AuditTrail(t *testing.T) {
	sink := &memorySink{}
	log := audit.NewLog(sink, testLogger())

	analyzers := map[string]guardrail.Analyzer{
		"blocker": &scripted{result: types.NewBlockResult("contains profanity", 0.9)},
		"allower": &scripted{result: types.NewAllowResult("clean")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("blocker", types.DirectionInput),
		definition("allower", types.DirectionInput),
	}, pipeline.WithAuditLog(log))

	conv := conversation.New(conversation.Options{ID: "conv-audit"})
	_, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)
	require.NoError(t, log.Close(context.Background()))

	records := sink.Records()
	require.Len(t, records, 3)

	assert.Equal(t, audit.RecordTypeGuardrail, records[0].Type)
	assert.Equal(t, "blocker", records[0].GuardrailName)
	assert.Equal(t, types.DecisionBlock, records[0].Decision)
	assert.Equal(t, "conv-audit", records[0].ConversationID)

	assert.Equal(t, audit.RecordTypeGuardrail, records[1].Type)
	assert.Equal(t, "allower", records[1].GuardrailName)
	assert.Equal(t, types.DecisionAllow, records[1].Decision)

	summary := records[2]
	assert.Equal(t, audit.RecordTypeSummary, summary.Type)
	assert.Equal(t, types.DecisionBlock, summary.Decision)
	assert.Equal(t, "contains profanity", summary.Reason)
	assert.Equal(t, "conv-audit", summary.ConversationID)
	assert.Equal(t, 2, summary.Details["guardrails_evaluated"])
	assert.Equal(t, false, summary.Details["rate_limited"])
}

func TestCheckInput_AuditOnRateLimit(t *testing.T) {
	sink := &memorySink{}
	log := audit.NewLog(sink, testLogger())

	g := &scripted{result: types.NewAllowResult("clean")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"g": g},
		[]types.Definition{definition("g", types.DirectionInput)},
		pipeline.WithAuditLog(log),
		pipeline.WithRateLimiter(memoryStore(t)))

	conv := conversation.New(conversation.Options{
		ID:     "conv-limited",
		Limits: ratelimit.Limits{PerMinute: 1},
	})

	_, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)
	_, err = p.CheckInput(context.Background(), "hello again", conv)
	require.NoError(t, err)
	require.NoError(t, log.Close(context.Background()))

	records := sink.Records()
	require.Len(t, records, 4)

	limited := records[2]
	assert.Equal(t, audit.RecordTypeGuardrail, limited.Type)
	assert.Equal(t, "rate_limit", limited.GuardrailName)
	assert.Equal(t, types.DecisionBlock, limited.Decision)
	assert.Contains(t, limited.Reason, "rate limit exceeded")

	summary := records[3]
	assert.Equal(t, audit.RecordTypeSummary, summary.Type)
	assert.Equal(t, types.DecisionBlock, summary.Decision)
	assert.Equal(t, true, summary.Details["rate_limited"])
}

func TestCheckOutput_UsesOutputCollection(t *testing.T) {
	inputG := &scripted{result: types.NewAllowResult("clean")}
	outputG := &scripted{result: types.NewBlockResult("leaked key", 1.0)}
	p := newPipeline(t, map[string]guardrail.Analyzer{"in": inputG, "out": outputG},
		[]types.Definition{
			definition("in", types.DirectionInput),
			definition("out", types.DirectionOutput),
		})

	eval, err := p.CheckOutput(context.Background(), "sk-123", nil)
	require.NoError(t, err)

	assert.Equal(t, types.DirectionOutput, eval.Direction)
	assert.True(t, eval.Blocked)
	assert.Equal(t, 0, inputG.Calls())
	assert.Equal(t, 1, outputG.Calls())
}

func TestSetEnabled_TogglesOneDirection(t *testing.T) {
	shared := &scripted{result: types.NewAllowResult("ok")}
	p := newPipeline(t, map[string]guardrail.Analyzer{"shared": shared}, []types.Definition{
		definition("shared", types.DirectionInput),
		definition("shared", types.DirectionOutput),
	})

	require.NoError(t, p.SetEnabled("shared", types.DirectionInput, false))

	assert.False(t, p.Guardrails(types.DirectionInput)[0].Enabled())
	assert.True(t, p.Guardrails(types.DirectionOutput)[0].Enabled())

	in, err := p.CheckInput(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Empty(t, in.Results)

	out, err := p.CheckOutput(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
}

func TestSetEnabled_UnknownName(t *testing.T) {
	p := newPipeline(t, nil, nil)
	err := p.SetEnabled("ghost", types.DirectionInput, false)
	require.ErrorContains(t, err, `no guardrail named "ghost"`)
}

func TestSetEnabled_InvalidDirection(t *testing.T) {
	p := newPipeline(t, nil, nil)
	err := p.SetEnabled("any", types.Direction("sideways"), false)
	require.ErrorContains(t, err, "invalid direction")
}

func TestGuardrails_ReturnsDefinitionOrderCopy(t *testing.T) {
	analyzers := map[string]guardrail.Analyzer{
		"zeta":  &scripted{result: types.NewAllowResult("ok")},
		"alpha": &scripted{result: types.NewAllowResult("ok")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("zeta", types.DirectionInput),
		definition("alpha", types.DirectionInput),
	})

	got := p.Guardrails(types.DirectionInput)
	require.Len(t, got, 2)
	assert.Equal(t, "zeta", got[0].Name())
	assert.Equal(t, "alpha", got[1].Name())

	got[0] = got[1]
	again := p.Guardrails(types.DirectionInput)
	assert.Equal(t, "zeta", again[0].Name())

	assert.Nil(t, p.Guardrails(types.Direction("sideways")))
}

func TestCheckInput_RecordsMetrics(t *testing.T) {
	old := metrics.Config
	metrics.Config = metrics.MetricsConfig{EnableLatency: true, EnablePerGuardrail: true}
	t.Cleanup(func() { metrics.Config = old })

	brokenDef := definition("broken", types.DirectionInput)
	brokenDef.OnError = types.ErrorPolicyAllow
	analyzers := map[string]guardrail.Analyzer{
		"blocker": &scripted{result: types.NewBlockResult("bad", 1.0)},
		"broken":  &scripted{err: errors.New("boom")},
	}
	p := newPipeline(t, analyzers, []types.Definition{
		definition("blocker", types.DirectionInput),
		brokenDef,
	}, pipeline.WithMetrics(true), pipeline.WithRateLimiter(memoryStore(t)))

	evaluations := metrics.EvaluationTotal.WithLabelValues("input", "block")
	decisions := metrics.GuardrailDecisionTotal.WithLabelValues("input", "blocker", scriptedKind, "block")
	failures := metrics.GuardrailErrorTotal.WithLabelValues("input", "broken", scriptedKind)
	limited := metrics.RateLimitExceededTotal.WithLabelValues("conversation")

	evaluationsBefore := testutil.ToFloat64(evaluations)
	decisionsBefore := testutil.ToFloat64(decisions)
	failuresBefore := testutil.ToFloat64(failures)
	limitedBefore := testutil.ToFloat64(limited)

	conv := conversation.New(conversation.Options{
		ID:     "conv-metrics",
		Limits: ratelimit.Limits{PerMinute: 1},
	})
	_, err := p.CheckInput(context.Background(), "hello", conv)
	require.NoError(t, err)
	_, err = p.CheckInput(context.Background(), "hello again", conv)
	require.NoError(t, err)

	// Both the evaluated call and the rate-limited call end blocked.
	assert.Equal(t, evaluationsBefore+2, testutil.ToFloat64(evaluations))
	assert.Equal(t, decisionsBefore+1, testutil.ToFloat64(decisions))
	assert.Equal(t, failuresBefore+1, testutil.ToFloat64(failures))
	assert.Equal(t, limitedBefore+1, testutil.ToFloat64(limited))
}
